package service

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/google/uuid"

	"github.com/acme-health/labor/directory"
	"github.com/acme-health/labor/labor"
	"github.com/acme-health/labor/labor/store"
	"github.com/acme-health/labor/mail"
)

func newTestService() (*Service, *store.Memory, *directory.Memory) {
	memStore := store.NewMemory()
	dir := directory.NewMemory()
	return New(memStore, dir, mail.Discard{}, nil), memStore, dir
}

func testLabor() labor.Labor {
	return labor.Labor{
		Name: "Labor Nord",
		Adresse: labor.Adresse{
			Strasse:    "Hauptstrasse",
			Hausnummer: "12",
			Plz:        "76133",
			Ort:        "Karlsruhe",
		},
		Telefonnummer: "0721 12345",
		Fax:           "0721 12346",
		LaborTests:    []labor.TestTyp{labor.Blut},
		User:          &labor.UserSpec{Username: "Labor1", Password: "p"},
	}
}

func TestCreate(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testLabor())
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("Expecting a generated id")
	}
	if created.Version != 0 {
		t.Fatalf("Expecting version 0, got %d", created.Version)
	}
	if created.Username != "labor1" {
		t.Fatalf("Expecting canonical username labor1, got '%v'", created.Username)
	}
	if created.User != nil {
		t.Fatal("embedded account must not be returned")
	}

	// the account must exist with the labor role
	account, err := dir.FindByUsername(ctx, "labor1")
	if err != nil {
		t.Fatal(err)
	}
	if !account.HasRole(directory.RoleLabor) {
		t.Fatalf("Expecting role labor, got %v", account.Roles)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, memStore, dir := newTestService()
	ctx := context.Background()

	l := testLabor()
	l.Fax = ""
	l.Adresse.Plz = "1234"

	_, err := svc.Create(ctx, l)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expecting ValidationError, got %v", err)
	}
	if len(validationErr.Violations) != 2 {
		t.Fatalf("Expecting 2 violations, got %v", validationErr.Violations)
	}

	// nothing may have been written
	if _, err := dir.FindByUsername(ctx, "labor1"); err != directory.ErrNotFound {
		t.Fatal("no account may be created for an invalid labor")
	}
	all, err := memStore.FindAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatal("no record may be created for an invalid labor")
	}
}

func TestCreateInvalidAccount(t *testing.T) {
	svc, _, _ := newTestService()

	l := testLabor()
	l.User = nil
	if _, err := svc.Create(context.Background(), l); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("Expecting ErrInvalidAccount, got %v", err)
	}

	l = testLabor()
	l.User = &labor.UserSpec{}
	if _, err := svc.Create(context.Background(), l); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("Expecting ErrInvalidAccount, got %v", err)
	}

	// a username that canonicalizes to nothing is no account either
	l = testLabor()
	l.User = &labor.UserSpec{Username: "   ", Password: "p"}
	if _, err := svc.Create(context.Background(), l); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("Expecting ErrInvalidAccount, got %v", err)
	}
}

func TestCreateUsernameExists(t *testing.T) {
	svc, memStore, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, testLabor()); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Create(ctx, testLabor())
	var usernameErr *UsernameExistsError
	if !errors.As(err, &usernameErr) {
		t.Fatalf("Expecting UsernameExistsError, got %v", err)
	}
	if usernameErr.Username != "labor1" {
		t.Fatalf("Expecting labor1, got '%v'", usernameErr.Username)
	}

	// the second labor may not have been written
	all, err := memStore.FindAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("Expecting 1 record, got %d", len(all))
	}
}

func TestFindByIDOwnershipFastPath(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testLabor())
	if err != nil {
		t.Fatal(err)
	}

	// the owner has no admin role, but can read their own record
	found, err := svc.FindByID(ctx, created.ID, "labor1")
	if err != nil {
		t.Fatal(err)
	}
	if found.Name != "Labor Nord" {
		t.Fatalf("Expecting %v got '%v'", "Labor Nord", found.Name)
	}
}

func TestFindByIDForbidden(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testLabor())
	if err != nil {
		t.Fatal(err)
	}

	// another non-admin account gets forbidden with its roles
	if _, err := dir.Create(ctx, "labor2", "p", []string{directory.RoleLabor}); err != nil {
		t.Fatal(err)
	}
	_, err = svc.FindByID(ctx, created.ID, "labor2")
	var forbiddenErr *AccessForbiddenError
	if !errors.As(err, &forbiddenErr) {
		t.Fatalf("Expecting AccessForbiddenError, got %v", err)
	}
	if len(forbiddenErr.Roles) != 1 || forbiddenErr.Roles[0] != directory.RoleLabor {
		t.Fatalf("Expecting roles [labor], got %v", forbiddenErr.Roles)
	}

	// an unresolvable principal is denied without roles
	_, err = svc.FindByID(ctx, created.ID, "ghost")
	if !errors.As(err, &forbiddenErr) {
		t.Fatalf("Expecting AccessForbiddenError, got %v", err)
	}
	if len(forbiddenErr.Roles) != 0 {
		t.Fatalf("Expecting no roles, got %v", forbiddenErr.Roles)
	}
}

func TestFindByIDAdmin(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testLabor())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dir.Create(ctx, "admin", "p", []string{directory.RoleAdmin}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.FindByID(ctx, created.ID, "admin"); err != nil {
		t.Fatal(err)
	}

	// not found is only revealed to authorized callers
	_, err = svc.FindByID(ctx, uuid.New(), "admin")
	var notFoundErr *NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("Expecting NotFoundError, got %v", err)
	}

	// a non-admin asking for a missing record still gets forbidden
	_, err = svc.FindByID(ctx, uuid.New(), "labor1")
	var forbiddenErr *AccessForbiddenError
	if !errors.As(err, &forbiddenErr) {
		t.Fatalf("Expecting AccessForbiddenError, got %v", err)
	}
}

func TestFind(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	l := testLabor()
	if _, err := svc.Create(ctx, l); err != nil {
		t.Fatal(err)
	}
	second := testLabor()
	second.Name = "Labor Sued"
	second.Adresse.Ort = "Berlin"
	second.Adresse.Plz = "10115"
	second.User = &labor.UserSpec{Username: "labor2", Password: "p"}
	if _, err := svc.Create(ctx, second); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name     string
		params   url.Values
		expected int
	}{
		{"no params returns all", url.Values{}, 2},
		{"single name criterion", url.Values{"name": []string{"nord"}}, 1},
		{"single unknown key fails closed", url.Values{"bundesland": []string{"BW"}}, 0},
		{"multi criteria", url.Values{"name": []string{"labor"}, "ort": []string{"berlin"}}, 1},
		{"multi with unusable fails closed", url.Values{"name": []string{"labor"}, "plz": []string{"1", "2"}}, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := svc.Find(ctx, tc.params)
			if err != nil {
				t.Fatal(err)
			}
			if len(result) != tc.expected {
				t.Fatalf("Expecting %d results, got %d", tc.expected, len(result))
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testLabor())
	if err != nil {
		t.Fatal(err)
	}

	update := created.Clone()
	update.Name = "Labor Nord-West"
	updated, err := svc.Update(ctx, update, created.ID, "0", "labor1")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Version != 1 {
		t.Fatalf("Expecting version 1, got %d", updated.Version)
	}
	if updated.Username != "labor1" {
		t.Fatal("owner must be preserved on update")
	}

	// the stale version loses
	_, err = svc.Update(ctx, update, created.ID, "0", "labor1")
	var outdatedErr *VersionOutdatedError
	if !errors.As(err, &outdatedErr) {
		t.Fatalf("Expecting VersionOutdatedError, got %v", err)
	}
	if outdatedErr.Version != 0 {
		t.Fatalf("Expecting version 0, got %d", outdatedErr.Version)
	}
}

func TestUpdateVersionInvalid(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testLabor())
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Update(ctx, *created, created.ID, "abc", "labor1")
	var invalidErr *VersionInvalidError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("Expecting VersionInvalidError, got %v", err)
	}
	if invalidErr.Raw != "abc" {
		t.Fatalf("Expecting abc, got '%v'", invalidErr.Raw)
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()

	if _, err := dir.Create(ctx, "admin", "p", []string{directory.RoleAdmin}); err != nil {
		t.Fatal(err)
	}

	l := testLabor()
	l.User = nil
	_, err := svc.Update(ctx, l, uuid.New(), "0", "admin")
	var notFoundErr *NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("Expecting NotFoundError, got %v", err)
	}
}

func TestUpdateForbidden(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testLabor())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dir.Create(ctx, "labor2", "p", []string{directory.RoleLabor}); err != nil {
		t.Fatal(err)
	}

	update := created.Clone()
	update.Name = "Labor Fremd"

	// a non-admin cannot overwrite somebody else's record
	_, err = svc.Update(ctx, update, created.ID, "0", "labor2")
	var forbiddenErr *AccessForbiddenError
	if !errors.As(err, &forbiddenErr) {
		t.Fatalf("Expecting AccessForbiddenError, got %v", err)
	}

	// an unresolvable principal is denied as well
	_, err = svc.Update(ctx, update, created.ID, "0", "ghost")
	if !errors.As(err, &forbiddenErr) {
		t.Fatalf("Expecting AccessForbiddenError, got %v", err)
	}

	found, err := svc.FindByID(ctx, created.ID, "labor1")
	if err != nil {
		t.Fatal(err)
	}
	if found.Name != "Labor Nord" {
		t.Fatalf("Expecting %v got '%v'", "Labor Nord", found.Name)
	}
}

func TestUpdateValidationBeforeLookup(t *testing.T) {
	svc, _, _ := newTestService()

	l := testLabor()
	l.Fax = ""
	_, err := svc.Update(context.Background(), l, uuid.New(), "0", "ghost")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expecting ValidationError, got %v", err)
	}
}

func TestPatch(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testLabor())
	if err != nil {
		t.Fatal(err)
	}

	patched, err := svc.Patch(ctx, created.ID, "0", []labor.PatchOperation{
		{Op: "replace", Path: "/name", Value: "Labor Nord-Ost"},
		{Op: "add", Path: "/laborTests", Value: "D"},
		{Op: "remove", Path: "/laborTests", Value: "B"},
	}, "labor1")
	if err != nil {
		t.Fatal(err)
	}
	if patched.Name != "Labor Nord-Ost" {
		t.Fatalf("Expecting %v got '%v'", "Labor Nord-Ost", patched.Name)
	}
	if len(patched.LaborTests) != 1 || patched.LaborTests[0] != labor.DNS {
		t.Fatalf("Expecting [D], got %v", patched.LaborTests)
	}
	if patched.Version != 1 {
		t.Fatalf("Expecting version 1, got %d", patched.Version)
	}
}

func TestPatchForbidden(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testLabor())
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Patch(ctx, created.ID, "0", nil, "ghost")
	var forbiddenErr *AccessForbiddenError
	if !errors.As(err, &forbiddenErr) {
		t.Fatalf("Expecting AccessForbiddenError, got %v", err)
	}
}

func TestDeleteByID(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testLabor())
	if err != nil {
		t.Fatal(err)
	}

	count, err := svc.DeleteByID(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("Expecting 1, got %d", count)
	}

	count, err = svc.DeleteByID(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("Expecting 0, got %d", count)
	}
}

func TestRoles(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()

	if _, err := dir.Create(ctx, "admin", "p", []string{directory.RoleAdmin}); err != nil {
		t.Fatal(err)
	}

	roles, err := svc.Roles(ctx, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 1 || roles[0] != directory.RoleAdmin {
		t.Fatalf("Expecting [admin], got %v", roles)
	}

	roles, err = svc.Roles(ctx, "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 0 {
		t.Fatalf("Expecting no roles, got %v", roles)
	}
}
