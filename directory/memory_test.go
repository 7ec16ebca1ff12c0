package directory

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestMemoryCreateAndFind(t *testing.T) {
	d := NewMemory()
	ctx := context.Background()

	account, err := d.Create(ctx, "Labor1", "p", []string{RoleLabor})
	if err != nil {
		t.Fatal(err)
	}
	if account.Username != "labor1" {
		t.Fatalf("Expecting %v got '%v'", "labor1", account.Username)
	}
	if account.Password == "p" {
		t.Fatal("password must be stored hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte("p")); err != nil {
		t.Fatal("hash does not verify against the clear text password")
	}

	found, err := d.FindByUsername(ctx, "LABOR1")
	if err != nil {
		t.Fatal(err)
	}
	if !found.HasRole(RoleLabor) {
		t.Fatalf("Expecting role %v, got %v", RoleLabor, found.Roles)
	}
	if found.HasRole(RoleAdmin) {
		t.Fatal("account must not have the admin role")
	}
}

func TestMemoryCreateTakenUsername(t *testing.T) {
	d := NewMemory()
	ctx := context.Background()

	if _, err := d.Create(ctx, "labor1", "p", []string{RoleLabor}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Create(ctx, "Labor1", "q", []string{RoleLabor}); err != ErrUsernameTaken {
		t.Fatalf("Expecting ErrUsernameTaken, got %v", err)
	}
}

func TestMemoryFindUnknown(t *testing.T) {
	d := NewMemory()
	if _, err := d.FindByUsername(context.Background(), "nobody"); err != ErrNotFound {
		t.Fatalf("Expecting ErrNotFound, got %v", err)
	}
}
