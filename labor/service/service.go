// Package service implements the application logic for laboratory
// records: authorization, validation, optimistic-concurrency writes,
// account provisioning and best-effort notification.
package service

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/acme-health/labor/core/logger"
	"github.com/acme-health/labor/directory"
	"github.com/acme-health/labor/events"
	"github.com/acme-health/labor/labor"
	"github.com/acme-health/labor/labor/store"
	"github.com/acme-health/labor/mail"
)

// Service orchestrates all laboratory operations.
type Service struct {
	store     store.Store
	directory directory.Directory
	mailer    mail.Mailer
	publisher *events.Publisher
}

// New creates a service. The mailer may be nil, the publisher may be nil.
func New(s store.Store, dir directory.Directory, mailer mail.Mailer, publisher *events.Publisher) *Service {
	return &Service{store: s, directory: dir, mailer: mailer, publisher: publisher}
}

// FindByID returns the laboratory for the caller given by username.
//
// Owners can always read their own record, regardless of roles. Everybody
// else needs the admin role; callers that cannot be resolved in the
// directory are denied without role information. Whether the record
// exists is only revealed after the role gate.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID, username string) (*labor.Labor, error) {
	l, err := s.store.FindByID(ctx, id)
	if err != nil && err != store.ErrNotFound {
		return nil, err
	}

	if l != nil && l.Username == username {
		return l, nil
	}

	account, err := s.directory.FindByUsername(ctx, username)
	if err == directory.ErrNotFound {
		return nil, &AccessForbiddenError{}
	}
	if err != nil {
		return nil, err
	}

	if !account.HasRole(directory.RoleAdmin) {
		return nil, &AccessForbiddenError{Roles: account.Roles}
	}
	if l == nil {
		return nil, &NotFoundError{ID: id}
	}
	return l, nil
}

// Find returns the laboratories matching the query parameters. Without
// parameters it returns all. A parameter that cannot be turned into a
// criterion makes the whole search fail closed with an empty result.
func (s *Service) Find(ctx context.Context, params url.Values) ([]labor.Labor, error) {
	if len(params) == 0 {
		return s.store.FindAll(ctx)
	}

	if len(params) == 1 {
		for key, values := range params {
			criterion := store.BuildCriterion(key, values)
			if criterion == nil {
				return []labor.Labor{}, nil
			}
			return s.store.FindByCriteria(ctx, []store.Criterion{*criterion})
		}
	}

	var criteria []store.Criterion
	for _, criterion := range store.BuildCriteria(params) {
		if criterion == nil {
			return []labor.Labor{}, nil
		}
		criteria = append(criteria, *criterion)
	}
	return s.store.FindByCriteria(ctx, criteria)
}

// Create validates and persists a new laboratory. The embedded account is
// provisioned in the directory with the labor role strictly before the
// record is written, and the record carries the directory's canonical
// username. Mail and event delivery are best effort.
func (s *Service) Create(ctx context.Context, l labor.Labor) (*labor.Labor, error) {
	if violations := labor.Validate(l); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	user := l.User
	if user == nil || directory.CanonicalUsername(user.Username) == "" {
		return nil, ErrInvalidAccount
	}

	account, err := s.directory.Create(ctx, user.Username, user.Password, []string{directory.RoleLabor})
	if err == directory.ErrUsernameTaken {
		return nil, &UsernameExistsError{Username: directory.CanonicalUsername(user.Username)}
	}
	if err != nil {
		return nil, err
	}

	l.User = nil
	l.Username = account.Username
	created, err := s.store.Insert(ctx, &l)
	if err != nil {
		return nil, err
	}

	rlog := logger.FromContext(ctx)
	if s.mailer != nil {
		if err := s.mailer.Send(ctx, created); err != nil {
			rlog.WithError(err).Warnln("create: mail not sent, is the mail server reachable?")
		}
	}
	s.publisher.Notify(ctx, events.OperationCreate, created)

	rlog.Debugf("create: labor %s for account %s", created.ID, account.Username)
	return created, nil
}

// Update validates and writes a full replacement of the laboratory. The
// caller is authorized exactly like a read: owners may update their own
// record, everybody else needs the admin role. The stored owner is kept,
// clients cannot reassign ownership.
func (s *Service) Update(ctx context.Context, l labor.Labor, id uuid.UUID, versionStr string, username string) (*labor.Labor, error) {
	if violations := labor.Validate(l); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	current, err := s.FindByID(ctx, id, username)
	if err != nil {
		return nil, err
	}

	version, err := strconv.Atoi(versionStr)
	if err != nil {
		return nil, &VersionInvalidError{Raw: versionStr}
	}

	l.ID = id
	l.Username = current.Username
	l.User = nil
	updated, err := s.store.Update(ctx, &l, version)
	if err == store.ErrVersionOutdated {
		return nil, &VersionOutdatedError{Version: version}
	}
	if err == store.ErrNotFound {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}

	s.publisher.Notify(ctx, events.OperationUpdate, updated)
	return updated, nil
}

// Patch applies partial-update operations to the laboratory and writes
// the result through the regular update path. The caller is authorized
// exactly like a read.
func (s *Service) Patch(ctx context.Context, id uuid.UUID, versionStr string, operations []labor.PatchOperation, username string) (*labor.Labor, error) {
	current, err := s.FindByID(ctx, id, username)
	if err != nil {
		return nil, err
	}
	patched := labor.ApplyPatch(*current, operations)
	return s.Update(ctx, patched, id, versionStr, username)
}

// DeleteByID removes the laboratory and returns how many records were
// removed, 0 or 1.
func (s *Service) DeleteByID(ctx context.Context, id uuid.UUID) (int64, error) {
	count, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return 0, err
	}
	logger.FromContext(ctx).Debugf("deleteById: %d records removed", count)
	if count > 0 {
		s.publisher.Notify(ctx, events.OperationDelete, &labor.Labor{ID: id})
	}
	return count, nil
}

// Exists reports whether a laboratory exists for the id.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.store.Exists(ctx, id)
}

// NamesByPrefix returns the distinct laboratory names starting with the
// prefix.
func (s *Service) NamesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return s.store.DistinctNamesByPrefix(ctx, prefix)
}

// VersionByID returns the current version of the laboratory.
func (s *Service) VersionByID(ctx context.Context, id uuid.UUID) (int, error) {
	version, err := s.store.VersionByID(ctx, id)
	if err == store.ErrNotFound {
		return 0, &NotFoundError{ID: id}
	}
	return version, err
}

// Roles returns the roles of the account with the given username.
func (s *Service) Roles(ctx context.Context, username string) ([]string, error) {
	account, err := s.directory.FindByUsername(ctx, username)
	if errors.Is(err, directory.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return account.Roles, nil
}
