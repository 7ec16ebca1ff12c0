// Package store persists laboratory records. The postgres implementation
// keeps the aggregate as a JSONB document next to an integer version
// column; the memory implementation mirrors the same contract for tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/acme-health/labor/labor"
)

// The sentinel errors of the store contract.
var (
	// ErrNotFound means no record exists for the given id.
	ErrNotFound = errors.New("labor not found")
	// ErrVersionOutdated means the record exists but the expected version
	// did not match, another writer won.
	ErrVersionOutdated = errors.New("labor version outdated")
	// ErrTimeout means the operation exceeded its deadline budget. The
	// condition is transient, callers may retry.
	ErrTimeout = errors.New("store operation timed out")
)

// Timeouts are the per-operation deadline budgets. Short bounds point
// operations, Long bounds criteria scans.
type Timeouts struct {
	Short time.Duration
	Long  time.Duration
}

// DefaultTimeouts returns the standard budgets.
func DefaultTimeouts() Timeouts {
	return Timeouts{Short: 500 * time.Millisecond, Long: 2 * time.Second}
}

// Store is the persistence contract for laboratory records.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*labor.Labor, error)
	FindAll(ctx context.Context) ([]labor.Labor, error)
	FindByCriteria(ctx context.Context, criteria []Criterion) ([]labor.Labor, error)
	// Insert persists a new record with version 0 and returns it with
	// the generated id and timestamps.
	Insert(ctx context.Context, l *labor.Labor) (*labor.Labor, error)
	// Update writes the record if and only if its stored version equals
	// expectedVersion and returns it with the incremented version.
	Update(ctx context.Context, l *labor.Labor, expectedVersion int) (*labor.Labor, error)
	// DeleteByID removes the record and returns the number of records
	// removed, 0 or 1.
	DeleteByID(ctx context.Context, id uuid.UUID) (int64, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	DistinctNamesByPrefix(ctx context.Context, prefix string) ([]string, error)
	VersionByID(ctx context.Context, id uuid.UUID) (int, error)
}

// asStoreError maps context expiry to ErrTimeout and leaves everything
// else untouched.
func asStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
