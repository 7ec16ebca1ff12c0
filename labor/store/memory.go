package store

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acme-health/labor/labor"
)

// Memory is an in-memory store with the exact contract of the postgres
// implementation. It backs unit tests and local development.
type Memory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*labor.Labor
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[uuid.UUID]*labor.Labor)}
}

// FindByID returns the record or ErrNotFound.
func (m *Memory) FindByID(ctx context.Context, id uuid.UUID) (*labor.Labor, error) {
	if err := asStoreError(ctx.Err()); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := l.Clone()
	return &out, nil
}

// FindAll returns every record ordered by creation time.
func (m *Memory) FindAll(ctx context.Context) ([]labor.Labor, error) {
	return m.FindByCriteria(ctx, nil)
}

// FindByCriteria returns every record matching all criteria.
func (m *Memory) FindByCriteria(ctx context.Context, criteria []Criterion) ([]labor.Labor, error) {
	if err := asStoreError(ctx.Err()); err != nil {
		return nil, err
	}
	matchers := make([]func(labor.Labor) bool, 0, len(criteria))
	for _, criterion := range criteria {
		matcher, err := matcherFor(criterion)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, matcher)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := []labor.Labor{}
	for _, l := range m.records {
		matches := true
		for _, matcher := range matchers {
			if !matcher(*l) {
				matches = false
				break
			}
		}
		if matches {
			result = append(result, l.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Erzeugt.Before(result[j].Erzeugt) })
	return result, nil
}

func matcherFor(criterion Criterion) (func(labor.Labor) bool, error) {
	expr := criterion.Expr
	if criterion.IgnoreCase {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	field := criterion.Field
	return func(l labor.Labor) bool {
		return re.MatchString(fieldValue(l, field))
	}, nil
}

func fieldValue(l labor.Labor, field string) string {
	switch field {
	case FieldName:
		return l.Name
	case FieldTelefonnummer:
		return l.Telefonnummer
	case FieldFax:
		return l.Fax
	case FieldPlz:
		return l.Adresse.Plz
	case FieldOrt:
		return l.Adresse.Ort
	}
	return ""
}

// Insert persists a new record with version 0.
func (m *Memory) Insert(ctx context.Context, l *labor.Labor) (*labor.Labor, error) {
	if err := asStoreError(ctx.Err()); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	created := l.Clone()
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	created.Version = 0
	created.User = nil
	now := time.Now().UTC()
	created.Erzeugt = now
	created.Aktualisiert = now
	stored := created.Clone()
	m.records[created.ID] = &stored
	return &created, nil
}

// Update writes the record if the stored version matches expectedVersion.
func (m *Memory) Update(ctx context.Context, l *labor.Labor, expectedVersion int) (*labor.Labor, error) {
	if err := asStoreError(ctx.Err()); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.records[l.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if current.Version != expectedVersion {
		return nil, ErrVersionOutdated
	}

	updated := l.Clone()
	updated.Version = current.Version + 1
	updated.User = nil
	updated.Erzeugt = current.Erzeugt
	updated.Aktualisiert = time.Now().UTC()
	stored := updated.Clone()
	m.records[updated.ID] = &stored
	return &updated, nil
}

// DeleteByID removes the record and returns the number of records removed.
func (m *Memory) DeleteByID(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := asStoreError(ctx.Err()); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return 0, nil
	}
	delete(m.records, id)
	return 1, nil
}

// Exists reports whether a record exists for the id.
func (m *Memory) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := asStoreError(ctx.Err()); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[id]
	return ok, nil
}

// DistinctNamesByPrefix returns the distinct laboratory names starting
// with the prefix, case-insensitively.
func (m *Memory) DistinctNamesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	if err := asStoreError(ctx.Err()); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var names []string
	lowered := strings.ToLower(prefix)
	for _, l := range m.records {
		if !strings.HasPrefix(strings.ToLower(l.Name), lowered) {
			continue
		}
		if _, ok := seen[l.Name]; ok {
			continue
		}
		seen[l.Name] = struct{}{}
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names, nil
}

// VersionByID returns the current version of the record or ErrNotFound.
func (m *Memory) VersionByID(ctx context.Context, id uuid.UUID) (int, error) {
	if err := asStoreError(ctx.Err()); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.records[id]
	if !ok {
		return 0, ErrNotFound
	}
	return l.Version, nil
}
