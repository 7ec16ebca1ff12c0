package directory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Memory is an in-memory directory for unit tests and local development.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewMemory returns an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]*Account)}
}

// FindByUsername returns the account or ErrNotFound.
func (m *Memory) FindByUsername(ctx context.Context, username string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[CanonicalUsername(username)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *account
	out.Roles = append([]string(nil), account.Roles...)
	return &out, nil
}

// Create stores a new account or returns ErrUsernameTaken.
func (m *Memory) Create(ctx context.Context, username, password string, roles []string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	canonical := CanonicalUsername(username)
	if _, ok := m.accounts[canonical]; ok {
		return nil, ErrUsernameTaken
	}
	account := &Account{
		ID:       uuid.New(),
		Username: canonical,
		Password: string(hash),
		Roles:    append([]string(nil), roles...),
		Created:  time.Now().UTC(),
	}
	m.accounts[canonical] = account
	out := *account
	out.Roles = append([]string(nil), account.Roles...)
	return &out, nil
}
