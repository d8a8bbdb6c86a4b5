package repositories

import (
	"context"
	"sync"

	"github.com/BradenHooton/doorman/internal/models"
)

// MemoryStore keeps accounts and attempt records in process memory.
// Contents are lost on restart and are not shared between instances.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	attempts map[string]models.AttemptRecord
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]models.Account),
		attempts: make(map[string]models.AttemptRecord),
	}
}

// GetAccount returns a copy of the account stored under email
func (s *MemoryStore) GetAccount(ctx context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &account, nil
}

// CreateAccount stores a new account, refusing a second one for the same email
func (s *MemoryStore) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.Email]; exists {
		return models.ErrConflict
	}
	s.accounts[account.Email] = *account
	return nil
}

// GetAttempt returns a copy of the attempt record for email
func (s *MemoryStore) GetAttempt(ctx context.Context, email string) (*models.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.attempts[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	if record.LockedUntil != nil {
		lockedUntil := *record.LockedUntil
		record.LockedUntil = &lockedUntil
	}
	return &record, nil
}

// PutAttempt replaces the attempt record for record.Email
func (s *MemoryStore) PutAttempt(ctx context.Context, record *models.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *record
	if record.LockedUntil != nil {
		lockedUntil := *record.LockedUntil
		stored.LockedUntil = &lockedUntil
	}
	s.attempts[record.Email] = stored
	return nil
}

// DeleteAttempt removes the attempt record for email, if any
func (s *MemoryStore) DeleteAttempt(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attempts, email)
	return nil
}

// HealthCheck always succeeds for the in-memory backend
func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}
