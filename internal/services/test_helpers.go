package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/doorman/internal/models"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetAccountFunc    func(ctx context.Context, email string) (*models.Account, error)
	CreateAccountFunc func(ctx context.Context, account *models.Account) error
}

func (m *MockAccountRepository) GetAccount(ctx context.Context, email string) (*models.Account, error) {
	if m.GetAccountFunc != nil {
		return m.GetAccountFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	if m.CreateAccountFunc != nil {
		return m.CreateAccountFunc(ctx, account)
	}
	return nil
}

// MockAttemptRepository implements AttemptRepository for testing
type MockAttemptRepository struct {
	GetAttemptFunc    func(ctx context.Context, email string) (*models.AttemptRecord, error)
	PutAttemptFunc    func(ctx context.Context, record *models.AttemptRecord) error
	DeleteAttemptFunc func(ctx context.Context, email string) error
}

func (m *MockAttemptRepository) GetAttempt(ctx context.Context, email string) (*models.AttemptRecord, error) {
	if m.GetAttemptFunc != nil {
		return m.GetAttemptFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAttemptRepository) PutAttempt(ctx context.Context, record *models.AttemptRecord) error {
	if m.PutAttemptFunc != nil {
		return m.PutAttemptFunc(ctx, record)
	}
	return nil
}

func (m *MockAttemptRepository) DeleteAttempt(ctx context.Context, email string) error {
	if m.DeleteAttemptFunc != nil {
		return m.DeleteAttemptFunc(ctx, email)
	}
	return nil
}

// FakeClock is a manually advanced clock
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
