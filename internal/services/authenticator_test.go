package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/doorman/internal/models"
	"github.com/BradenHooton/doorman/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("connection refused")

func newTestAuthenticator(t *testing.T, accounts AccountRepository, attempts AttemptRepository, clock *FakeClock) *CredentialAuthenticator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	authenticator, err := NewCredentialAuthenticator(accounts, attempts, logger, WithClock(clock.Now))
	require.NoError(t, err)
	return authenticator
}

func newMemoryAuthenticator(t *testing.T) (*CredentialAuthenticator, *repositories.MemoryStore, *FakeClock) {
	t.Helper()
	store := repositories.NewMemoryStore()
	clock := NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	return newTestAuthenticator(t, store, store, clock), store, clock
}

// ============================================================================
// Registration
// ============================================================================

func TestAuthenticate_Register_ThenLogin(t *testing.T) {
	auth, _, _ := newMemoryAuthenticator(t)
	ctx := context.Background()

	identity, err := auth.Authenticate(ctx, "u@test.com", "pw1", true)
	require.NoError(t, err)
	assert.NotEmpty(t, identity.ID)
	assert.Equal(t, "u", identity.Name)
	assert.Equal(t, "u@test.com", identity.Email)

	loggedIn, err := auth.Authenticate(ctx, "u@test.com", "pw1", false)
	require.NoError(t, err)
	assert.Equal(t, identity, loggedIn)
}

func TestAuthenticate_Register_StoresVerifierNotPassword(t *testing.T) {
	auth, store, _ := newMemoryAuthenticator(t)
	ctx := context.Background()

	_, err := auth.Authenticate(ctx, "Alice.Smith@Example.com", "pw1", true)
	require.NoError(t, err)

	account, err := store.GetAccount(ctx, "alice.smith@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice.smith", account.Name)
	assert.NotEqual(t, "pw1", account.PasswordHash)
	assert.NotEmpty(t, account.PasswordHash)
}

func TestAuthenticate_Register_DuplicateNormalizedEmail(t *testing.T) {
	auth, _, _ := newMemoryAuthenticator(t)
	ctx := context.Background()

	_, err := auth.Authenticate(ctx, "A@x.com", "pw1", true)
	require.NoError(t, err)

	identity, err := auth.Authenticate(ctx, "a@x.com", "other", true)
	assert.Nil(t, identity)
	assert.ErrorIs(t, err, models.ErrAlreadyExists)
}

func TestAuthenticate_Register_ClearsAttemptRecord(t *testing.T) {
	auth, store, _ := newMemoryAuthenticator(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := auth.Authenticate(ctx, "new@x.com", "guess", false)
		require.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	_, err := auth.Authenticate(ctx, "new@x.com", "pw1", true)
	require.NoError(t, err)

	_, err = store.GetAttempt(ctx, "new@x.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAuthenticate_Register_ConflictOnCreate(t *testing.T) {
	accounts := &MockAccountRepository{
		CreateAccountFunc: func(ctx context.Context, account *models.Account) error {
			return models.ErrConflict
		},
	}
	auth := newTestAuthenticator(t, accounts, &MockAttemptRepository{}, NewFakeClock(time.Now()))

	_, err := auth.Authenticate(context.Background(), "race@x.com", "pw1", true)
	assert.ErrorIs(t, err, models.ErrAlreadyExists)
}

// ============================================================================
// Login failures and enumeration resistance
// ============================================================================

func TestAuthenticate_Login_UnknownAndWrongPasswordAreIndistinguishable(t *testing.T) {
	auth, _, _ := newMemoryAuthenticator(t)
	ctx := context.Background()

	_, err := auth.Authenticate(ctx, "known@x.com", "pw1", true)
	require.NoError(t, err)

	_, unknownErr := auth.Authenticate(ctx, "nobody@x.com", "pw1", false)
	_, wrongErr := auth.Authenticate(ctx, "known@x.com", "wrong", false)

	require.ErrorIs(t, unknownErr, models.ErrInvalidCredentials)
	require.ErrorIs(t, wrongErr, models.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())

	var unknownRejection, wrongRejection *models.Rejection
	require.True(t, errors.As(unknownErr, &unknownRejection))
	require.True(t, errors.As(wrongErr, &wrongRejection))
	assert.Equal(t, *unknownRejection, *wrongRejection)
}

func TestAuthenticate_Login_UnknownEmailCountsFailures(t *testing.T) {
	auth, store, _ := newMemoryAuthenticator(t)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		_, err := auth.Authenticate(ctx, "ghost@x.com", "pw", false)
		require.ErrorIs(t, err, models.ErrInvalidCredentials)

		record, err := store.GetAttempt(ctx, "ghost@x.com")
		require.NoError(t, err)
		assert.Equal(t, i, record.FailedCount)
		assert.Nil(t, record.LockedUntil)
	}

	_, err := store.GetAccount(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, models.ErrNotFound, "failed logins must not create accounts")
}

// ============================================================================
// Lockout
// ============================================================================

func TestAuthenticate_LockoutScenario(t *testing.T) {
	auth, store, clock := newMemoryAuthenticator(t)
	ctx := context.Background()

	identity, err := auth.Authenticate(ctx, "u@test.com", "pw1", true)
	require.NoError(t, err)
	assert.Equal(t, "u", identity.Name)

	for i := 0; i < 5; i++ {
		_, err := auth.Authenticate(ctx, "u@test.com", "wrong", false)
		require.ErrorIs(t, err, models.ErrInvalidCredentials, "attempt %d", i+1)
	}

	// Correct password is refused while locked
	_, err = auth.Authenticate(ctx, "u@test.com", "pw1", false)
	assert.ErrorIs(t, err, models.ErrTemporarilyLocked)

	clock.Advance(4 * time.Minute)
	_, err = auth.Authenticate(ctx, "u@test.com", "pw1", false)
	assert.ErrorIs(t, err, models.ErrTemporarilyLocked)

	clock.Advance(time.Minute + time.Second)
	identity, err = auth.Authenticate(ctx, "u@test.com", "pw1", false)
	require.NoError(t, err)
	assert.Equal(t, "u@test.com", identity.Email)

	_, err = store.GetAttempt(ctx, "u@test.com")
	assert.ErrorIs(t, err, models.ErrNotFound, "success clears the attempt record")
}

func TestAuthenticate_LockoutAppliesToRegistration(t *testing.T) {
	auth, _, _ := newMemoryAuthenticator(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = auth.Authenticate(ctx, "x@x.com", "pw", false)
	}

	_, err := auth.Authenticate(ctx, "x@x.com", "pw1", true)
	assert.ErrorIs(t, err, models.ErrTemporarilyLocked)
}

func TestAuthenticate_FailuresDuringLockoutDoNotExtendIt(t *testing.T) {
	auth, store, clock := newMemoryAuthenticator(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = auth.Authenticate(ctx, "x@x.com", "pw", false)
	}
	before, err := store.GetAttempt(ctx, "x@x.com")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	for i := 0; i < 3; i++ {
		_, err := auth.Authenticate(ctx, "x@x.com", "pw", false)
		require.ErrorIs(t, err, models.ErrTemporarilyLocked)
	}

	after, err := store.GetAttempt(ctx, "x@x.com")
	require.NoError(t, err)
	assert.Equal(t, before.FailedCount, after.FailedCount)
	assert.True(t, before.LockedUntil.Equal(*after.LockedUntil))
}

func TestAuthenticate_CountSurvivesExpiredLockout(t *testing.T) {
	auth, _, clock := newMemoryAuthenticator(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = auth.Authenticate(ctx, "x@x.com", "pw", false)
	}
	clock.Advance(6 * time.Minute)

	// The count is not reset by time, so the next failure locks again straight away
	_, err := auth.Authenticate(ctx, "x@x.com", "pw", false)
	require.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = auth.Authenticate(ctx, "x@x.com", "pw", false)
	assert.ErrorIs(t, err, models.ErrTemporarilyLocked)
}

func TestAuthenticate_SuccessResetsCount(t *testing.T) {
	auth, store, _ := newMemoryAuthenticator(t)
	ctx := context.Background()

	_, err := auth.Authenticate(ctx, "u@test.com", "pw1", true)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, _ = auth.Authenticate(ctx, "u@test.com", "wrong", false)
	}
	_, err = auth.Authenticate(ctx, "u@test.com", "pw1", false)
	require.NoError(t, err)

	_, err = auth.Authenticate(ctx, "u@test.com", "wrong", false)
	require.ErrorIs(t, err, models.ErrInvalidCredentials)

	record, err := store.GetAttempt(ctx, "u@test.com")
	require.NoError(t, err)
	assert.Equal(t, 1, record.FailedCount)
	assert.Nil(t, record.LockedUntil)

	_, err = auth.Authenticate(ctx, "u@test.com", "pw1", false)
	assert.NoError(t, err)
}

func TestAuthenticate_LockoutIsPerEmail(t *testing.T) {
	auth, _, _ := newMemoryAuthenticator(t)
	ctx := context.Background()

	_, err := auth.Authenticate(ctx, "b@x.com", "pw1", true)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _ = auth.Authenticate(ctx, "a@x.com", "pw", false)
	}
	_, err = auth.Authenticate(ctx, "a@x.com", "pw", false)
	require.ErrorIs(t, err, models.ErrTemporarilyLocked)

	identity, err := auth.Authenticate(ctx, "b@x.com", "pw1", false)
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", identity.Email)
}

func TestAuthenticate_NormalizesEmailForLockout(t *testing.T) {
	auth, _, _ := newMemoryAuthenticator(t)
	ctx := context.Background()

	emails := []string{"Mixed@X.com", "MIXED@x.com", "mixed@X.COM", "mixed@x.com", "MiXeD@x.CoM"}
	for _, email := range emails {
		_, _ = auth.Authenticate(ctx, email, "pw", false)
	}

	_, err := auth.Authenticate(ctx, "mixed@x.com", "pw", false)
	assert.ErrorIs(t, err, models.ErrTemporarilyLocked)
}

// ============================================================================
// Missing credentials
// ============================================================================

func TestAuthenticate_MissingCredentials_DoesNotTouchStores(t *testing.T) {
	touched := false
	accounts := &MockAccountRepository{
		GetAccountFunc: func(ctx context.Context, email string) (*models.Account, error) {
			touched = true
			return nil, models.ErrNotFound
		},
	}
	attempts := &MockAttemptRepository{
		GetAttemptFunc: func(ctx context.Context, email string) (*models.AttemptRecord, error) {
			touched = true
			return nil, models.ErrNotFound
		},
		PutAttemptFunc: func(ctx context.Context, record *models.AttemptRecord) error {
			touched = true
			return nil
		},
	}
	auth := newTestAuthenticator(t, accounts, attempts, NewFakeClock(time.Now()))

	tests := []struct {
		name       string
		email      string
		password   string
		isRegister bool
	}{
		{"no email", "", "pw1", false},
		{"no password", "u@test.com", "", false},
		{"neither", "", "", false},
		{"register without password", "u@test.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := auth.Authenticate(context.Background(), tt.email, tt.password, tt.isRegister)
			assert.Nil(t, identity)
			assert.ErrorIs(t, err, models.ErrMissingCredentials)
		})
	}
	assert.False(t, touched, "missing credentials must not consult storage")
}

// ============================================================================
// Storage failures
// ============================================================================

func TestAuthenticate_StorageFailures(t *testing.T) {
	tests := []struct {
		name       string
		accounts   *MockAccountRepository
		attempts   *MockAttemptRepository
		isRegister bool
	}{
		{
			name: "attempt lookup fails",
			attempts: &MockAttemptRepository{
				GetAttemptFunc: func(ctx context.Context, email string) (*models.AttemptRecord, error) {
					return nil, errStoreDown
				},
			},
		},
		{
			name: "account lookup fails on login",
			accounts: &MockAccountRepository{
				GetAccountFunc: func(ctx context.Context, email string) (*models.Account, error) {
					return nil, errStoreDown
				},
			},
		},
		{
			name: "account lookup fails on register",
			accounts: &MockAccountRepository{
				GetAccountFunc: func(ctx context.Context, email string) (*models.Account, error) {
					return nil, errStoreDown
				},
			},
			isRegister: true,
		},
		{
			name: "account create fails",
			accounts: &MockAccountRepository{
				CreateAccountFunc: func(ctx context.Context, account *models.Account) error {
					return errStoreDown
				},
			},
			isRegister: true,
		},
		{
			name: "failure bookkeeping fails",
			attempts: &MockAttemptRepository{
				PutAttemptFunc: func(ctx context.Context, record *models.AttemptRecord) error {
					return errStoreDown
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := tt.accounts
			if accounts == nil {
				accounts = &MockAccountRepository{}
			}
			attempts := tt.attempts
			if attempts == nil {
				attempts = &MockAttemptRepository{}
			}
			auth := newTestAuthenticator(t, accounts, attempts, NewFakeClock(time.Now()))

			_, err := auth.Authenticate(context.Background(), "u@test.com", "pw1", tt.isRegister)
			assert.ErrorIs(t, err, models.ErrStorageUnavailable)
			assert.NotErrorIs(t, err, models.ErrInvalidCredentials)
		})
	}
}

func TestAuthenticate_Register_SucceedsWhenAttemptCleanupFails(t *testing.T) {
	attempts := &MockAttemptRepository{
		DeleteAttemptFunc: func(ctx context.Context, email string) error {
			return errStoreDown
		},
	}
	auth := newTestAuthenticator(t, &MockAccountRepository{}, attempts, NewFakeClock(time.Now()))

	identity, err := auth.Authenticate(context.Background(), "u@test.com", "pw1", true)
	require.NoError(t, err)
	assert.Equal(t, "u", identity.Name)
}

// ============================================================================
// Concurrency
// ============================================================================

func TestAuthenticate_ConcurrentFailuresAreNotLost(t *testing.T) {
	auth, store, _ := newMemoryAuthenticator(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = auth.Authenticate(ctx, "race@x.com", "pw", false)
		}()
	}
	wg.Wait()

	record, err := store.GetAttempt(ctx, "race@x.com")
	require.NoError(t, err)
	assert.Equal(t, 4, record.FailedCount)
}

func TestAuthenticate_ConcurrentRegistrationCreatesOneAccount(t *testing.T) {
	auth, _, _ := newMemoryAuthenticator(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := auth.Authenticate(ctx, "dup@x.com", "pw1", true)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, models.ErrAlreadyExists):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 2, conflicts)
}
