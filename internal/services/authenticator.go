package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/doorman/internal/models"
	pkgauth "github.com/BradenHooton/doorman/pkg/auth"
	pkglogger "github.com/BradenHooton/doorman/pkg/logger"
	"github.com/google/uuid"
)

// AccountRepository stores credential accounts keyed by normalized email.
// GetAccount returns models.ErrNotFound for an unknown email and CreateAccount
// returns models.ErrConflict when the email is taken.
type AccountRepository interface {
	GetAccount(ctx context.Context, email string) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error
}

// AttemptRepository stores consecutive-failure records keyed by normalized email.
// GetAttempt returns models.ErrNotFound when no record exists; DeleteAttempt is
// a no-op for an unknown email.
type AttemptRepository interface {
	GetAttempt(ctx context.Context, email string) (*models.AttemptRecord, error)
	PutAttempt(ctx context.Context, record *models.AttemptRecord) error
	DeleteAttempt(ctx context.Context, email string) error
}

// CredentialAuthenticator registers and signs in email/password accounts and
// locks an email out after repeated failures.
type CredentialAuthenticator struct {
	accounts  AccountRepository
	attempts  AttemptRepository
	throttle  ThrottleConfig
	locks     *keyedMutex
	clock     func() time.Time
	dummyHash string
	logger    *slog.Logger
}

// AuthenticatorOption customizes a CredentialAuthenticator
type AuthenticatorOption func(*CredentialAuthenticator)

// WithClock replaces time.Now, mainly for tests that need to step past a lockout
func WithClock(clock func() time.Time) AuthenticatorOption {
	return func(a *CredentialAuthenticator) {
		a.clock = clock
	}
}

// NewCredentialAuthenticator creates a CredentialAuthenticator over the given stores
func NewCredentialAuthenticator(accounts AccountRepository, attempts AttemptRepository, logger *slog.Logger, opts ...AuthenticatorOption) (*CredentialAuthenticator, error) {
	// Verified against when the account is missing so both failure paths pay for one bcrypt compare
	seed, err := pkgauth.GenerateRandomToken(pkgauth.StateTokenLen)
	if err != nil {
		return nil, err
	}
	dummyHash, err := pkgauth.HashPassword(seed)
	if err != nil {
		return nil, err
	}

	a := &CredentialAuthenticator{
		accounts:  accounts,
		attempts:  attempts,
		throttle:  DefaultThrottleConfig(),
		locks:     newKeyedMutex(),
		clock:     time.Now,
		dummyHash: dummyHash,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate registers (isRegister) or signs in the account for email.
// Every refusal is a *models.Rejection; other errors are internal failures.
func (a *CredentialAuthenticator) Authenticate(ctx context.Context, email, password string, isRegister bool) (*models.PublicIdentity, error) {
	if email == "" || password == "" {
		a.logger.Info("credential attempt rejected: missing credentials")
		return nil, models.ErrMissingCredentials
	}

	email = strings.ToLower(email)

	unlock := a.locks.Lock(email)
	defer unlock()

	now := a.clock()

	record, err := a.attempts.GetAttempt(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			a.logger.Error("failed to load attempt record", pkglogger.EmailAttr(email), slog.Any("error", err))
			return nil, models.ErrStorageUnavailable
		}
		record = nil
	}

	if record.IsLocked(now) {
		a.logger.Warn("credential attempt rejected: temporarily locked",
			pkglogger.EmailAttr(email),
			slog.Time("locked_until", *record.LockedUntil))
		return nil, models.ErrTemporarilyLocked
	}

	if isRegister {
		return a.register(ctx, email, password, now)
	}
	return a.login(ctx, email, password, record, now)
}

func (a *CredentialAuthenticator) register(ctx context.Context, email, password string, now time.Time) (*models.PublicIdentity, error) {
	_, err := a.accounts.GetAccount(ctx, email)
	if err == nil {
		a.logger.Info("registration rejected: account already exists", pkglogger.EmailAttr(email))
		return nil, models.ErrAlreadyExists
	}
	if !errors.Is(err, models.ErrNotFound) {
		a.logger.Error("failed to look up account", pkglogger.EmailAttr(email), slog.Any("error", err))
		return nil, models.ErrStorageUnavailable
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		a.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	account := &models.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         displayName(email),
		PasswordHash: hashedPassword,
		CreatedAt:    now,
	}

	if err := a.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrAlreadyExists
		}
		a.logger.Error("failed to create account", pkglogger.EmailAttr(email), slog.Any("error", err))
		return nil, models.ErrStorageUnavailable
	}

	// The account exists now, so a stale attempt record is logged rather than failing the registration
	if err := a.attempts.DeleteAttempt(ctx, email); err != nil {
		a.logger.Error("failed to clear attempt record after registration", pkglogger.EmailAttr(email), slog.Any("error", err))
	}

	a.logger.Info("account registered", slog.String("account_id", account.ID))
	return account.Identity(), nil
}

func (a *CredentialAuthenticator) login(ctx context.Context, email, password string, record *models.AttemptRecord, now time.Time) (*models.PublicIdentity, error) {
	account, err := a.accounts.GetAccount(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			a.logger.Error("failed to look up account", pkglogger.EmailAttr(email), slog.Any("error", err))
			return nil, models.ErrStorageUnavailable
		}

		_ = pkgauth.ComparePassword(a.dummyHash, password)
		return nil, a.recordFailure(ctx, email, record, now)
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, a.recordFailure(ctx, email, record, now)
	}

	if err := a.attempts.DeleteAttempt(ctx, email); err != nil {
		a.logger.Error("failed to clear attempt record", pkglogger.EmailAttr(email), slog.Any("error", err))
		return nil, models.ErrStorageUnavailable
	}

	a.logger.Info("account signed in", slog.String("account_id", account.ID))
	return account.Identity(), nil
}

// recordFailure bumps the failure count and always returns the rejection to hand back.
// Unknown email and wrong password both land here so neither can be told apart.
func (a *CredentialAuthenticator) recordFailure(ctx context.Context, email string, current *models.AttemptRecord, now time.Time) error {
	next := a.throttle.NextFailure(email, current, now)

	if err := a.attempts.PutAttempt(ctx, next); err != nil {
		a.logger.Error("failed to store attempt record", pkglogger.EmailAttr(email), slog.Any("error", err))
		return models.ErrStorageUnavailable
	}

	if next.LockedUntil != nil {
		a.logger.Warn("email locked after repeated failures",
			pkglogger.EmailAttr(email),
			slog.Int("failed_attempts", next.FailedCount),
			slog.Time("locked_until", *next.LockedUntil))
	} else {
		a.logger.Info("login failed: invalid credentials",
			pkglogger.EmailAttr(email),
			slog.Int("failed_attempts", next.FailedCount))
	}

	return models.ErrInvalidCredentials
}

// displayName is the local part of the email, everything before the first '@'
func displayName(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
