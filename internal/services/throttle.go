package services

import (
	"sync"
	"time"

	"github.com/BradenHooton/doorman/internal/models"
)

// Lockout policy. These are fixed literals, not read from configuration.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 5 * time.Minute
)

// ThrottleConfig holds the consecutive-failure lockout policy
type ThrottleConfig struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// DefaultThrottleConfig returns the 5 failures / 5 minutes policy
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		MaxFailedAttempts: DefaultMaxFailedAttempts,
		LockoutDuration:   DefaultLockoutDuration,
	}
}

// NextFailure computes the record that follows one more failed login.
// The count only grows; once it reaches the threshold every further failure
// re-arms a fresh window starting at now. Below the threshold the record
// carries no expiry.
func (c ThrottleConfig) NextFailure(email string, current *models.AttemptRecord, now time.Time) *models.AttemptRecord {
	count := 1
	if current != nil {
		count = current.FailedCount + 1
	}

	next := &models.AttemptRecord{
		Email:       email,
		FailedCount: count,
	}
	if count >= c.MaxFailedAttempts {
		lockedUntil := now.Add(c.LockoutDuration)
		next.LockedUntil = &lockedUntil
	}
	return next
}

// keyedMutex serializes work per key. Entries are dropped once nobody holds
// or waits on them, so the map only grows with concurrent distinct keys.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is held and returns its release func
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()

	return func() {
		l.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
