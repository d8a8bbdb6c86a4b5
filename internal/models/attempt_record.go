package models

import "time"

// AttemptRecord tracks consecutive failed logins for one normalized email.
// It may exist for an email that has no Account.
type AttemptRecord struct {
	Email       string     `db:"email"`
	FailedCount int        `db:"failed_count"`
	LockedUntil *time.Time `db:"locked_until"` // nil when no lockout has been armed
}

// IsLocked reports whether the lockout window is still open at now.
func (r *AttemptRecord) IsLocked(now time.Time) bool {
	return r != nil && r.LockedUntil != nil && r.LockedUntil.After(now)
}
