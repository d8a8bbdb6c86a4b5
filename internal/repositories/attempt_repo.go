package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/doorman/internal/database"
	"github.com/BradenHooton/doorman/internal/models"
)

// AttemptRepository persists consecutive login failures in login_attempt_records
type AttemptRepository struct {
	db *database.DB
}

func NewAttemptRepository(db *database.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) GetAttempt(ctx context.Context, email string) (*models.AttemptRecord, error) {
	query := `
		SELECT email, failed_count, locked_until
		FROM login_attempt_records WHERE email = $1
	`

	var record models.AttemptRecord
	var lockedUntil *time.Time
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(&record.Email, &record.FailedCount, &lockedUntil)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	record.LockedUntil = lockedUntil
	return &record, nil
}

// PutAttempt upserts the record. A nil LockedUntil clears any stored expiry.
func (r *AttemptRepository) PutAttempt(ctx context.Context, record *models.AttemptRecord) error {
	query := `
		INSERT INTO login_attempt_records (email, failed_count, locked_until, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (email) DO UPDATE
		SET failed_count = EXCLUDED.failed_count,
			locked_until = EXCLUDED.locked_until,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool.Exec(ctx, query, record.Email, record.FailedCount, record.LockedUntil)
	return database.MapPostgresError(err)
}

func (r *AttemptRepository) DeleteAttempt(ctx context.Context, email string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM login_attempt_records WHERE email = $1`, email)
	return database.MapPostgresError(err)
}
