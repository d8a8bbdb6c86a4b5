package repositories

import (
	"context"

	"github.com/BradenHooton/doorman/internal/database"
	"github.com/BradenHooton/doorman/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository persists credential accounts in the accounts table
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

func (r *AccountRepository) GetAccount(ctx context.Context, email string) (*models.Account, error) {
	query := `
		SELECT id, email, name, password_hash, created_at
		FROM accounts WHERE email = $1
	`

	var account models.Account
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&account.ID, &account.Email, &account.Name, &account.PasswordHash, &account.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &account, nil
}

// CreateAccount inserts the account; the unique email index reports a duplicate as models.ErrConflict
func (r *AccountRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		account.ID, account.Email, account.Name, account.PasswordHash, account.CreatedAt,
	)
	return database.MapPostgresError(err)
}
