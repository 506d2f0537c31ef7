package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pixelmend/pixelmend/internal/core/domain"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetOrCreate returns the account for email, inserting an unverified record
// on first sight. The upsert keeps concurrent first requests from racing.
func (r *AccountRepository) GetOrCreate(ctx context.Context, email string) (*domain.Account, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO accounts (email, verified, created_at)
VALUES ($1, FALSE, $2)
ON CONFLICT (email) DO NOTHING
`, email, now)
	if err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
SELECT email, verified, created_at
FROM accounts
WHERE email = $1
`, email)

	var account domain.Account
	if err := row.Scan(&account.Email, &account.Verified, &account.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account vanished after upsert: email=%s", email)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}
