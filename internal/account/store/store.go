package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/laundrydesk/laundrydesk/internal/account"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindByCode(ctx context.Context, code string) (*account.Account, error) {
	query := `
		SELECT id, code, balance, created_at
		FROM accounts
		WHERE code = $1
	`

	var acc account.Account

	err := s.db.QueryRowContext(ctx, query, code).Scan(&acc.ID, &acc.Code, &acc.Balance, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}

		return nil, fmt.Errorf("finding account %q: %w", code, err)
	}

	return &acc, nil
}
