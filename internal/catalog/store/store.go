package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/laundrydesk/laundrydesk/internal/catalog"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListItems(ctx context.Context) ([]*catalog.Item, error) {
	query := `
		SELECT id, name, unit_cost
		FROM catalog_items
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing catalog items: %w", err)
	}
	defer rows.Close()

	var items []*catalog.Item

	for rows.Next() {
		var it catalog.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.UnitCost); err != nil {
			return nil, fmt.Errorf("scanning catalog item: %w", err)
		}

		items = append(items, &it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating catalog items: %w", err)
	}

	return items, nil
}

// UpsertItems inserts new items and reprices existing ones, matching on name
// without regard to case.
// Existing items keep their id so drop-off numbering order is stable.
func (s *Store) UpsertItems(ctx context.Context, items []*catalog.Item) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `
		INSERT INTO catalog_items (name, unit_cost)
		VALUES ($1, $2)
		ON CONFLICT ((lower(name))) DO UPDATE SET unit_cost = EXCLUDED.unit_cost
		RETURNING id
	`

	for _, it := range items {
		if err := dbTx.QueryRowContext(ctx, query, it.Name, it.UnitCost).Scan(&it.ID); err != nil {
			return fmt.Errorf("upserting catalog item %q: %w", it.Name, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
