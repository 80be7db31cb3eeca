package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/laundrydesk/laundrydesk/internal/invoice"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Expected column order matches selectInvoiceColumns.
func scanInvoice(s scanner) (*invoice.Invoice, error) {
	var inv invoice.Invoice

	var status string

	if err := s.Scan(
		&inv.ID, &inv.Code, &inv.AccountID, &inv.AccountCode,
		&inv.CreatedAt, &inv.ReadyBy, &status,
		&inv.BalanceBefore, &inv.BalanceAfter, &inv.TotalCost,
	); err != nil {
		return nil, err
	}

	inv.Status = invoice.Status(status)

	return &inv, nil
}

const selectInvoiceColumns = `
	i.id, i.code, i.account_id, a.code AS account_code,
	i.created_at, i.ready_by, i.status,
	i.balance_before, i.balance_after, i.total_cost
`

func (s *Store) MaxInvoiceID(ctx context.Context) (int64, error) {
	var maxID int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM invoices`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("reading max invoice id: %w", err)
	}

	return maxID, nil
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices i
		JOIN accounts a ON a.id = i.account_id
		WHERE i.id = $1`

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, invoice.ErrNotFound
		}

		return nil, fmt.Errorf("getting invoice %d: %w", id, err)
	}

	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices i
		JOIN accounts a ON a.id = i.account_id`

	var args []any

	if filter.Status != nil {
		query += " WHERE i.status = $1"

		args = append(args, *filter.Status)
	}

	query += " ORDER BY i.id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invs []*invoice.Invoice

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}

		invs = append(invs, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoices: %w", err)
	}

	return invs, nil
}

func (s *Store) ListLines(ctx context.Context, invoiceID int64) ([]invoice.Line, error) {
	query := `
		SELECT invoice_id, item_id, serial_no, tag_no
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY serial_no ASC
	`

	rows, err := s.db.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("listing invoice lines: %w", err)
	}
	defer rows.Close()

	var lines []invoice.Line

	for rows.Next() {
		var l invoice.Line
		if err := rows.Scan(&l.InvoiceID, &l.ItemID, &l.SerialNo, &l.TagNo); err != nil {
			return nil, fmt.Errorf("scanning invoice line: %w", err)
		}

		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoice lines: %w", err)
	}

	return lines, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id int64, status invoice.Status) error {
	query := `
		UPDATE invoices
		SET status = $1,
		    returned_at = CASE WHEN $1 = 'Returned' THEN NOW() ELSE NULL END
		WHERE id = $2
	`

	res, err := s.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("updating invoice status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating invoice status: %w", err)
	}

	if n == 0 {
		return invoice.ErrNotFound
	}

	return nil
}
