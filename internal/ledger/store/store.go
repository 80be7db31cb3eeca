package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/laundrydesk/laundrydesk/internal/invoice"
	"github.com/laundrydesk/laundrydesk/internal/ledger"
)

// sequenceLockKey guards invoice id allocation across drop-off transactions.
const sequenceLockKey int64 = 0x4c44_494e_5653_4551

const pgUniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dropOffTx struct {
	tx *sql.Tx
}

// BeginDropOff opens a transaction holding the invoice sequence lock until
// it commits or rolls back.
func (s *Store) BeginDropOff(ctx context.Context) (ledger.DropOffTx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning drop-off tx: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", sequenceLockKey); err != nil {
		dbTx.Rollback()
		return nil, fmt.Errorf("acquiring sequence lock: %w", err)
	}

	return &dropOffTx{tx: dbTx}, nil
}

func (d *dropOffTx) Commit() error   { return d.tx.Commit() }
func (d *dropOffTx) Rollback() error { return d.tx.Rollback() }

func (d *dropOffTx) MaxInvoiceID(ctx context.Context) (int64, error) {
	var maxID int64
	if err := d.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM invoices`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("reading max invoice id: %w", err)
	}

	return maxID, nil
}

func (d *dropOffTx) InsertInvoice(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (id, code, account_id, created_at, ready_by, status, balance_before, balance_after, total_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := d.tx.ExecContext(ctx, query,
		inv.ID,
		inv.Code,
		inv.AccountID,
		inv.CreatedAt,
		inv.ReadyBy,
		string(inv.Status),
		inv.BalanceBefore,
		inv.BalanceAfter,
		inv.TotalCost,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("inserting invoice %s: %w", inv.Code, ledger.ErrDuplicateInvoice)
		}

		return fmt.Errorf("inserting invoice %s: %w", inv.Code, err)
	}

	return nil
}

func (d *dropOffTx) InsertLines(ctx context.Context, lines []invoice.Line) error {
	query := `
		INSERT INTO invoice_lines (invoice_id, item_id, serial_no, tag_no)
		VALUES ($1, $2, $3, $4)
	`

	for _, l := range lines {
		if _, err := d.tx.ExecContext(ctx, query, l.InvoiceID, l.ItemID, l.SerialNo, l.TagNo); err != nil {
			return fmt.Errorf("inserting line %d: %w", l.SerialNo, err)
		}
	}

	return nil
}

func (d *dropOffTx) SetBalance(ctx context.Context, accountID, expected, balance int64) error {
	query := `
		UPDATE accounts
		SET balance = $1
		WHERE id = $2 AND balance = $3
	`

	res, err := d.tx.ExecContext(ctx, query, balance, accountID, expected)
	if err != nil {
		return fmt.Errorf("updating balance: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating balance: %w", err)
	}

	if n == 0 {
		return ledger.ErrBalanceChanged
	}

	return nil
}
