package store_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laundrydesk/laundrydesk/internal/invoice"
	"github.com/laundrydesk/laundrydesk/internal/invoice/store"
)

var invoiceColumns = []string{
	"id", "code", "account_id", "account_code",
	"created_at", "ready_by", "status",
	"balance_before", "balance_after", "total_cost",
}

func newStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return store.New(db), mock
}

func TestStore_MaxInvoiceID(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		err     error
		want    int64
		wantErr bool
	}{
		{name: "EmptyTable", rows: sqlmock.NewRows([]string{"max"}).AddRow(0), want: 0},
		{name: "Existing", rows: sqlmock.NewRows([]string{"max"}).AddRow(41), want: 41},
		{name: "DBError", err: errors.New("connection reset"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newStore(t)

			q := mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(id), 0) FROM invoices"))
			if tt.err != nil {
				q.WillReturnError(tt.err)
			} else {
				q.WillReturnRows(tt.rows)
			}

			got, err := s.MaxInvoiceID(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_GetInvoice(t *testing.T) {
	created := time.Date(2024, 10, 17, 9, 0, 0, 0, time.UTC)

	t.Run("Found", func(t *testing.T) {
		s, mock := newStore(t)

		mock.ExpectQuery("FROM invoices i\\s+JOIN accounts a").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows(invoiceColumns).AddRow(
				3, "CC2410170003", 7, "A-7", created, created.Add(24*time.Hour), "Ongoing", 100, 89, 11,
			))

		got, err := s.GetInvoice(context.Background(), 3)
		require.NoError(t, err)

		assert.Equal(t, "CC2410170003", got.Code)
		assert.Equal(t, "A-7", got.AccountCode)
		assert.Equal(t, invoice.StatusOngoing, got.Status)
		assert.Equal(t, int64(89), got.BalanceAfter)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		s, mock := newStore(t)

		mock.ExpectQuery("FROM invoices i").
			WithArgs(int64(9)).
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetInvoice(context.Background(), 9)
		assert.ErrorIs(t, err, invoice.ErrNotFound)
	})
}

func TestStore_ListInvoices(t *testing.T) {
	created := time.Date(2024, 10, 17, 9, 0, 0, 0, time.UTC)
	ongoing := invoice.StatusOngoing

	tests := []struct {
		name   string
		filter invoice.ListFilter
		setup  func(m sqlmock.Sqlmock)
	}{
		{
			name:   "All",
			filter: invoice.ListFilter{},
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`JOIN accounts a ON a.id = i.account_id ORDER BY i.id ASC`).
					WithoutArgs().
					WillReturnRows(sqlmock.NewRows(invoiceColumns).
						AddRow(1, "CC2410170001", 7, "A-7", created, created, "Returned", 50, 40, 10).
						AddRow(2, "CC2410170002", 7, "A-7", created, created, "Ongoing", 40, 30, 10))
			},
		},
		{
			name:   "ByStatus",
			filter: invoice.ListFilter{Status: &ongoing},
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`WHERE i.status = \$1 ORDER BY i.id ASC`).
					WithArgs(invoice.StatusOngoing).
					WillReturnRows(sqlmock.NewRows(invoiceColumns).
						AddRow(1, "CC2410170001", 7, "A-7", created, created, "Ongoing", 50, 40, 10).
						AddRow(2, "CC2410170002", 7, "A-7", created, created, "Ongoing", 40, 30, 10))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newStore(t)
			tt.setup(mock)

			got, err := s.ListInvoices(context.Background(), tt.filter)
			require.NoError(t, err)
			require.Len(t, got, 2)

			assert.Equal(t, int64(1), got[0].ID)
			assert.Equal(t, int64(2), got[1].ID)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_ListLines(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery("FROM invoice_lines").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"invoice_id", "item_id", "serial_no", "tag_no"}).
			AddRow(5, 1, 1, 1).
			AddRow(5, 1, 2, 2).
			AddRow(5, 2, 3, 3))

	got, err := s.ListLines(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, []invoice.Line{
		{InvoiceID: 5, ItemID: 1, SerialNo: 1, TagNo: 1},
		{InvoiceID: 5, ItemID: 1, SerialNo: 2, TagNo: 2},
		{InvoiceID: 5, ItemID: 2, SerialNo: 3, TagNo: 3},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateStatus(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "Updated", affected: 1},
		{name: "Missing", affected: 0, wantErr: invoice.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newStore(t)

			mock.ExpectExec("UPDATE invoices").
				WithArgs("Returned", int64(4)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := s.UpdateStatus(context.Background(), 4, invoice.StatusReturned)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
