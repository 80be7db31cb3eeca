package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laundrydesk/laundrydesk/internal/account"
	"github.com/laundrydesk/laundrydesk/internal/account/store"
)

func TestStore_FindByCode(t *testing.T) {
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		setup   func(m sqlmock.Sqlmock)
		want    *account.Account
		wantErr bool
		isErr   error
	}{
		{
			name: "Found",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT id, code, balance, created_at\\s+FROM accounts\\s+WHERE code = \\$1").
					WithArgs("A-7").
					WillReturnRows(sqlmock.NewRows([]string{"id", "code", "balance", "created_at"}).
						AddRow(7, "A-7", 100, created))
			},
			want: &account.Account{ID: 7, Code: "A-7", Balance: 100, CreatedAt: created},
		},
		{
			name: "NotFound",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("FROM accounts").WithArgs("A-7").WillReturnError(sql.ErrNoRows)
			},
			wantErr: true,
			isErr:   account.ErrNotFound,
		},
		{
			name: "DBError",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("FROM accounts").WithArgs("A-7").WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.setup(mock)

			got, err := store.New(db).FindByCode(context.Background(), "A-7")

			if tt.wantErr {
				assert.Error(t, err)

				if tt.isErr != nil {
					assert.ErrorIs(t, err, tt.isErr)
				} else {
					assert.NotErrorIs(t, err, account.ErrNotFound)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
