package invoice_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/laundrydesk/laundrydesk/internal/events"
	"github.com/laundrydesk/laundrydesk/internal/invoice"
)

type recorder struct {
	mu       sync.Mutex
	subjects []string
	events   []events.InvoiceEvent
	err      error
}

func (r *recorder) Publish(_ context.Context, subject string, ev events.InvoiceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subjects = append(r.subjects, subject)
	r.events = append(r.events, ev)

	return r.err
}

func TestService_MarkReturned(t *testing.T) {
	writeErr := errors.New("connection reset")

	type testCase struct {
		name         string
		ids          []int64
		setupMock    func(m *invoice.MockRepository)
		wantReturned int
		wantErr      bool
		wantEvents   []int64
	}

	tests := []testCase{
		{
			name: "FlipsOngoing",
			ids:  []int64{1, 2},
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().GetInvoice(gomock.Any(), int64(1)).Return(&invoice.Invoice{ID: 1, Status: invoice.StatusOngoing}, nil)
				m.EXPECT().UpdateStatus(gomock.Any(), int64(1), invoice.StatusReturned).Return(nil)
				m.EXPECT().GetInvoice(gomock.Any(), int64(2)).Return(&invoice.Invoice{ID: 2, Status: invoice.StatusOngoing}, nil)
				m.EXPECT().UpdateStatus(gomock.Any(), int64(2), invoice.StatusReturned).Return(nil)
			},
			wantReturned: 2,
			wantEvents:   []int64{1, 2},
		},
		{
			name: "AlreadyReturnedIsNoop",
			ids:  []int64{1},
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().GetInvoice(gomock.Any(), int64(1)).Return(&invoice.Invoice{ID: 1, Status: invoice.StatusReturned}, nil)
			},
			wantReturned: 0,
		},
		{
			name: "UnknownIsSkipped",
			ids:  []int64{9, 1},
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().GetInvoice(gomock.Any(), int64(9)).Return(nil, invoice.ErrNotFound)
				m.EXPECT().GetInvoice(gomock.Any(), int64(1)).Return(&invoice.Invoice{ID: 1, Status: invoice.StatusOngoing}, nil)
				m.EXPECT().UpdateStatus(gomock.Any(), int64(1), invoice.StatusReturned).Return(nil)
			},
			wantReturned: 1,
			wantEvents:   []int64{1},
		},
		{
			name: "DuplicateIDsOnce",
			ids:  []int64{1, 1},
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().GetInvoice(gomock.Any(), int64(1)).Return(&invoice.Invoice{ID: 1, Status: invoice.StatusOngoing}, nil)
				m.EXPECT().UpdateStatus(gomock.Any(), int64(1), invoice.StatusReturned).Return(nil)
			},
			wantReturned: 1,
			wantEvents:   []int64{1},
		},
		{
			name: "WriteFailureAbortsRest",
			ids:  []int64{1, 2, 3},
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().GetInvoice(gomock.Any(), int64(1)).Return(&invoice.Invoice{ID: 1, Status: invoice.StatusOngoing}, nil)
				m.EXPECT().UpdateStatus(gomock.Any(), int64(1), invoice.StatusReturned).Return(nil)
				m.EXPECT().GetInvoice(gomock.Any(), int64(2)).Return(&invoice.Invoice{ID: 2, Status: invoice.StatusOngoing}, nil)
				m.EXPECT().UpdateStatus(gomock.Any(), int64(2), invoice.StatusReturned).Return(writeErr)
			},
			wantReturned: 1,
			wantErr:      true,
			wantEvents:   []int64{1},
		},
		{
			name:         "EmptyBatch",
			ids:          nil,
			wantReturned: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := invoice.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			pub := &recorder{}
			svc := invoice.NewService(repo, invoice.WithPublisher(pub))

			n, err := svc.MarkReturned(context.Background(), tt.ids)
			assert.Equal(t, tt.wantReturned, n)

			if tt.wantErr {
				assert.ErrorIs(t, err, invoice.ErrReturnBatch)
				assert.ErrorIs(t, err, writeErr)

				var rerr *invoice.ReturnError
				require.ErrorAs(t, err, &rerr)
				assert.Equal(t, int64(2), rerr.InvoiceID)
			} else {
				assert.NoError(t, err)
			}

			var got []int64
			for _, ev := range pub.events {
				got = append(got, ev.InvoiceID)
				assert.Equal(t, string(invoice.StatusReturned), ev.Status)
			}

			assert.Equal(t, tt.wantEvents, got)

			for _, s := range pub.subjects {
				assert.Equal(t, events.SubjectInvoiceReturned, s)
			}
		})
	}
}

func TestService_MarkReturned_PublishFailureIgnored(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := invoice.NewMockRepository(ctrl)
	repo.EXPECT().GetInvoice(gomock.Any(), int64(1)).Return(&invoice.Invoice{ID: 1, Status: invoice.StatusOngoing}, nil)
	repo.EXPECT().UpdateStatus(gomock.Any(), int64(1), invoice.StatusReturned).Return(nil)

	svc := invoice.NewService(repo, invoice.WithPublisher(&recorder{err: errors.New("nats down")}))

	n, err := svc.MarkReturned(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_Details(t *testing.T) {
	t.Run("WithLines", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		repo.EXPECT().GetInvoice(gomock.Any(), int64(5)).Return(&invoice.Invoice{ID: 5, Code: "CC2410170005"}, nil)
		repo.EXPECT().ListLines(gomock.Any(), int64(5)).Return([]invoice.Line{
			{InvoiceID: 5, ItemID: 1, SerialNo: 1, TagNo: 1},
			{InvoiceID: 5, ItemID: 2, SerialNo: 2, TagNo: 2},
		}, nil)

		got, err := invoice.NewService(repo).Details(context.Background(), 5)
		require.NoError(t, err)
		assert.Len(t, got.Lines, 2)
	})

	t.Run("NotFound", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		repo.EXPECT().GetInvoice(gomock.Any(), int64(5)).Return(nil, invoice.ErrNotFound)

		_, err := invoice.NewService(repo).Details(context.Background(), 5)
		assert.ErrorIs(t, err, invoice.ErrNotFound)
	})
}
