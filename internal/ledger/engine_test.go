package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/laundrydesk/laundrydesk/internal/account"
	"github.com/laundrydesk/laundrydesk/internal/catalog"
	"github.com/laundrydesk/laundrydesk/internal/events"
	"github.com/laundrydesk/laundrydesk/internal/invoice"
	"github.com/laundrydesk/laundrydesk/internal/ledger"
	"github.com/laundrydesk/laundrydesk/internal/lock"
	"github.com/laundrydesk/laundrydesk/internal/store/memory"
)

var clock = time.Date(2024, 10, 17, 9, 30, 0, 0, time.Local)

type recorder struct {
	mu     sync.Mutex
	events []events.InvoiceEvent
}

func (r *recorder) Publish(_ context.Context, subject string, ev events.InvoiceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if subject == events.SubjectInvoiceCreated {
		r.events = append(r.events, ev)
	}

	return nil
}

// seed returns a store with catalog A (id 1, cost 3) and B (id 2, cost 5).
func seed(t *testing.T, balance int64) *memory.Store {
	t.Helper()

	s := memory.New()
	s.PutAccount(account.Account{ID: 1, Code: "ACC-1", Balance: balance})

	require.NoError(t, s.UpsertItems(context.Background(), []*catalog.Item{
		{Name: "A", UnitCost: 3},
		{Name: "B", UnitCost: 5},
	}))

	return s
}

func newEngine(s *memory.Store, opts ...ledger.Option) *ledger.Engine {
	opts = append([]ledger.Option{ledger.WithClock(func() time.Time { return clock })}, opts...)
	return ledger.NewEngine(s, s, s, opts...)
}

func balanceOf(t *testing.T, s *memory.Store, code string) int64 {
	t.Helper()

	acc, err := s.FindByCode(context.Background(), code)
	require.NoError(t, err)

	return acc.Balance
}

func TestEngine_DropOff_HappyPath(t *testing.T) {
	s := seed(t, 100)
	pub := &recorder{}
	e := newEngine(s, ledger.WithPublisher(pub))

	inv, err := e.DropOff(context.Background(), ledger.DropOffRequest{
		AccountCode: "ACC-1",
		Counts:      map[int64]int{1: 2, 2: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), inv.ID)
	assert.Equal(t, "CC2410170001", inv.Code)
	assert.Equal(t, invoice.StatusOngoing, inv.Status)
	assert.Equal(t, int64(11), inv.TotalCost)
	assert.Equal(t, int64(100), inv.BalanceBefore)
	assert.Equal(t, int64(89), inv.BalanceAfter)
	assert.Equal(t, clock.Add(24*time.Hour), inv.ReadyBy)

	assert.Equal(t, []invoice.Line{
		{InvoiceID: 1, ItemID: 1, SerialNo: 1, TagNo: 1},
		{InvoiceID: 1, ItemID: 1, SerialNo: 2, TagNo: 2},
		{InvoiceID: 1, ItemID: 2, SerialNo: 3, TagNo: 3},
	}, inv.Lines)

	assert.Equal(t, int64(89), balanceOf(t, s, "ACC-1"))

	stored, err := s.ListLines(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, inv.Lines, stored)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "CC2410170001", pub.events[0].Code)
}

func TestEngine_DropOff_Refusals(t *testing.T) {
	tests := []struct {
		name    string
		balance int64
		extra   []*catalog.Item
		req     ledger.DropOffRequest
		wantErr error
	}{
		{
			name:    "InsufficientCredits",
			balance: 5,
			req:     ledger.DropOffRequest{AccountCode: "ACC-1", Counts: map[int64]int{1: 2, 2: 1}},
			wantErr: ledger.ErrInsufficientCredits,
		},
		{
			name:    "ZeroBalance",
			balance: 0,
			req:     ledger.DropOffRequest{AccountCode: "ACC-1", Counts: map[int64]int{1: 1}},
			wantErr: ledger.ErrInsufficientCredits,
		},
		{
			name:    "ZeroBalanceFreeItem",
			balance: 0,
			extra:   []*catalog.Item{{Name: "C", UnitCost: 0}},
			req:     ledger.DropOffRequest{AccountCode: "ACC-1", Counts: map[int64]int{3: 1}},
			wantErr: ledger.ErrInsufficientCredits,
		},
		{
			name:    "EmptySelection",
			balance: 100,
			req:     ledger.DropOffRequest{AccountCode: "ACC-1", Counts: map[int64]int{}},
			wantErr: ledger.ErrEmptySelection,
		},
		{
			name:    "EmptySelectionBeatsZeroBalance",
			balance: 0,
			req:     ledger.DropOffRequest{AccountCode: "ACC-1"},
			wantErr: ledger.ErrEmptySelection,
		},
		{
			name:    "OnlyUnknownItems",
			balance: 100,
			req:     ledger.DropOffRequest{AccountCode: "ACC-1", Counts: map[int64]int{99: 4}},
			wantErr: ledger.ErrEmptySelection,
		},
		{
			name:    "NegativeCountsIgnored",
			balance: 100,
			req:     ledger.DropOffRequest{AccountCode: "ACC-1", Counts: map[int64]int{1: -3}},
			wantErr: ledger.ErrEmptySelection,
		},
		{
			name:    "UnknownAccount",
			balance: 100,
			req:     ledger.DropOffRequest{AccountCode: "NOPE", Counts: map[int64]int{1: 1}},
			wantErr: ledger.ErrAccountNotFound,
		},
		{
			name:    "BlankAccount",
			balance: 100,
			req:     ledger.DropOffRequest{AccountCode: "  ", Counts: map[int64]int{1: 1}},
			wantErr: ledger.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seed(t, tt.balance)
			if tt.extra != nil {
				require.NoError(t, s.UpsertItems(context.Background(), tt.extra))
			}

			e := newEngine(s)

			inv, err := e.DropOff(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, inv)

			assert.Equal(t, tt.balance, balanceOf(t, s, "ACC-1"))

			all, err := s.ListInvoices(context.Background(), invoice.ListFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestEngine_DropOff_ContextExpired(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		wantErr error
	}{
		{name: "Cancelled", ctx: cancelled, wantErr: context.Canceled},
		{name: "DeadlinePassed", ctx: expired, wantErr: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seed(t, 100)
			e := newEngine(s, ledger.WithLocker(lock.NewLocal()))

			inv, err := e.DropOff(tt.ctx, ledger.DropOffRequest{
				AccountCode: "ACC-1",
				Counts:      map[int64]int{1: 1},
			})
			assert.Nil(t, inv)
			assert.ErrorIs(t, err, ledger.ErrStoreUnavailable)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, int64(100), balanceOf(t, s, "ACC-1"))

			all, err := s.ListInvoices(context.Background(), invoice.ListFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestEngine_DropOff_ExactBalance(t *testing.T) {
	s := seed(t, 8)
	e := newEngine(s)

	inv, err := e.DropOff(context.Background(), ledger.DropOffRequest{
		AccountCode: "ACC-1",
		Counts:      map[int64]int{1: 1, 2: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), inv.BalanceAfter)
	assert.Equal(t, int64(0), balanceOf(t, s, "ACC-1"))
}

func TestEngine_DropOff_UnknownItemsDropped(t *testing.T) {
	s := seed(t, 100)
	e := newEngine(s)

	inv, err := e.DropOff(context.Background(), ledger.DropOffRequest{
		AccountCode: "ACC-1",
		Counts:      map[int64]int{2: 1, 99: 10},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5), inv.TotalCost)
	assert.Len(t, inv.Lines, 1)
}

func TestEngine_DropOff_SequentialIDs(t *testing.T) {
	s := seed(t, 100)
	e := newEngine(s)
	req := ledger.DropOffRequest{AccountCode: "ACC-1", Counts: map[int64]int{1: 1}}

	first, err := e.DropOff(context.Background(), req)
	require.NoError(t, err)

	second, err := e.DropOff(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, int64(94), balanceOf(t, s, "ACC-1"))
}

// Concurrent drop-offs must never overdraw the account or reuse an id.
func TestEngine_DropOff_Concurrent(t *testing.T) {
	s := seed(t, 30)
	e := newEngine(s, ledger.WithLocker(lock.NewLocal()))

	var wg sync.WaitGroup

	results := make(chan error, 20)

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := e.DropOff(context.Background(), ledger.DropOffRequest{
				AccountCode: "ACC-1",
				Counts:      map[int64]int{1: 1},
			})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	ok := 0

	for err := range results {
		if err == nil {
			ok++
			continue
		}

		assert.ErrorIs(t, err, ledger.ErrInsufficientCredits)
	}

	assert.Equal(t, 10, ok)
	assert.Equal(t, int64(0), balanceOf(t, s, "ACC-1"))

	all, err := s.ListInvoices(context.Background(), invoice.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 10)

	seen := make(map[int64]bool)
	for _, inv := range all {
		assert.False(t, seen[inv.ID], "invoice id %d reused", inv.ID)
		seen[inv.ID] = true
		assert.Equal(t, inv.BalanceBefore-inv.TotalCost, inv.BalanceAfter)
	}
}

func TestEngine_DropOff_ReturnedInvoicesStillHistory(t *testing.T) {
	s := seed(t, 100)
	e := newEngine(s)
	svc := invoice.NewService(s)

	inv, err := e.DropOff(context.Background(), ledger.DropOffRequest{AccountCode: "ACC-1", Counts: map[int64]int{1: 1}})
	require.NoError(t, err)

	n, err := svc.MarkReturned(context.Background(), []int64{inv.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.MarkReturned(context.Background(), []int64{inv.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, invoice.StatusReturned, all[0].Status)
	assert.Equal(t, "ACC-1", all[0].AccountCode)
}

type mocks struct {
	accounts *ledger.MockAccountFinder
	catalog  *ledger.MockCatalogLister
	store    *ledger.MockStore
	tx       *ledger.MockDropOffTx
}

func newMocks(t *testing.T) (*mocks, *ledger.Engine) {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := &mocks{
		accounts: ledger.NewMockAccountFinder(ctrl),
		catalog:  ledger.NewMockCatalogLister(ctrl),
		store:    ledger.NewMockStore(ctrl),
		tx:       ledger.NewMockDropOffTx(ctrl),
	}

	e := ledger.NewEngine(m.accounts, m.catalog, m.store,
		ledger.WithClock(func() time.Time { return clock }),
		ledger.WithRetries(2),
	)

	return m, e
}

func (m *mocks) expectReads(times int) {
	m.accounts.EXPECT().
		FindByCode(gomock.Any(), "ACC-1").
		Return(&account.Account{ID: 1, Code: "ACC-1", Balance: 100}, nil).
		Times(times)
	m.catalog.EXPECT().
		ListItems(gomock.Any()).
		Return([]*catalog.Item{{ID: 1, Name: "A", UnitCost: 3}}, nil).
		Times(times)
	m.store.EXPECT().BeginDropOff(gomock.Any()).Return(m.tx, nil).Times(times)
	m.tx.EXPECT().MaxInvoiceID(gomock.Any()).Return(int64(0), nil).Times(times)
}

var request = ledger.DropOffRequest{AccountCode: "ACC-1", Counts: map[int64]int{1: 1}}

func TestEngine_DropOff_WriteFailures(t *testing.T) {
	boom := errors.New("write failed")

	tests := []struct {
		name        string
		setup       func(m *mocks)
		wantErr     error
		wantOp      string
		wantPartial bool
	}{
		{
			name: "LinesFailCleanRollback",
			setup: func(m *mocks) {
				m.expectReads(1)
				m.tx.EXPECT().InsertInvoice(gomock.Any(), gomock.Any()).Return(nil)
				m.tx.EXPECT().InsertLines(gomock.Any(), gomock.Any()).Return(boom)
				m.tx.EXPECT().Rollback().Return(nil).AnyTimes()
			},
			wantErr: ledger.ErrCommitAborted,
			wantOp:  "inserting lines",
		},
		{
			name: "DeadlineDuringWrites",
			setup: func(m *mocks) {
				m.expectReads(1)
				m.tx.EXPECT().InsertInvoice(gomock.Any(), gomock.Any()).Return(nil)
				m.tx.EXPECT().InsertLines(gomock.Any(), gomock.Any()).Return(context.DeadlineExceeded)
				m.tx.EXPECT().Rollback().Return(sql.ErrTxDone).AnyTimes()
			},
			wantErr: ledger.ErrCommitAborted,
			wantOp:  "inserting lines",
		},
		{
			name: "RollbackFails",
			setup: func(m *mocks) {
				m.expectReads(1)
				m.tx.EXPECT().InsertInvoice(gomock.Any(), gomock.Any()).Return(boom)
				m.tx.EXPECT().Rollback().Return(errors.New("connection lost")).AnyTimes()
			},
			wantErr:     ledger.ErrPartialCommit,
			wantOp:      "inserting invoice",
			wantPartial: true,
		},
		{
			name: "CommitFails",
			setup: func(m *mocks) {
				m.expectReads(1)
				m.tx.EXPECT().InsertInvoice(gomock.Any(), gomock.Any()).Return(nil)
				m.tx.EXPECT().InsertLines(gomock.Any(), gomock.Any()).Return(nil)
				m.tx.EXPECT().SetBalance(gomock.Any(), int64(1), int64(100), int64(97)).Return(nil)
				m.tx.EXPECT().Commit().Return(boom)
				m.tx.EXPECT().Rollback().Return(nil).AnyTimes()
			},
			wantErr:     ledger.ErrPartialCommit,
			wantOp:      "committing",
			wantPartial: true,
		},
		{
			name: "BalanceConflictRetriedThenAborted",
			setup: func(m *mocks) {
				m.expectReads(3)
				m.tx.EXPECT().InsertInvoice(gomock.Any(), gomock.Any()).Return(nil).Times(3)
				m.tx.EXPECT().InsertLines(gomock.Any(), gomock.Any()).Return(nil).Times(3)
				m.tx.EXPECT().SetBalance(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(ledger.ErrBalanceChanged).Times(3)
				m.tx.EXPECT().Rollback().Return(nil).AnyTimes()
			},
			wantErr: ledger.ErrCommitAborted,
			wantOp:  "debiting balance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, e := newMocks(t)
			tt.setup(m)

			inv, err := e.DropOff(context.Background(), request)
			assert.Nil(t, inv)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantPartial, errors.Is(err, ledger.ErrPartialCommit))

			var cerr *ledger.CommitError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.wantOp, cerr.Op)
			assert.Equal(t, int64(1), cerr.InvoiceID)
		})
	}
}

func TestEngine_DropOff_ConflictThenSuccess(t *testing.T) {
	m, e := newMocks(t)

	m.expectReads(2)
	gomock.InOrder(
		m.tx.EXPECT().InsertInvoice(gomock.Any(), gomock.Any()).Return(ledger.ErrDuplicateInvoice),
		m.tx.EXPECT().InsertInvoice(gomock.Any(), gomock.Any()).Return(nil),
	)
	m.tx.EXPECT().InsertLines(gomock.Any(), gomock.Any()).Return(nil)
	m.tx.EXPECT().SetBalance(gomock.Any(), int64(1), int64(100), int64(97)).Return(nil)
	m.tx.EXPECT().Commit().Return(nil)
	m.tx.EXPECT().Rollback().Return(nil).AnyTimes()

	inv, err := e.DropOff(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, int64(97), inv.BalanceAfter)
}

func TestEngine_DropOff_StoreUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *mocks)
	}{
		{
			name: "AccountRead",
			setup: func(m *mocks) {
				m.accounts.EXPECT().FindByCode(gomock.Any(), "ACC-1").Return(nil, errors.New("timeout"))
			},
		},
		{
			name: "CatalogRead",
			setup: func(m *mocks) {
				m.accounts.EXPECT().FindByCode(gomock.Any(), "ACC-1").Return(&account.Account{ID: 1, Code: "ACC-1", Balance: 100}, nil)
				m.catalog.EXPECT().ListItems(gomock.Any()).Return(nil, errors.New("timeout"))
			},
		},
		{
			name: "Begin",
			setup: func(m *mocks) {
				m.accounts.EXPECT().FindByCode(gomock.Any(), "ACC-1").Return(&account.Account{ID: 1, Code: "ACC-1", Balance: 100}, nil)
				m.catalog.EXPECT().ListItems(gomock.Any()).Return([]*catalog.Item{{ID: 1, UnitCost: 3}}, nil)
				m.store.EXPECT().BeginDropOff(gomock.Any()).Return(nil, errors.New("too many connections"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, e := newMocks(t)
			tt.setup(m)

			_, err := e.DropOff(context.Background(), request)
			assert.ErrorIs(t, err, ledger.ErrStoreUnavailable)
		})
	}
}

func TestFlatten(t *testing.T) {
	items := []*catalog.Item{
		{ID: 1, Name: "A", UnitCost: 3},
		{ID: 2, Name: "B", UnitCost: 5},
		{ID: 3, Name: "C", UnitCost: 0},
	}

	lines, total := ledger.Flatten(items, map[int64]int{3: 1, 1: 1, 2: 2})

	assert.Equal(t, int64(13), total)
	require.Len(t, lines, 4)

	for i, l := range lines {
		assert.Equal(t, i+1, l.SerialNo)
		assert.Equal(t, l.SerialNo, l.TagNo)
	}

	assert.Equal(t, []int64{1, 2, 2, 3}, []int64{lines[0].ItemID, lines[1].ItemID, lines[2].ItemID, lines[3].ItemID})
}
