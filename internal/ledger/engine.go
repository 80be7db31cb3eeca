package ledger

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/laundrydesk/laundrydesk/internal/account"
	"github.com/laundrydesk/laundrydesk/internal/catalog"
	"github.com/laundrydesk/laundrydesk/internal/events"
	"github.com/laundrydesk/laundrydesk/internal/invoice"
)

const lockPrefix = "dropoff:"

// DropOffRequest asks for Counts[itemID] pieces of each catalog item to be
// charged to the account. Unknown item ids and non-positive counts are ignored.
type DropOffRequest struct {
	AccountCode string
	Counts      map[int64]int
}

type Engine struct {
	accounts AccountFinder
	catalog  CatalogLister
	store    Store

	locker     Locker
	publisher  events.Publisher
	now        func() time.Time
	readyAfter time.Duration
	retries    int
	timeout    time.Duration
}

type Option func(*Engine)

func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithReadyAfter(d time.Duration) Option {
	return func(e *Engine) { e.readyAfter = d }
}

// WithRetries sets how many times a drop-off is replayed after a write
// conflict.
func WithRetries(n int) Option {
	return func(e *Engine) { e.retries = max(n, 0) }
}

// WithTimeout bounds a whole drop-off, lock wait included. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

func NewEngine(accounts AccountFinder, catalog CatalogLister, store Store, opts ...Option) *Engine {
	e := &Engine{
		accounts:   accounts,
		catalog:    catalog,
		store:      store,
		locker:     noLock{},
		publisher:  events.Nop{},
		now:        time.Now,
		readyAfter: 24 * time.Hour,
		retries:    3,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// DropOff charges the selected pieces to the account and records the invoice.
// On success the returned invoice carries its lines for the receipt.
func (e *Engine) DropOff(ctx context.Context, req DropOffRequest) (*invoice.Invoice, error) {
	code := account.NormalizeCode(req.AccountCode)
	if code == "" {
		return nil, ErrAccountNotFound
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	release, err := e.locker.Lock(ctx, lockPrefix+code)
	if err != nil {
		return nil, unavailable("locking account", err)
	}
	defer release()

	for attempt := 0; ; attempt++ {
		inv, err := e.dropOff(ctx, code, req.Counts)
		if err == nil {
			slog.Info("drop-off recorded",
				"invoice_code", inv.Code,
				"account_id", inv.AccountID,
				"total_cost", inv.TotalCost,
				"pieces", len(inv.Lines),
			)

			if err := e.publisher.Publish(ctx, events.SubjectInvoiceCreated, invoice.EventOf(inv)); err != nil {
				slog.Warn("failed to publish invoice event", "subject", events.SubjectInvoiceCreated, "invoice_code", inv.Code, "error", err)
			}

			return inv, nil
		}

		if errors.Is(err, ErrPartialCommit) {
			slog.Error("drop-off outcome unknown", "account_code", code, "error", err)
			return nil, err
		}

		if !retryable(err) || attempt >= e.retries {
			return nil, err
		}

		slog.Warn("drop-off conflict, retrying", "account_code", code, "attempt", attempt+1, "error", err)
	}
}

func (e *Engine) dropOff(ctx context.Context, code string, counts map[int64]int) (*invoice.Invoice, error) {
	acc, err := e.accounts.FindByCode(ctx, code)
	if errors.Is(err, account.ErrNotFound) {
		return nil, ErrAccountNotFound
	}

	if err != nil {
		return nil, unavailable("finding account", err)
	}

	items, err := e.catalog.ListItems(ctx)
	if err != nil {
		return nil, unavailable("listing catalog", err)
	}

	lines, total := Flatten(items, counts)
	if len(lines) == 0 {
		return nil, ErrEmptySelection
	}

	if acc.Balance-total < 0 || acc.Balance == 0 {
		return nil, &InsufficientCreditsError{Balance: acc.Balance, Total: total}
	}

	tx, err := e.store.BeginDropOff(ctx)
	if err != nil {
		return nil, unavailable("beginning drop-off", err)
	}
	defer tx.Rollback()

	id, err := invoice.NewSequencer(tx).Next(ctx)
	if err != nil {
		return nil, unavailable("allocating invoice id", err)
	}

	now := e.now()
	inv := &invoice.Invoice{
		ID:            id,
		Code:          invoice.FormatCode(now, id),
		AccountID:     acc.ID,
		AccountCode:   acc.Code,
		CreatedAt:     now,
		ReadyBy:       now.Add(e.readyAfter),
		Status:        invoice.StatusOngoing,
		BalanceBefore: acc.Balance,
		BalanceAfter:  acc.Balance - total,
		TotalCost:     total,
	}

	for i := range lines {
		lines[i].InvoiceID = id
	}

	inv.Lines = lines

	if err := write(ctx, tx, inv); err != nil {
		return nil, err
	}

	return inv, nil
}

// write performs the three writes of a drop-off and commits them.
func write(ctx context.Context, tx DropOffTx, inv *invoice.Invoice) error {
	steps := []struct {
		op string
		fn func() error
	}{
		{"inserting invoice", func() error { return tx.InsertInvoice(ctx, inv) }},
		{"inserting lines", func() error { return tx.InsertLines(ctx, inv.Lines) }},
		{"debiting balance", func() error { return tx.SetBalance(ctx, inv.AccountID, inv.BalanceBefore, inv.BalanceAfter) }},
	}

	for _, step := range steps {
		err := step.fn()
		if err == nil {
			continue
		}

		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return &CommitError{Kind: ErrPartialCommit, Op: step.op, InvoiceID: inv.ID, Err: errors.Join(err, rbErr)}
		}

		return &CommitError{Kind: ErrCommitAborted, Op: step.op, InvoiceID: inv.ID, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &CommitError{Kind: ErrPartialCommit, Op: "committing", InvoiceID: inv.ID, Err: err}
	}

	return nil
}

// Flatten expands counts into invoice lines in catalog order and prices them.
// Serial numbers run from 1 across the whole selection.
func Flatten(items []*catalog.Item, counts map[int64]int) ([]invoice.Line, int64) {
	var (
		lines []invoice.Line
		total int64
	)

	for _, it := range items {
		n := counts[it.ID]
		for range max(n, 0) {
			serial := len(lines) + 1
			lines = append(lines, invoice.Line{ItemID: it.ID, SerialNo: serial, TagNo: serial})
			total += it.UnitCost
		}
	}

	return lines, total
}

type noLock struct{}

func (noLock) Lock(context.Context, string) (func(), error) { return func() {}, nil }
