// Package memory keeps accounts, the catalog and invoices in process. It
// backs local demos and the ledger tests.
package memory

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/laundrydesk/laundrydesk/internal/account"
	"github.com/laundrydesk/laundrydesk/internal/catalog"
	"github.com/laundrydesk/laundrydesk/internal/invoice"
	"github.com/laundrydesk/laundrydesk/internal/ledger"
)

type Store struct {
	mu       sync.RWMutex
	accounts map[string]*account.Account
	items    []*catalog.Item
	invoices []*invoice.Invoice
	lines    map[int64][]invoice.Line

	// seq holds one token while a drop-off is open, until it commits or
	// rolls back.
	seq chan struct{}
}

func New() *Store {
	return &Store{
		accounts: make(map[string]*account.Account),
		lines:    make(map[int64][]invoice.Line),
		seq:      make(chan struct{}, 1),
	}
}

// PutAccount creates or replaces an account.
func (s *Store) PutAccount(acc account.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc.ID == 0 {
		acc.ID = int64(len(s.accounts) + 1)
	}

	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}

	s.accounts[acc.Code] = &acc
}

func (s *Store) FindByCode(_ context.Context, code string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[code]
	if !ok {
		return nil, account.ErrNotFound
	}

	cp := *acc

	return &cp, nil
}

func (s *Store) ListItems(_ context.Context) ([]*catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*catalog.Item, len(s.items))
	for i, it := range s.items {
		cp := *it
		out[i] = &cp
	}

	return out, nil
}

// UpsertItems matches names case-insensitively, like the lower(name) index
// on catalog_items.
func (s *Store) UpsertItems(_ context.Context, items []*catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range items {
		idx := slices.IndexFunc(s.items, func(it *catalog.Item) bool {
			return strings.EqualFold(it.Name, in.Name)
		})
		if idx >= 0 {
			s.items[idx].UnitCost = in.UnitCost
			in.ID = s.items[idx].ID

			continue
		}

		var next int64 = 1
		if n := len(s.items); n > 0 {
			next = s.items[n-1].ID + 1
		}

		in.ID = next
		cp := *in
		s.items = append(s.items, &cp)
	}

	return nil
}

func (s *Store) MaxInvoiceID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.maxInvoiceID(), nil
}

func (s *Store) maxInvoiceID() int64 {
	var maxID int64
	for _, inv := range s.invoices {
		maxID = max(maxID, inv.ID)
	}

	return maxID
}

func (s *Store) GetInvoice(_ context.Context, id int64) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.invoices {
		if inv.ID == id {
			return s.withAccountCode(inv), nil
		}
	}

	return nil, invoice.ErrNotFound
}

func (s *Store) ListInvoices(_ context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*invoice.Invoice

	for _, inv := range s.invoices {
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}

		out = append(out, s.withAccountCode(inv))
	}

	return out, nil
}

func (s *Store) ListLines(_ context.Context, invoiceID int64) ([]invoice.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.lines[invoiceID]), nil
}

func (s *Store) UpdateStatus(_ context.Context, id int64, status invoice.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inv := range s.invoices {
		if inv.ID == id {
			inv.Status = status
			return nil
		}
	}

	return invoice.ErrNotFound
}

// withAccountCode copies inv and fills in the owning account's code.
func (s *Store) withAccountCode(inv *invoice.Invoice) *invoice.Invoice {
	cp := *inv
	cp.Lines = nil

	for _, acc := range s.accounts {
		if acc.ID == inv.AccountID {
			cp.AccountCode = acc.Code
			break
		}
	}

	return &cp
}

func (s *Store) BeginDropOff(ctx context.Context) (ledger.DropOffTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case s.seq <- struct{}{}:
		return &dropOffTx{s: s}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dropOffTx stages writes and applies them on Commit.
type dropOffTx struct {
	s    *Store
	done bool

	inv     *invoice.Invoice
	lines   []invoice.Line
	balance *balanceWrite
}

type balanceWrite struct {
	accountID int64
	balance   int64
}

func (d *dropOffTx) MaxInvoiceID(ctx context.Context) (int64, error) {
	if d.done {
		return 0, sql.ErrTxDone
	}

	return d.s.MaxInvoiceID(ctx)
}

func (d *dropOffTx) InsertInvoice(_ context.Context, inv *invoice.Invoice) error {
	if d.done {
		return sql.ErrTxDone
	}

	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	for _, existing := range d.s.invoices {
		if existing.ID == inv.ID || existing.Code == inv.Code {
			return fmt.Errorf("inserting invoice %s: %w", inv.Code, ledger.ErrDuplicateInvoice)
		}
	}

	cp := *inv
	cp.Lines = nil
	d.inv = &cp

	return nil
}

func (d *dropOffTx) InsertLines(_ context.Context, lines []invoice.Line) error {
	if d.done {
		return sql.ErrTxDone
	}

	d.lines = append(d.lines, lines...)

	return nil
}

func (d *dropOffTx) SetBalance(_ context.Context, accountID, expected, balance int64) error {
	if d.done {
		return sql.ErrTxDone
	}

	if balance < 0 {
		return fmt.Errorf("balance %d for account %d violates non-negative constraint", balance, accountID)
	}

	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	acc := d.s.accountByID(accountID)
	if acc == nil || acc.Balance != expected {
		return ledger.ErrBalanceChanged
	}

	d.balance = &balanceWrite{accountID: accountID, balance: balance}

	return nil
}

func (d *dropOffTx) Commit() error {
	if d.done {
		return sql.ErrTxDone
	}

	defer d.finish()

	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	// SetBalance compared the balance while seq was already held, so no
	// other drop-off can have moved it since.
	if d.balance != nil {
		if acc := d.s.accountByID(d.balance.accountID); acc != nil {
			acc.Balance = d.balance.balance
		}
	}

	if d.inv != nil {
		d.s.invoices = append(d.s.invoices, d.inv)
		d.s.lines[d.inv.ID] = slices.SortedFunc(slices.Values(d.lines), func(a, b invoice.Line) int {
			return cmp.Compare(a.SerialNo, b.SerialNo)
		})
	}

	return nil
}

func (d *dropOffTx) Rollback() error {
	if d.done {
		return sql.ErrTxDone
	}

	d.finish()

	return nil
}

func (d *dropOffTx) finish() {
	d.done = true
	<-d.s.seq
}

func (s *Store) accountByID(id int64) *account.Account {
	for _, acc := range s.accounts {
		if acc.ID == id {
			return acc
		}
	}

	return nil
}
