package ledger

import (
	"context"

	"github.com/laundrydesk/laundrydesk/internal/account"
	"github.com/laundrydesk/laundrydesk/internal/catalog"
	"github.com/laundrydesk/laundrydesk/internal/invoice"
)

//go:generate mockgen -source=ports.go -destination=ports_mock.go -package=ledger
type AccountFinder interface {
	FindByCode(ctx context.Context, code string) (*account.Account, error)
}

type CatalogLister interface {
	ListItems(ctx context.Context) ([]*catalog.Item, error)
}

// Store opens the unit of work a drop-off is written in.
type Store interface {
	BeginDropOff(ctx context.Context) (DropOffTx, error)
}

// DropOffTx holds the writes of one drop-off. Implementations serialise
// invoice id allocation between concurrent units of work.
type DropOffTx interface {
	MaxInvoiceID(ctx context.Context) (int64, error)
	InsertInvoice(ctx context.Context, inv *invoice.Invoice) error
	InsertLines(ctx context.Context, lines []invoice.Line) error
	// SetBalance writes balance only if the stored value still equals
	// expected, otherwise it returns ErrBalanceChanged.
	SetBalance(ctx context.Context, accountID, expected, balance int64) error
	Commit() error
	Rollback() error
}

// Locker serialises drop-offs on the same key.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}
