package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrEmptySelection      = errors.New("no items selected")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrStoreUnavailable    = errors.New("store unavailable")

	// ErrCommitAborted means the drop-off was rolled back and nothing was
	// persisted. The request may be retried. A context that expires during
	// the writes also ends here, since the driver rolls the transaction back.
	ErrCommitAborted = errors.New("drop-off aborted")

	// ErrPartialCommit means the outcome of the drop-off is unknown. The
	// request must not be retried blindly.
	ErrPartialCommit = errors.New("drop-off outcome unknown")

	// Conflicts reported by stores inside a drop-off unit of work.
	ErrBalanceChanged   = errors.New("account balance changed concurrently")
	ErrDuplicateInvoice = errors.New("invoice id already taken")
)

// CommitError describes a failed write during the drop-off unit of work.
// Kind is ErrCommitAborted or ErrPartialCommit.
type CommitError struct {
	Kind      error
	Op        string
	InvoiceID int64
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%v: %s for invoice %d: %v", e.Kind, e.Op, e.InvoiceID, e.Err)
}

func (e *CommitError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// InsufficientCreditsError carries the figures behind a refused drop-off.
type InsufficientCreditsError struct {
	Balance int64
	Total   int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("%v: balance %d, total %d", ErrInsufficientCredits, e.Balance, e.Total)
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func retryable(err error) bool {
	return errors.Is(err, ErrBalanceChanged) || errors.Is(err, ErrDuplicateInvoice)
}
