package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/laundrydesk/laundrydesk/internal/events"
)

var ErrReturnBatch = errors.New("return batch failed")

// ReturnError reports the invoice whose write stopped a return batch.
// Invoices flipped before it stay Returned.
type ReturnError struct {
	InvoiceID int64
	Returned  int
	Err       error
}

func (e *ReturnError) Error() string {
	return fmt.Sprintf("%v: invoice %d after %d returned: %v", ErrReturnBatch, e.InvoiceID, e.Returned, e.Err)
}

func (e *ReturnError) Unwrap() []error {
	return []error{ErrReturnBatch, e.Err}
}

// MarkReturned flips each Ongoing invoice in ids to Returned and reports how
// many were flipped. Unknown and already Returned ids are skipped. The first
// failing read or write stops the batch; callers should re-query afterwards.
func (s *Service) MarkReturned(ctx context.Context, ids []int64) (int, error) {
	seen := make(map[int64]struct{}, len(ids))
	returned := 0

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}

		inv, err := s.repo.GetInvoice(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}

		if err != nil {
			return returned, &ReturnError{InvoiceID: id, Returned: returned, Err: err}
		}

		if inv.Status != StatusOngoing {
			continue
		}

		if err := s.repo.UpdateStatus(ctx, id, StatusReturned); err != nil {
			return returned, &ReturnError{InvoiceID: id, Returned: returned, Err: err}
		}

		returned++

		inv.Status = StatusReturned
		s.publish(ctx, events.SubjectInvoiceReturned, inv)
	}

	return returned, nil
}
