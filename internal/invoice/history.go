package invoice

import (
	"context"
	"time"
)

// ListAll returns every invoice, joined with the owning account's code, in
// store order.
func (s *Service) ListAll(ctx context.Context) ([]*Invoice, error) {
	return s.repo.ListInvoices(ctx, ListFilter{})
}

// FilterByDateRange keeps the invoices created within [start, end]. When
// either bound is nil the list is returned as is. Order is preserved.
func FilterByDateRange(invoices []*Invoice, start, end *time.Time) []*Invoice {
	if start == nil || end == nil {
		return invoices
	}

	out := make([]*Invoice, 0, len(invoices))

	for _, inv := range invoices {
		if inv.CreatedAt.Before(*start) || inv.CreatedAt.After(*end) {
			continue
		}

		out = append(out, inv)
	}

	return out
}

// FilterByStatus keeps the invoices in the given status. Order is preserved.
func FilterByStatus(invoices []*Invoice, status Status) []*Invoice {
	out := make([]*Invoice, 0, len(invoices))

	for _, inv := range invoices {
		if inv.Status == status {
			out = append(out, inv)
		}
	}

	return out
}
