package invoice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/laundrydesk/laundrydesk/internal/events"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=invoice
type Repository interface {
	MaxInvoiceID(ctx context.Context) (int64, error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]*Invoice, error)
	ListLines(ctx context.Context, invoiceID int64) ([]Line, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

type ListFilter struct {
	Status *Status
}

type Service struct {
	repo      Repository
	publisher events.Publisher
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, publisher: events.Nop{}}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Invoice, error) {
	return s.repo.ListInvoices(ctx, filter)
}

// Details returns the invoice header with its lines in serial order.
func (s *Service) Details(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.ListLines(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing lines of invoice %d: %w", id, err)
	}

	inv.Lines = lines

	return inv, nil
}

func (s *Service) publish(ctx context.Context, subject string, inv *Invoice) {
	if err := s.publisher.Publish(ctx, subject, EventOf(inv)); err != nil {
		slog.Warn("failed to publish invoice event", "subject", subject, "invoice_code", inv.Code, "error", err)
	}
}

// EventOf converts an invoice header into its published form.
func EventOf(inv *Invoice) events.InvoiceEvent {
	return events.InvoiceEvent{
		InvoiceID:   inv.ID,
		Code:        inv.Code,
		AccountID:   inv.AccountID,
		AccountCode: inv.AccountCode,
		Status:      string(inv.Status),
		TotalCost:   inv.TotalCost,
		CreatedAt:   inv.CreatedAt,
		ReadyBy:     inv.ReadyBy,
	}
}
