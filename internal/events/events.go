package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	SubjectInvoiceCreated  = "invoices.created"
	SubjectInvoiceReturned = "invoices.returned"
)

type InvoiceEvent struct {
	InvoiceID   int64     `json:"invoice_id"`
	Code        string    `json:"code"`
	AccountID   int64     `json:"account_id"`
	AccountCode string    `json:"account_code,omitempty"`
	Status      string    `json:"status"`
	TotalCost   int64     `json:"total_cost"`
	CreatedAt   time.Time `json:"created_at"`
	ReadyBy     time.Time `json:"ready_by"`
}

// Publisher delivers invoice events. Delivery is best effort; callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, subject string, ev InvoiceEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, InvoiceEvent) error { return nil }

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subj string, data []byte) error
}

// NATS publishes events as JSON on their subject.
type NATS struct {
	conn Conn
}

func NewNATS(conn Conn) *NATS {
	return &NATS{conn: conn}
}

func (p *NATS) Publish(ctx context.Context, subject string, ev InvoiceEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", subject, err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}

	return nil
}
