package invoice

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("invoice not found")

// Status is the pickup state of an invoice.
type Status string

const (
	StatusOngoing  Status = "Ongoing"
	StatusReturned Status = "Returned"
)

func (s Status) Valid() bool {
	return s == StatusOngoing || s == StatusReturned
}

// Invoice is the record of one drop-off.
type Invoice struct {
	ID            int64
	Code          string
	AccountID     int64
	AccountCode   string // owning account's code
	CreatedAt     time.Time
	ReadyBy       time.Time
	Status        Status
	BalanceBefore int64
	BalanceAfter  int64
	TotalCost     int64
	Lines         []Line
}

// Line is one physical piece within an invoice.
type Line struct {
	InvoiceID int64
	ItemID    int64
	SerialNo  int // 1-based, contiguous within the invoice
	TagNo     int // currently always equal to SerialNo
}
