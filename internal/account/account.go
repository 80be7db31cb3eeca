package account

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("account not found")

// Account is a prepaid credit holder, looked up by the code printed on its QR card.
type Account struct {
	ID        int64
	Code      string
	Balance   int64 // credits, never negative
	CreatedAt time.Time
}
