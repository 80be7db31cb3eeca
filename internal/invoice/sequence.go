package invoice

import (
	"context"
	"fmt"
	"time"
)

const CodePrefix = "CC"

// MaxIDReader reports the highest invoice id in use, or 0 when there is none.
type MaxIDReader interface {
	MaxInvoiceID(ctx context.Context) (int64, error)
}

// Sequencer hands out invoice ids as max+1. It does no locking of its own;
// callers allocate inside a unit of work that serialises writers.
type Sequencer struct {
	src MaxIDReader
}

func NewSequencer(src MaxIDReader) *Sequencer {
	return &Sequencer{src: src}
}

func (s *Sequencer) Next(ctx context.Context) (int64, error) {
	maxID, err := s.src.MaxInvoiceID(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading max invoice id: %w", err)
	}

	return maxID + 1, nil
}

// FormatCode builds the printed invoice code, e.g. CC2410170042, from the
// local calendar date of t and the invoice id.
func FormatCode(t time.Time, id int64) string {
	t = t.Local()
	return fmt.Sprintf("%s%s%04d", CodePrefix, t.Format("060102"), id)
}
