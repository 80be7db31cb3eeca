package catalog

import "errors"

var ErrInvalidCSV = errors.New("invalid catalog csv")

// Item is a billable laundry piece and its price in credits.
type Item struct {
	ID       int64
	Name     string
	UnitCost int64
}
