package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	enc "github.com/laundrydesk/laundrydesk/internal/encoding"
)

// ParseCSV reads a two column price list: item name and unit cost in credits.
// The separator may be ';' or ','. A first row whose cost column is not a
// number is treated as a header. Duplicate names keep the last price.
func ParseCSV(r io.Reader) ([]*Item, error) {
	utf8r, err := enc.ToUTF8(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectComma(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	var (
		items  []*Item
		index  = make(map[string]int)
		header = firstDataRow(rows)
	)

	for i, row := range rows {
		line := i + 1

		if isBlank(row) {
			continue
		}

		if len(row) < 2 {
			return nil, fmt.Errorf("%w: line %d: expected name and credits", ErrInvalidCSV, line)
		}

		name := strings.TrimSpace(row[0])
		costStr := strings.TrimSpace(row[1])

		cost, err := strconv.ParseInt(costStr, 10, 64)
		if err != nil {
			if i == header {
				continue
			}

			return nil, fmt.Errorf("%w: line %d: credits %q is not a whole number", ErrInvalidCSV, line, costStr)
		}

		if name == "" {
			return nil, fmt.Errorf("%w: line %d: empty item name", ErrInvalidCSV, line)
		}

		if cost < 0 {
			return nil, fmt.Errorf("%w: line %d: negative credits", ErrInvalidCSV, line)
		}

		if j, ok := index[strings.ToLower(name)]; ok {
			items[j].UnitCost = cost
			continue
		}

		index[strings.ToLower(name)] = len(items)
		items = append(items, &Item{Name: name, UnitCost: cost})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidCSV)
	}

	return items, nil
}

func detectComma(data []byte) rune {
	firstLine, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(firstLine, []byte(";")) >= bytes.Count(firstLine, []byte(",")) && bytes.Contains(firstLine, []byte(";")) {
		return ';'
	}

	return ','
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}

func firstDataRow(rows [][]string) int {
	for i, row := range rows {
		if !isBlank(row) {
			return i
		}
	}

	return -1
}
