package export

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/laundrydesk/laundrydesk/internal/catalog"
	"github.com/laundrydesk/laundrydesk/internal/invoice"
)

// Filter selects the invoices to export. Nil fields are unfiltered.
type Filter struct {
	Status *invoice.Status
	Start  *time.Time
	End    *time.Time
}

// Service exports invoice history with line details for bookkeeping.
type Service struct {
	invoices *invoice.Service
	catalog  *catalog.Service
}

// NewService creates a new export Service.
func NewService(invoiceSvc *invoice.Service, catalogSvc *catalog.Service) *Service {
	return &Service{
		invoices: invoiceSvc,
		catalog:  catalogSvc,
	}
}

// Export returns the invoices matching the filter in history order, each with
// its lines loaded.
func (s *Service) Export(ctx context.Context, filter Filter) ([]*invoice.Invoice, error) {
	invs, err := s.invoices.List(ctx, invoice.ListFilter{Status: filter.Status})
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}

	invs = invoice.FilterByDateRange(invs, filter.Start, filter.End)

	out := make([]*invoice.Invoice, 0, len(invs))

	for _, inv := range invs {
		full, err := s.invoices.Details(ctx, inv.ID)
		if err != nil {
			return nil, fmt.Errorf("loading invoice %s: %w", inv.Code, err)
		}

		out = append(out, full)
	}

	return out, nil
}

// WriteArchive writes a zip holding invoices.csv, lines.csv and summary.txt.
func (s *Service) WriteArchive(ctx context.Context, w io.Writer, invs []*invoice.Invoice) error {
	items, err := s.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("listing catalog: %w", err)
	}

	zw := zip.NewWriter(w)

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"invoices.csv", func(w io.Writer) error { return WriteInvoicesCSV(w, invs) }},
		{"lines.csv", func(w io.Writer) error { return WriteLinesCSV(w, invs, items) }},
		{"summary.txt", func(w io.Writer) error {
			_, err := io.WriteString(w, Summary(invs))
			return err
		}},
	}

	for _, f := range files {
		fw, err := zw.Create(f.name)
		if err != nil {
			return fmt.Errorf("creating %s: %w", f.name, err)
		}

		if err := f.write(fw); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}

	return zw.Close()
}

// WriteInvoicesCSV writes one row per invoice header.
func WriteInvoicesCSV(w io.Writer, invs []*invoice.Invoice) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{
		"code", "account", "created_at", "ready_by", "status",
		"pieces", "total_cost", "balance_before", "balance_after",
	}); err != nil {
		return err
	}

	for _, inv := range invs {
		if err := cw.Write([]string{
			inv.Code,
			inv.AccountCode,
			inv.CreatedAt.Local().Format(time.RFC3339),
			inv.ReadyBy.Local().Format(time.RFC3339),
			string(inv.Status),
			strconv.Itoa(len(inv.Lines)),
			strconv.FormatInt(inv.TotalCost, 10),
			strconv.FormatInt(inv.BalanceBefore, 10),
			strconv.FormatInt(inv.BalanceAfter, 10),
		}); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// WriteLinesCSV writes one row per garment. Items no longer in the catalog
// keep their id with an empty name.
func WriteLinesCSV(w io.Writer, invs []*invoice.Invoice, items []*catalog.Item) error {
	names := make(map[int64]string, len(items))
	for _, it := range items {
		names[it.ID] = it.Name
	}

	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"invoice", "serial_no", "tag_no", "item_id", "item"}); err != nil {
		return err
	}

	for _, inv := range invs {
		for _, l := range inv.Lines {
			if err := cw.Write([]string{
				inv.Code,
				strconv.Itoa(l.SerialNo),
				strconv.Itoa(l.TagNo),
				strconv.FormatInt(l.ItemID, 10),
				names[l.ItemID],
			}); err != nil {
				return err
			}
		}
	}

	cw.Flush()

	return cw.Error()
}

// Summary renders a plain text digest of the exported invoices.
func Summary(invs []*invoice.Invoice) string {
	var (
		sb      strings.Builder
		pieces  int
		credits int64
	)

	for _, inv := range invs {
		pieces += len(inv.Lines)
		credits += inv.TotalCost

		fmt.Fprintf(&sb, "* %s | %s | %s | %d pieces | %d credits | %s\n",
			inv.Code, inv.AccountCode, inv.CreatedAt.Local().Format("2006-01-02"),
			len(inv.Lines), inv.TotalCost, inv.Status)
	}

	fmt.Fprintf(&sb, "\n%d invoices, %d pieces, %d credits\n", len(invs), pieces, credits)

	return sb.String()
}
