package export

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/laundrydesk/laundrydesk/internal/export"
	"github.com/laundrydesk/laundrydesk/internal/http/httpx"
	invoicehttp "github.com/laundrydesk/laundrydesk/internal/http/invoice"
	"github.com/laundrydesk/laundrydesk/internal/invoice"
)

type Handler struct {
	svc *export.Service
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.metadata)
	r.Get("/download", h.download)
}

type exportMetadataResponse struct {
	Invoices []invoicehttp.InvoiceResponse `json:"invoices"`
	Summary  string                        `json:"summary"`
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) ([]*invoice.Invoice, bool) {
	q, ok := invoicehttp.ParseQuery(w, r)
	if !ok {
		return nil, false
	}

	invs, err := h.svc.Export(r.Context(), export.Filter{Status: q.Filter.Status, Start: q.Start, End: q.End})
	if err != nil {
		httpx.Logger(r.Context()).Error("failed to export invoices", "error", err)
		httpx.Error(w, r, http.StatusServiceUnavailable, "store_unavailable", "could not export invoices", nil)

		return nil, false
	}

	return invs, true
}

func (h *Handler) metadata(w http.ResponseWriter, r *http.Request) {
	invs, ok := h.load(w, r)
	if !ok {
		return
	}

	resp := exportMetadataResponse{
		Invoices: make([]invoicehttp.InvoiceResponse, 0, len(invs)),
		Summary:  export.Summary(invs),
	}

	for _, inv := range invs {
		resp.Invoices = append(resp.Invoices, invoicehttp.ToResponse(inv))
	}

	httpx.JSON(w, r, http.StatusOK, resp)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	invs, ok := h.load(w, r)
	if !ok {
		return
	}

	// Buffered so a failure can still be reported as an error response.
	var buf bytes.Buffer
	if err := h.svc.WriteArchive(r.Context(), &buf, invs); err != nil {
		httpx.Logger(r.Context()).Error("failed to create export archive", "error", err)
		httpx.Error(w, r, http.StatusServiceUnavailable, "store_unavailable", "could not export invoices", nil)

		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"invoices_%s.zip\"", time.Now().Format("20060102")))

	if _, err := buf.WriteTo(w); err != nil {
		httpx.Logger(r.Context()).Warn("failed to write export archive", "error", err)
	}
}
