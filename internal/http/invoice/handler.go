package invoice

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/laundrydesk/laundrydesk/internal/http/httpx"
	"github.com/laundrydesk/laundrydesk/internal/invoice"
)

type Handler struct {
	svc *invoice.Service
}

func NewHandler(svc *invoice.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

// WriteRoutes holds the routes that change invoice state.
func (h *Handler) WriteRoutes(r chi.Router) {
	r.Post("/return", h.markReturned)
}

// Query is the invoice selection shared by the listing and export routes.
type Query struct {
	Filter invoice.ListFilter
	Start  *time.Time
	End    *time.Time
}

// Apply narrows a store listing to the query's date range.
func (q Query) Apply(invs []*invoice.Invoice) []*invoice.Invoice {
	return invoice.FilterByDateRange(invs, q.Start, q.End)
}

// ParseQuery reads status, start_date and end_date. The end date is inclusive
// to the end of its day. Bad input has already been answered with a 400 when
// ok is false.
func ParseQuery(w http.ResponseWriter, r *http.Request) (Query, bool) {
	q := r.URL.Query()

	var query Query

	if s := q.Get("status"); s != "" {
		status := invoice.Status(s)
		if !status.Valid() {
			httpx.Error(w, r, http.StatusBadRequest, "invalid_request", "unknown status "+strconv.Quote(s), nil)
			return query, false
		}

		query.Filter.Status = new(status)
	}

	start, err := parseDate(q.Get("start_date"))
	if err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid_request", "start_date must be YYYY-MM-DD", nil)
		return query, false
	}

	end, err := parseDate(q.Get("end_date"))
	if err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid_request", "end_date must be YYYY-MM-DD", nil)
		return query, false
	}

	if end != nil {
		end = new(end.AddDate(0, 0, 1).Add(-time.Nanosecond))
	}

	query.Start, query.End = start, end

	return query, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query, ok := ParseQuery(w, r)
	if !ok {
		return
	}

	invs, err := h.svc.List(r.Context(), query.Filter)
	if err != nil {
		httpx.Logger(r.Context()).Error("failed to list invoices", "error", err)
		httpx.Error(w, r, http.StatusServiceUnavailable, "store_unavailable", "could not list invoices", nil)

		return
	}

	httpx.JSON(w, r, http.StatusOK, toResponseList(query.Apply(invs)))
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid_request", "invalid id", nil)
		return
	}

	inv, err := h.svc.Details(r.Context(), id)
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			httpx.Error(w, r, http.StatusNotFound, "invoice_not_found", "invoice not found", nil)
			return
		}

		httpx.Logger(r.Context()).Error("failed to get invoice", "invoice_id", id, "error", err)
		httpx.Error(w, r, http.StatusServiceUnavailable, "store_unavailable", "could not load invoice", nil)

		return
	}

	httpx.JSON(w, r, http.StatusOK, ToResponse(inv))
}

type returnRequest struct {
	InvoiceIDs []int64 `json:"invoice_ids" validate:"required,min=1,dive,gt=0"`
}

type returnResponse struct {
	Returned int `json:"returned"`
}

func (h *Handler) markReturned(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if !httpx.Decode(w, r, &req) {
		return
	}

	n, err := h.svc.MarkReturned(r.Context(), req.InvoiceIDs)
	if err != nil {
		httpx.Logger(r.Context()).Error("return batch failed", "returned", n, "error", err)

		details := map[string]any{"returned": n}

		var rerr *invoice.ReturnError
		if errors.As(err, &rerr) {
			details["failed_invoice_id"] = rerr.InvoiceID
		}

		httpx.Error(w, r, http.StatusInternalServerError, "return_batch_failed", "return batch stopped, re-query invoices", details)

		return
	}

	httpx.JSON(w, r, http.StatusOK, returnResponse{Returned: n})
}
