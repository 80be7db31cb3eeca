package dropoff

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/laundrydesk/laundrydesk/internal/http/httpx"
	invoicehttp "github.com/laundrydesk/laundrydesk/internal/http/invoice"
	"github.com/laundrydesk/laundrydesk/internal/ledger"
)

type Handler struct {
	engine *ledger.Engine
}

func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
}

type itemCount struct {
	ItemID int64 `json:"item_id" validate:"gt=0"`
	Count  int   `json:"count" validate:"gte=0,lte=1000"`
}

type dropOffRequest struct {
	AccountCode string      `json:"account_code" validate:"required,max=64"`
	Items       []itemCount `json:"items" validate:"max=200,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req dropOffRequest
	if !httpx.Decode(w, r, &req) {
		return
	}

	counts := make(map[int64]int, len(req.Items))
	for _, it := range req.Items {
		counts[it.ItemID] += it.Count
	}

	inv, err := h.engine.DropOff(r.Context(), ledger.DropOffRequest{
		AccountCode: req.AccountCode,
		Counts:      counts,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	httpx.JSON(w, r, http.StatusCreated, invoicehttp.ToResponse(inv))
}

// WriteError maps a drop-off failure to its status and error code.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		insufficient *ledger.InsufficientCreditsError
		commitErr    *ledger.CommitError
	)

	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		httpx.Error(w, r, http.StatusNotFound, "account_not_found", "account not found", nil)
	case errors.Is(err, ledger.ErrEmptySelection):
		httpx.Error(w, r, http.StatusUnprocessableEntity, "empty_selection", "select at least one item", nil)
	case errors.As(err, &insufficient):
		httpx.Error(w, r, http.StatusUnprocessableEntity, "insufficient_credits", "insufficient credits", map[string]any{
			"balance": insufficient.Balance,
			"total":   insufficient.Total,
		})
	case errors.Is(err, ledger.ErrPartialCommit):
		details := map[string]any{}
		if errors.As(err, &commitErr) {
			details["invoice_id"] = commitErr.InvoiceID
		}

		httpx.Logger(r.Context()).Error("drop-off outcome unknown", "error", err)
		httpx.Error(w, r, http.StatusInternalServerError, "outcome_unknown",
			"drop-off outcome unknown, check history before retrying", details)
	case errors.Is(err, ledger.ErrCommitAborted):
		httpx.Logger(r.Context()).Warn("drop-off aborted", "error", err)
		httpx.Error(w, r, http.StatusConflict, "conflict", "drop-off was not recorded, retry", nil)
	case errors.Is(err, ledger.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		httpx.Logger(r.Context()).Error("drop-off store unavailable", "error", err)
		httpx.Error(w, r, http.StatusServiceUnavailable, "store_unavailable", "store unavailable, retry later", nil)
	default:
		httpx.Logger(r.Context()).Error("drop-off failed", "error", err)
		httpx.Error(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}
