package account

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/laundrydesk/laundrydesk/internal/account"
	"github.com/laundrydesk/laundrydesk/internal/http/httpx"
)

const defaultQRSize = 256

type Handler struct {
	svc *account.Service
}

func NewHandler(svc *account.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{code}", h.get)
	r.Get("/{code}/qr", h.qr)
}

type accountResponse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	acc, err := h.svc.Lookup(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.JSON(w, r, http.StatusOK, accountResponse{
		ID:        acc.ID,
		Code:      acc.Code,
		Balance:   acc.Balance,
		CreatedAt: acc.CreatedAt,
	})
}

func (h *Handler) qr(w http.ResponseWriter, r *http.Request) {
	size := defaultQRSize

	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			httpx.Error(w, r, http.StatusBadRequest, "invalid_request", "size must be a number", nil)
			return
		}

		size = n
	}

	png, err := h.svc.QRCode(r.Context(), chi.URLParam(r, "code"), size)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))

	if _, err := w.Write(png); err != nil {
		httpx.Logger(r.Context()).Error("failed to write qr code", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, account.ErrNotFound) {
		httpx.Error(w, r, http.StatusNotFound, "account_not_found", "account not found", nil)
		return
	}

	httpx.Logger(r.Context()).Error("failed to load account", "error", err)
	httpx.Error(w, r, http.StatusServiceUnavailable, "store_unavailable", "could not load account", nil)
}
