package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/laundrydesk/laundrydesk/internal/catalog"
	"github.com/laundrydesk/laundrydesk/internal/http/httpx"
)

const maxUploadSize = 10 << 20

type Handler struct {
	svc *catalog.Service
}

func NewHandler(svc *catalog.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
}

// WriteRoutes holds the routes that change the catalog.
func (h *Handler) WriteRoutes(r chi.Router) {
	r.Post("/import", h.importCSV)
}

type itemResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	UnitCost int64  `json:"unit_cost"`
}

type importResponse struct {
	Imported int            `json:"imported"`
	Items    []itemResponse `json:"items"`
}

func toResponseList(items []*catalog.Item) []itemResponse {
	resp := make([]itemResponse, len(items))
	for i, it := range items {
		resp[i] = itemResponse{ID: it.ID, Name: it.Name, UnitCost: it.UnitCost}
	}

	return resp
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		httpx.Logger(r.Context()).Error("failed to list catalog", "error", err)
		httpx.Error(w, r, http.StatusServiceUnavailable, "store_unavailable", "could not list catalog", nil)

		return
	}

	httpx.JSON(w, r, http.StatusOK, toResponseList(items))
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid_request", "failed to parse form: "+err.Error(), nil)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid_request", "file is required", nil)
		return
	}
	defer file.Close()

	items, err := h.svc.Import(r.Context(), file)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidCSV) {
			httpx.Error(w, r, http.StatusUnprocessableEntity, "invalid_csv", err.Error(), nil)
			return
		}

		httpx.Logger(r.Context()).Error("failed to import catalog", "error", err)
		httpx.Error(w, r, http.StatusServiceUnavailable, "store_unavailable", "could not save catalog", nil)

		return
	}

	httpx.JSON(w, r, http.StatusOK, importResponse{Imported: len(items), Items: toResponseList(items)})
}
