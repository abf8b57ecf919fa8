package memory

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aiox-platform/companion/internal/api"
)

// Handler handles memory HTTP endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// NewHandler creates a new memory handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// List returns paginated memories for a thread.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	if threadID == "" {
		api.HandleError(w, api.NewBadRequestError("thread id is required"))
		return
	}

	page := 1
	pageSize := 20
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	records, totalCount, err := h.svc.List(r.Context(), threadID, page, pageSize)
	if err != nil {
		slog.Error("listing memories", "error", err, "thread_id", threadID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if records == nil {
		records = []Record{}
	}
	for i := range records {
		records[i].Embedding = nil
	}

	api.JSONPaginated(w, http.StatusOK, records, totalCount, page, pageSize)
}

// Search performs a free-text similarity search on thread memories.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	results, err := h.svc.Search(r.Context(), threadID, req.Query, req.Limit)
	if err != nil {
		slog.Error("searching memories", "error", err, "thread_id", threadID)
		api.HandleError(w, api.FromDomainError(err))
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	for i := range results {
		results[i].Record.Embedding = nil
	}

	api.JSON(w, http.StatusOK, results)
}
