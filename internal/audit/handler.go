package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aiox-platform/companion/internal/api"
)

// Lister reads turn history.
type Lister interface {
	ListByThread(ctx context.Context, threadID string, params ListParams) ([]TurnRecord, int64, error)
}

// Handler handles turn history HTTP endpoints.
type Handler struct {
	repo Lister
}

// NewHandler creates a new audit handler.
func NewHandler(repo Lister) *Handler {
	return &Handler{repo: repo}
}

// ListTurns returns paginated turn records for a thread.
func (h *Handler) ListTurns(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	params, err := parseListParams(r)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError(err.Error()))
		return
	}

	records, total, err := h.repo.ListByThread(r.Context(), threadID, params)
	if err != nil {
		slog.Error("listing turn events", "error", err, "thread_id", threadID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if records == nil {
		records = []TurnRecord{}
	}

	api.JSONPaginated(w, http.StatusOK, records, total, params.Page, params.PageSize)
}

func parseListParams(r *http.Request) (ListParams, error) {
	params := DefaultListParams()
	q := r.URL.Query()

	if p := q.Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			params.Page = v
		}
	}
	if ps := q.Get("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			params.PageSize = v
		}
	}

	params.Status = q.Get("status")

	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return params, errInvalidTime("from")
		}
		params.From = &t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return params, errInvalidTime("to")
		}
		params.To = &t
	}

	return params, nil
}

type errInvalidTime string

func (e errInvalidTime) Error() string {
	return string(e) + " must be an RFC 3339 timestamp"
}
