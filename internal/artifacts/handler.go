package artifacts

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aiox-platform/companion/internal/api"
)

// Handler serves stored artifacts over HTTP.
type Handler struct {
	store *Store
}

// NewHandler creates a new artifact handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Get streams one artifact. Range requests are supported for audio players.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	f, info, err := h.store.Open(name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			api.HandleError(w, api.NewNotFoundError("artifact not found"))
			return
		}
		slog.Error("opening artifact", "error", err, "name", name)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	defer f.Close()

	// Names are random and contents never change.
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
