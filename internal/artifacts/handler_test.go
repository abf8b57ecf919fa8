package artifacts

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Get(t *testing.T) {
	store, err := NewStore(t.TempDir(), "")
	require.NoError(t, err)
	png := []byte("\x89PNG\r\n\x1a\nrest")
	name, err := store.Save(KindImage, "png", png)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Get("/artifacts/{name}", NewHandler(store).Get)

	t.Run("serves stored artifact", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/artifacts/"+name, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, png, rec.Body.Bytes())
		assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
	})

	t.Run("range request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/artifacts/"+name, nil)
		req.Header.Set("Range", "bytes=0-3")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusPartialContent, rec.Code)
		assert.Equal(t, png[:4], rec.Body.Bytes())
	})

	t.Run("unknown artifact", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/artifacts/image-0f8fad5b-d9cb-469f-a165-70867728950e.png", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("foreign name", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/artifacts/passwd", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
