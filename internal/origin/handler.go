package origin

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/imgfit/imgfit/internal/httputil"
)

// Handler serves objects from a Backend by request path.
type Handler struct {
	backend Backend
	logger  *slog.Logger
}

// NewHandler creates a new origin handler.
func NewHandler(backend Backend, logger *slog.Logger) *Handler {
	return &Handler{backend: backend, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	reader, info, err := h.backend.Open(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidName):
			httputil.WriteError(w, http.StatusNotFound, "file not found")
		default:
			h.logger.Error("origin read error", "name", name, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	defer reader.Close()

	ct := info.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(path.Ext(name))
	}
	if ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if info.ETag != "" {
		w.Header().Set("ETag", `"`+strings.Trim(info.ETag, `"`)+`"`)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, name, info.ModTime, reader)
}
