// Package scaler implements the on-demand image scaling middleware. A request
// for basename_WxH-flags.ext is answered by fetching basename.<original ext>
// from the wrapped handler and replacing its body with the scaled image.
package scaler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/imgfit/imgfit/internal/httputil"
	"github.com/imgfit/imgfit/internal/imaging"
	"github.com/imgfit/imgfit/internal/metrics"
)

// DefaultOriginalExtensions is the order in which originals are looked up.
var DefaultOriginalExtensions = []string{"jpg", "png", "gif"}

// Config is the instance-wide configuration. It is read-only once the
// middleware is constructed.
type Config struct {
	Matcher            PathMatcher // nil = DefaultPattern
	OriginalExtensions []string    // nil = DefaultOriginalExtensions
	MemoryLimit        int64       // zero = imaging.DefaultMemoryLimit
	JPEGQuality        int
	Overrides          Overrides
	Cropper            CropCapability // nil = NoCropper
}

// Middleware scales images served by a downstream handler.
type Middleware struct {
	matcher    PathMatcher
	extensions []string
	overrides  Overrides
	engine     *Engine
	logger     *slog.Logger
}

// New builds the middleware from cfg.
func New(cfg Config, logger *slog.Logger) *Middleware {
	if cfg.Matcher == nil {
		cfg.Matcher = MustPatternMatcher(DefaultPattern)
	}
	if len(cfg.OriginalExtensions) == 0 {
		cfg.OriginalExtensions = DefaultOriginalExtensions
	}
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = imaging.DefaultMemoryLimit
	}
	extensions := make([]string, len(cfg.OriginalExtensions))
	copy(extensions, cfg.OriginalExtensions)

	return &Middleware{
		matcher:    cfg.Matcher,
		extensions: extensions,
		overrides:  cfg.Overrides,
		engine:     NewEngine(cfg.MemoryLimit, cfg.JPEGQuality, NewPostCropper(cfg.Cropper, logger), logger),
		logger:     logger,
	}
}

// Handler wraps next. Paths the matcher rejects, and matched paths whose
// original is missing under every extension, are served by next untouched.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	fetcher := NewFetcher(next, m.extensions)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		match, ok := m.matcher.Match(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		req := m.overrides.Apply(match.Request)
		contentType := contentTypeFor(req.Extension)
		filter := NewBodyFilter(m.engine, req, contentType, m.logger)

		orig, found := fetcher.Fetch(r, match.Basename, func(o *Original) io.Writer {
			copyHeader(w.Header(), o.Header)
			w.Header().Set("Content-Type", contentType)
			if o.Status != http.StatusOK {
				// Relayed as is, e.g. 304 for a conditional request against the original.
				w.WriteHeader(o.Status)
				if r.Method == http.MethodHead {
					return io.Discard
				}
				return w
			}
			// The transformed body is never range-addressable.
			w.Header().Del("Content-Length")
			w.Header().Del("Accept-Ranges")
			return filter
		})
		if !found {
			m.logger.Debug("original not found, passing through", "path", r.URL.Path, "basename", match.Basename)
			metrics.RecordOutcome(metrics.OutcomeNotFound)
			next.ServeHTTP(w, r)
			return
		}
		if orig.Status != http.StatusOK {
			metrics.RecordOutcome(metrics.OutcomePassthrough)
			return
		}

		start := time.Now()
		out, err := filter.Finish()
		elapsed := time.Since(start).Seconds()
		if errors.Is(err, ErrUnsupportedEncoding) {
			metrics.RecordTransform(metrics.OutcomeUnsupported, elapsed)
			m.logger.Error("cannot encode requested type", "path", r.URL.Path, "content_type", contentType, "error", err)
			for _, h := range []string{"ETag", "Last-Modified", "Cache-Control", "Content-Length"} {
				w.Header().Del(h)
			}
			httputil.WriteError(w, http.StatusInternalServerError, "unsupported output encoding: "+contentType)
			return
		}
		if filter.Err() != nil {
			metrics.RecordTransform(metrics.OutcomeError, elapsed)
		} else {
			metrics.RecordTransform(metrics.OutcomeOK, elapsed)
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(out)))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			w.Write(out) //nolint:errcheck
		}
	})
}

func contentTypeFor(ext string) string {
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		dst[k] = append([]string(nil), vv...)
	}
}
