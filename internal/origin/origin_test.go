package origin

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgfit/imgfit/internal/testutil"
)

var _ Backend = (*LocalBackend)(nil)
var _ Backend = (*S3Backend)(nil)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"cat.png", false},
		{"a/b/cat.jpg", false},
		{"..cat.png", false},
		{"", true},
		{"/cat.png", true},
		{"../cat.png", true},
		{"a/../../cat.png", true},
		{strings.Repeat("x", 1025), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateName(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newLocal(t *testing.T) (*LocalBackend, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.png"), testutil.MakePNG(t, 8, 8), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "dog.jpg"), testutil.MakeJPEG(t, 8, 8), 0o644))
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)
	return b, dir
}

func TestNewLocalBackendRequiresDirectory(t *testing.T) {
	_, err := NewLocalBackend(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = NewLocalBackend(file)
	assert.ErrorContains(t, err, "not a directory")
}

func TestLocalBackendOpen(t *testing.T) {
	b, _ := newLocal(t)

	r, info, err := b.Open(context.Background(), "sub/dog.jpg")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, info.Size, int64(len(data)))
	assert.NotEmpty(t, info.ETag)
	assert.False(t, info.ModTime.IsZero())
	assert.Empty(t, info.ContentType)
}

func TestLocalBackendNotFound(t *testing.T) {
	b, _ := newLocal(t)

	for _, name := range []string{"nope.png", "sub"} {
		_, _, err := b.Open(context.Background(), name)
		assert.ErrorIs(t, err, ErrNotFound, name)
	}
	_, _, err := b.Open(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestLocalBackendETagChangesWithContent(t *testing.T) {
	b, dir := newLocal(t)

	_, first, err := b.Open(context.Background(), "cat.png")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.png"), testutil.MakePNG(t, 16, 16), 0o644))
	_, second, err := b.Open(context.Background(), "cat.png")
	require.NoError(t, err)
	assert.NotEqual(t, first.ETag, second.ETag)
}

func TestHandlerServesObject(t *testing.T) {
	b, _ := newLocal(t)
	h := NewHandler(b, testutil.DiscardLogger())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cat.png", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
	etag := w.Header().Get("ETag")
	assert.True(t, strings.HasPrefix(etag, `"`) && strings.HasSuffix(etag, `"`), etag)
	assert.NotEmpty(t, w.Header().Get("Last-Modified"))
	_, format := testutil.DecodeImage(t, w.Body.Bytes())
	assert.Equal(t, "png", format)
}

func TestHandlerConditionalRequest(t *testing.T) {
	b, _ := newLocal(t)
	h := NewHandler(b, testutil.DiscardLogger())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sub/dog.jpg", nil))
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/sub/dog.jpg", nil)
	req.Header.Set("If-None-Match", w.Header().Get("ETag"))
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusNotModified, w2.Code)
	assert.Zero(t, w2.Body.Len())
}

func TestHandlerNotFound(t *testing.T) {
	b, _ := newLocal(t)
	h := NewHandler(b, testutil.DiscardLogger())

	for _, p := range []string{"/nope.png", "/", "/sub"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, p)
		assert.Contains(t, w.Body.String(), "file not found", p)
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	b, _ := newLocal(t)
	h := NewHandler(b, testutil.DiscardLogger())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cat.png", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, HEAD", w.Header().Get("Allow"))
}

type brokenBackend struct{}

func (brokenBackend) Open(context.Context, string) (io.ReadSeekCloser, ObjectInfo, error) {
	return nil, ObjectInfo{}, errors.New("disk on fire")
}

func TestHandlerBackendError(t *testing.T) {
	h := NewHandler(brokenBackend{}, testutil.DiscardLogger())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cat.png", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}
