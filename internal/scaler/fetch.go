package scaler

import (
	"io"
	"net/http"
)

// Original is the downstream response chosen for a basename.
type Original struct {
	Path   string
	Status int
	Header http.Header
}

// AttachFunc receives the first downstream response that is not a 404 and
// returns the writer its body is copied into.
type AttachFunc func(o *Original) io.Writer

// Fetcher looks up the original image by trying each configured extension
// against the downstream handler, in order, until one does not answer 404.
type Fetcher struct {
	next       http.Handler
	extensions []string
}

// NewFetcher returns a Fetcher issuing sub-requests to next.
func NewFetcher(next http.Handler, extensions []string) *Fetcher {
	return &Fetcher{next: next, extensions: extensions}
}

// Fetch issues one sub-request per extension for basename.ext. The first
// response that is not 404 is handed to attach as soon as its status is
// known, and its body is streamed into the returned writer. ok is false
// when every extension answered 404.
func (f *Fetcher) Fetch(r *http.Request, basename string, attach AttachFunc) (*Original, bool) {
	for _, ext := range f.extensions {
		sub := subRequest(r, basename+"."+ext)
		sr := &subResponse{path: sub.URL.Path, header: make(http.Header), attach: attach}
		f.next.ServeHTTP(sr, sub)
		sr.finish()
		if sr.notFound {
			continue
		}
		return sr.orig, true
	}
	return nil, false
}

func subRequest(r *http.Request, p string) *http.Request {
	sub := r.Clone(r.Context())
	sub.URL.Path = p
	sub.URL.RawPath = ""
	sub.RequestURI = p
	if sub.URL.RawQuery != "" {
		sub.RequestURI += "?" + sub.URL.RawQuery
	}
	// The transform needs the full original even when the client only asked
	// for headers or a byte range of the scaled image.
	if sub.Method == http.MethodHead {
		sub.Method = http.MethodGet
	}
	sub.Header.Del("Range")
	sub.Header.Del("If-Range")
	return sub
}

// subResponse captures one downstream response. A 404 is swallowed;
// anything else is attached and its body forwarded.
type subResponse struct {
	path     string
	header   http.Header
	status   int
	notFound bool
	attach   AttachFunc
	orig     *Original
	body     io.Writer
}

func (s *subResponse) Header() http.Header {
	return s.header
}

func (s *subResponse) WriteHeader(code int) {
	if s.status != 0 || code < http.StatusOK {
		return
	}
	s.status = code
	if code == http.StatusNotFound {
		s.notFound = true
		return
	}
	s.orig = &Original{Path: s.path, Status: code, Header: s.header.Clone()}
	s.body = s.attach(s.orig)
}

func (s *subResponse) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.WriteHeader(http.StatusOK)
	}
	if s.notFound || s.body == nil {
		return len(p), nil
	}
	return s.body.Write(p)
}

// finish attaches a response whose handler returned without writing anything.
func (s *subResponse) finish() {
	if s.status == 0 {
		s.WriteHeader(http.StatusOK)
	}
}
