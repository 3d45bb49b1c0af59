package scaler

import (
	"bytes"
	"errors"
	"log/slog"
)

// ErrFilterDone is returned by BodyFilter.Write once end of stream was signalled.
var ErrFilterDone = errors.New("body filter already finished")

type filterState int

const (
	stateAccumulating filterState = iota
	stateFlushing
	stateDone
)

func (s filterState) String() string {
	switch s {
	case stateAccumulating:
		return "accumulating"
	case stateFlushing:
		return "flushing"
	default:
		return "done"
	}
}

// BodyFilter buffers an original response body and replaces it with the
// scaled image at end of stream. Nothing is emitted while accumulating; the
// resize needs the complete encoded image.
type BodyFilter struct {
	engine *Engine
	req    ScaleRequest
	ct     string
	logger *slog.Logger

	state filterState
	buf   bytes.Buffer
	err   error
}

// NewBodyFilter returns a filter that scales to req, encoding as contentType.
func NewBodyFilter(engine *Engine, req ScaleRequest, contentType string, logger *slog.Logger) *BodyFilter {
	return &BodyFilter{engine: engine, req: req, ct: contentType, logger: logger}
}

// Write appends p to the buffer.
func (f *BodyFilter) Write(p []byte) (int, error) {
	if f.state != stateAccumulating {
		return 0, ErrFilterDone
	}
	return f.buf.Write(p)
}

// Finish signals end of stream. It runs the engine on the buffered body,
// releases the buffer and returns the single output chunk. A decode or
// resize failure is logged and yields an empty chunk. Only an unsupported
// output encoding is returned as an error. Calls after the first return
// nothing.
func (f *BodyFilter) Finish() ([]byte, error) {
	if f.state != stateAccumulating {
		return nil, nil
	}
	f.state = stateFlushing

	res, err := f.engine.Scale(f.buf.Bytes(), f.ct, f.req.Width, f.req.Height, f.req.Flags)
	f.buf = bytes.Buffer{}
	f.state = stateDone

	if err != nil {
		f.err = err
		if errors.Is(err, ErrUnsupportedEncoding) {
			return nil, err
		}
		f.logger.Error("image transform failed",
			"content_type", f.ct, "width", f.req.Width, "height", f.req.Height,
			"flags", f.req.Flags.String(), "error", err)
		return []byte{}, nil
	}
	return res.Data, nil
}

// Err returns the transform error recorded by Finish, if any.
func (f *BodyFilter) Err() error {
	return f.err
}
