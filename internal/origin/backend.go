// Package origin serves unmodified original images. It is the downstream
// handler the scaler fetches from, and answers 404 for anything missing.
package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrInvalidName = errors.New("invalid object name")
)

// ObjectInfo is the metadata needed to serve an object with validators.
type ObjectInfo struct {
	Size        int64
	ModTime     time.Time
	ETag        string // unquoted; empty when the backend has none
	ContentType string // empty = derive from the name
}

// Backend opens stored originals.
type Backend interface {
	// Open returns a seekable reader for name, or ErrNotFound.
	Open(ctx context.Context, name string) (io.ReadSeekCloser, ObjectInfo, error)
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: object name is required", ErrInvalidName)
	}
	if len(name) > 1024 {
		return fmt.Errorf("%w: object name too long (max 1024)", ErrInvalidName)
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: object name must not start with /", ErrInvalidName)
	}
	for part := range strings.SplitSeq(name, "/") {
		if part == ".." {
			return fmt.Errorf("%w: object name must not contain ..", ErrInvalidName)
		}
	}
	return nil
}
