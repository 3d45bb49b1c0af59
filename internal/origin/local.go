package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// LocalBackend reads originals from a directory on disk.
type LocalBackend struct {
	root string
}

// NewLocalBackend returns a backend rooted at root, which must be an existing directory.
func NewLocalBackend(root string) (*LocalBackend, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening origin directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("origin path %s is not a directory", root)
	}
	return &LocalBackend{root: root}, nil
}

func (b *LocalBackend) Open(_ context.Context, name string) (io.ReadSeekCloser, ObjectInfo, error) {
	if err := validateName(name); err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(filepath.Join(b.root, filepath.FromSlash(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("opening %s: %w", name, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat %s: %w", name, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, ObjectInfo{}, ErrNotFound
	}
	return f, ObjectInfo{
		Size:    st.Size(),
		ModTime: st.ModTime(),
		ETag:    strconv.FormatInt(st.ModTime().UnixNano(), 36) + "-" + strconv.FormatInt(st.Size(), 36),
	}, nil
}
