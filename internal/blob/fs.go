package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

// FS keeps objects as plain files under a root directory.
type FS struct {
	root string
}

var _ Store = (*FS)(nil)

// NewFS returns a filesystem store rooted at root, creating it if needed.
func NewFS(root string) (*FS, error) {
	if root == "" {
		return nil, errors.New("blob root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FS{root: root}, nil
}

func (s *FS) pathFor(key string) (string, string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	return clean, filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put writes r to key through a temporary file.
func (s *FS) Put(_ context.Context, key string, r io.Reader, contentType string) (Info, error) {
	clean, p, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Info{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".blob-*")
	if err != nil {
		return Info{}, err
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Info{}, fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return Info{}, err
	}
	if contentType == "" {
		contentType = ContentType(clean)
	}
	return Info{Key: clean, Size: n, ContentType: contentType, ETag: hex.EncodeToString(h.Sum(nil))}, nil
}

// Get opens key for reading.
func (s *FS) Get(_ context.Context, key string) (io.ReadCloser, Info, error) {
	clean, p, err := s.pathFor(key)
	if err != nil {
		return nil, Info{}, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, Info{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, Info{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Info{}, err
	}
	return f, Info{Key: clean, Size: st.Size(), ContentType: ContentType(clean)}, nil
}

// Delete removes key. Missing keys are not an error.
func (s *FS) Delete(_ context.Context, key string) error {
	_, p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// URL returns a file:// URL for key.
func (s *FS) URL(_ context.Context, key string) (string, error) {
	_, p, err := s.pathFor(key)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
