// Package blob stores mood-board images referenced by ideas. Objects are
// addressed by slash-separated keys; backends are the local filesystem and
// S3-compatible object storage.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/roach88/wedplan/internal/config"
)

// ErrNotFound is returned for missing keys.
var ErrNotFound = errors.New("blob not found")

// Info describes a stored object.
type Info struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
}

// Store is a blob backend. Put replaces any existing object.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, Info, error)
	Delete(ctx context.Context, key string) error
	// URL returns a link the image can be displayed from.
	URL(ctx context.Context, key string) (string, error)
}

// Open builds the backend selected by cfg.
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	switch cfg.Backend {
	case "", "fs":
		return NewFS(cfg.Dir)
	case "s3":
		return NewS3(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
	}
	return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
}

// ImageKey builds the key for an idea image: prefix + id + the extension
// of the original file name.
func ImageKey(prefix, ideaID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return prefix + ideaID + ext
}

// ContentType guesses a content type from the key's extension.
func ContentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// sanitizeKey rejects keys that could escape the store root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key %q", key)
	}
	clean := path.Clean(key)
	for _, part := range strings.Split(clean, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid key %q", key)
		}
	}
	return clean, nil
}
