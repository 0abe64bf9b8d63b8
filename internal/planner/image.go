package planner

import (
	"context"
	"fmt"
	"io"

	"github.com/roach88/wedplan/internal/blob"
	"github.com/roach88/wedplan/internal/entity"
)

// AttachImage uploads an image for an idea and points the idea's imageURL
// at it. The upload is kept when the idea update fails so a retry does
// not need the file again.
func (a *App) AttachImage(ctx context.Context, ideaID, filename string, r io.Reader) (string, error) {
	if a.blobs == nil {
		return "", ErrNoBlobStore
	}
	if _, ok := a.Ideas.Get(ideaID); !ok {
		return "", fmt.Errorf("idea %s: %w", ideaID, ErrNotFound)
	}

	key := blob.ImageKey(a.blobPrefix, ideaID, filename)
	info, err := a.blobs.Put(ctx, key, r, "")
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	url, err := a.blobs.URL(ctx, info.Key)
	if err != nil {
		return "", fmt.Errorf("image url: %w", err)
	}
	a.logger.Info("image attached", "idea", ideaID, "key", info.Key, "size", info.Size)

	if err := a.Ideas.Update(ctx, ideaID, entity.Record{"imageURL": url}); err != nil {
		return "", err
	}
	return url, nil
}
