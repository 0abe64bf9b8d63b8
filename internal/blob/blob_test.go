package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wedplan/internal/config"
)

func TestFS_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)

	info, err := s.Put(ctx, "ideas/i1.png", strings.NewReader("png-bytes"), "")
	require.NoError(t, err)
	assert.Equal(t, "ideas/i1.png", info.Key)
	assert.Equal(t, int64(9), info.Size)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Len(t, info.ETag, 64)

	_, err = s.Put(ctx, "ideas/i1.png", strings.NewReader("newer"), "image/png")
	require.NoError(t, err, "put replaces")

	r, got, err := s.Get(ctx, "ideas/i1.png")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "newer", string(data))
	assert.Equal(t, int64(5), got.Size)

	url, err := s.URL(ctx, "ideas/i1.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
	assert.True(t, strings.HasSuffix(url, "/ideas/i1.png"))

	require.NoError(t, s.Delete(ctx, "ideas/i1.png"))
	require.NoError(t, s.Delete(ctx, "ideas/i1.png"))
	_, _, err = s.Get(ctx, "ideas/i1.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSanitizeKey(t *testing.T) {
	for _, key := range []string{"", "  ", "/etc/passwd", "../x", "ideas/../../x"} {
		_, err := sanitizeKey(key)
		assert.Error(t, err, key)
	}
	clean, err := sanitizeKey("ideas//a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "ideas/a.jpg", clean)
}

func TestImageKey(t *testing.T) {
	assert.Equal(t, "ideas/i1.jpg", ImageKey("ideas/", "i1", "/home/ana/Arco.JPG"))
	assert.Equal(t, "i1", ImageKey("", "i1", "sin-extension"))
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.Blob{Backend: "fs", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FS{}, s)

	_, err = Open(context.Background(), config.Blob{Backend: "s3"})
	assert.ErrorContains(t, err, "bucket")

	_, err = Open(context.Background(), config.Blob{Backend: "ftp"})
	assert.Error(t, err)
}

func TestS3_PresignedURL(t *testing.T) {
	s, err := NewS3(context.Background(), S3Config{
		Bucket:          "boda",
		Region:          "eu-west-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		PathStyle:       true,
	})
	require.NoError(t, err)

	url, err := s.URL(context.Background(), "ideas/i1.jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/boda/ideas/i1.jpg?"), url)
	assert.Contains(t, url, "X-Amz-Signature=")

	_, err = s.URL(context.Background(), "../x")
	assert.Error(t, err)
}
