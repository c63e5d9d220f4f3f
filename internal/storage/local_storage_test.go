package storage

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalImageFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, imaging.Save(image.NewGray(image.Rect(0, 0, 7, 3)), filepath.Join(dir, "a.png")))

	f := NewLocalImageFetcher(dir)
	img, err := f.FetchImage(context.Background(), "a.png")
	require.NoError(t, err)
	assert.Equal(t, 7, img.Bounds().Dx())

	img, err = NewLocalImageFetcher("").FetchImage(context.Background(), "file://"+filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dy())

	_, err = f.FetchImage(context.Background(), "missing.png")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.FetchImage(ctx, "a.png")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBlobImageFetcher(t *testing.T) {
	blobs := &memoryBlobs{}
	f := BlobImageFetcher{Storage: blobs}
	_, err := f.FetchImage(context.Background(), "https://acct.blob.core.windows.net/c/x.png")
	assert.Error(t, err)
}
