package main

import (
	"context"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-plate-recognizer/internal/config"
	"go-plate-recognizer/internal/factory"
	"go-plate-recognizer/internal/source"
	"go-plate-recognizer/internal/storage"
)

type fakeBlobs struct {
	names             []string
	container, prefix string
}

func (b *fakeBlobs) GetImage(_ context.Context, blobURL string) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, 6, 4)), nil
}

func (b *fakeBlobs) ListImages(_ context.Context, container, prefix string) ([]string, error) {
	b.container, b.prefix = container, prefix
	return b.names, nil
}

func (b *fakeBlobs) PutImage(context.Context, string, string, []byte) error { return nil }

type blobFactory struct {
	factory.StorageFactory
	blobs *fakeBlobs
}

func (f blobFactory) CreateBlobStorage() (storage.BlobStorage, error) { return f.blobs, nil }

func drain(t *testing.T, src source.FrameSource) []string {
	t.Helper()
	defer src.Close()
	var names []string
	for {
		frame, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return names
		}
		require.NoError(t, err)
		names = append(names, frame.Source)
	}
}

func TestOpenSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, imaging.Save(image.NewGray(image.Rect(0, 0, 4, 4)), filepath.Join(dir, "0001.png")))
	storages := factory.NewStorageFactory(&config.Config{})

	src, err := openSource(context.Background(), sourceDir, []string{dir}, "", "", storages)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "0001.png")}, drain(t, src))
}

func TestOpenSourceURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		require.NoError(t, imaging.Encode(w, image.NewGray(image.Rect(0, 0, 5, 3)), imaging.PNG))
	}))
	defer server.Close()
	storages := factory.NewStorageFactory(&config.Config{ImageFetchTimeout: time.Second, MaxRequestBodySize: 1 << 20})

	urls := []string{server.URL + "/1.png", server.URL + "/2.png"}
	src, err := openSource(context.Background(), sourceURL, urls, "", "", storages)
	require.NoError(t, err)
	assert.Equal(t, urls, drain(t, src))
}

func TestOpenSourceBlob(t *testing.T) {
	blobs := &fakeBlobs{names: []string{"cam1/0001.png", "cam1/0002.png"}}

	src, err := openSource(context.Background(), sourceBlob, nil, "frames", "cam1/", blobFactory{blobs: blobs})
	require.NoError(t, err)
	assert.Equal(t, blobs.names, drain(t, src))
	assert.Equal(t, "frames", blobs.container)
	assert.Equal(t, "cam1/", blobs.prefix)
}

func TestOpenSourceRejectsBadArguments(t *testing.T) {
	storages := factory.NewStorageFactory(&config.Config{})
	tests := []struct {
		name      string
		kind      string
		args      []string
		container string
	}{
		{name: "dir without directory", kind: sourceDir},
		{name: "dir with two directories", kind: sourceDir, args: []string{"a", "b"}},
		{name: "url without urls", kind: sourceURL},
		{name: "blob without container", kind: sourceBlob},
		{name: "blob without credentials", kind: sourceBlob, container: "frames"},
		{name: "unknown kind", kind: "ftp", args: []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := openSource(context.Background(), tt.kind, tt.args, tt.container, "", storages)
			assert.Error(t, err)
		})
	}
}
