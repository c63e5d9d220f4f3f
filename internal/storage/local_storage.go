package storage

import (
	"context"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// LocalImageFetcher reads images from the file system. Relative paths resolve
// against Root; a "file://" prefix is accepted.
type LocalImageFetcher struct {
	Root string
}

// NewLocalImageFetcher returns a fetcher rooted at root ("" means the working directory).
func NewLocalImageFetcher(root string) *LocalImageFetcher {
	return &LocalImageFetcher{Root: root}
}

// FetchImage decodes the file with EXIF orientation applied.
func (f *LocalImageFetcher) FetchImage(ctx context.Context, name string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = strings.TrimPrefix(name, "file://")
	if f.Root != "" && !filepath.IsAbs(name) {
		name = filepath.Join(f.Root, name)
	}
	return imaging.Open(name, imaging.AutoOrientation(true))
}

// BlobImageFetcher exposes blob storage as an ImageFetcher keyed by blob URL.
type BlobImageFetcher struct {
	Storage BlobStorage
}

func (f BlobImageFetcher) FetchImage(ctx context.Context, blobURL string) (image.Image, error) {
	return f.Storage.GetImage(ctx, blobURL)
}
