package storage

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/disintegration/imaging"
)

type BlobStorage interface {
	GetImage(ctx context.Context, blobURL string) (image.Image, error)
	ListImages(ctx context.Context, container, prefix string) ([]string, error)
	PutImage(ctx context.Context, container, name string, data []byte) error
}

type azureStorage struct {
	client *azblob.Client
}

func NewAzureStorage(accountName string, accountKey string) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}

	return &azureStorage{client: client}, nil
}

// ParseBlobURL splits "https://host/<container>?blob=<name>" into its parts. A
// plain "https://host/<container>/<name>" URL is accepted as well.
func ParseBlobURL(blobURL string) (container, blob string, err error) {
	parsedURL, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}
	trimmed := strings.TrimPrefix(parsedURL.Path, "/")
	if name := parsedURL.Query().Get("blob"); name != "" {
		return trimmed, name, nil
	}
	container, blob, ok := strings.Cut(trimmed, "/")
	if !ok || container == "" || blob == "" {
		return "", "", fmt.Errorf("invalid blob URL: %q has no blob name", blobURL)
	}
	return container, blob, nil
}

func (s *azureStorage) GetImage(ctx context.Context, blobURL string) (image.Image, error) {
	containerName, blobName, err := ParseBlobURL(blobURL)
	if err != nil {
		return nil, err
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	return imaging.Decode(retryReader, imaging.AutoOrientation(true))
}

// ListImages returns blob URLs under prefix, sorted by name so frames keep order.
func (s *azureStorage) ListImages(ctx context.Context, container, prefix string) ([]string, error) {
	pager := s.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	var names []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil && IsImageName(*item.Name) {
				names = append(names, *item.Name)
			}
		}
	}
	sort.Strings(names)

	base := s.client.URL()
	urls := make([]string, len(names))
	for i, name := range names {
		urls[i] = fmt.Sprintf("%s/%s?blob=%s", strings.TrimSuffix(base, "/"), container, url.QueryEscape(name))
	}
	return urls, nil
}

func (s *azureStorage) PutImage(ctx context.Context, container, name string, data []byte) error {
	if _, err := s.client.UploadBuffer(ctx, container, name, data, nil); err != nil {
		return fmt.Errorf("upload %s/%s: %w", container, name, err)
	}
	return nil
}

// IsImageName reports whether a file or blob name has a decodable image extension.
func IsImageName(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".gif", ".webp":
		return true
	}
	return false
}
