package storage

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (image.Image, error)
}

// HTTPImageFetcher downloads still frames over HTTP with bounded retries
type HTTPImageFetcher struct {
	client   *http.Client
	attempts int
	maxBytes int64
	// backoff returns the pause before retry number attempt (1-based)
	backoff func(attempt int) time.Duration
}

// FetcherOption customizes an HTTPImageFetcher
type FetcherOption func(*HTTPImageFetcher)

// WithTimeout sets the per-request client timeout
func WithTimeout(timeout time.Duration) FetcherOption {
	return func(h *HTTPImageFetcher) {
		if timeout > 0 {
			h.client.Timeout = timeout
		}
	}
}

// WithMaxBytes caps the size of a downloaded image
func WithMaxBytes(n int64) FetcherOption {
	return func(h *HTTPImageFetcher) {
		if n > 0 {
			h.maxBytes = n
		}
	}
}

// WithBackoff replaces the linear retry backoff
func WithBackoff(backoff func(attempt int) time.Duration) FetcherOption {
	return func(h *HTTPImageFetcher) { h.backoff = backoff }
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher(opts ...FetcherOption) *HTTPImageFetcher {
	// Connection pooling sized for a handful of camera snapshot endpoints
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	h := &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		attempts: 3,
		maxBytes: 20 << 20,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * time.Second
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/bmp, image/tiff, */*")
	req.Header.Set("User-Agent", "go-plate-recognizer/1.0")

	var lastErr error
	for attempt := 1; attempt <= h.attempts; attempt++ {
		img, retry, err := h.fetchOnce(req)
		if err == nil {
			return img, nil
		}
		lastErr = err
		if !retry || attempt == h.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(h.backoff(attempt)):
		}
	}
	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", h.attempts, lastErr)
}

// fetchOnce performs one request. 4xx answers and undecodable bodies are final;
// transport errors and 5xx answers may be retried.
func (h *HTTPImageFetcher) fetchOnce(req *http.Request) (image.Image, bool, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	img, err := imaging.Decode(io.LimitReader(resp.Body, h.maxBytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, false, nil
}
