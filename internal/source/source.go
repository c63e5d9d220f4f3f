// Package source supplies frames to a recognition loop.
//
// A FrameSource yields frames in order and returns io.EOF once the stream ends.
// Any other error is an *AcquisitionError naming the frame that could not be read.
package source

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"

	"go-plate-recognizer/internal/storage"
)

// Frame is one image of a stream.
type Frame struct {
	Seq       int64
	Timestamp int64 // unix nanoseconds at acquisition
	Image     image.Image
	Source    string
}

// Width returns the frame width in pixels.
func (f Frame) Width() int { return f.Image.Bounds().Dx() }

// Height returns the frame height in pixels.
func (f Frame) Height() int { return f.Image.Bounds().Dy() }

// FrameSource produces frames until io.EOF.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// AcquisitionError reports a frame that exists but could not be read.
type AcquisitionError struct {
	Source string
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire frame %s: %v", e.Source, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// loader reads one named frame.
type loader func(ctx context.Context, name string) (image.Image, error)

// listSource walks a fixed list of names in order.
type listSource struct {
	mu     sync.Mutex
	names  []string
	next   int
	seq    int64
	load   loader
	clock  clock.Clock
	closed bool
}

func (s *listSource) Next(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.next >= len(s.names) {
		return Frame{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	name := s.names[s.next]
	s.next++

	img, err := s.load(ctx, name)
	if err != nil {
		return Frame{}, &AcquisitionError{Source: name, Err: err}
	}
	s.seq++
	return Frame{
		Seq:       s.seq,
		Timestamp: s.clock.Now().UnixNano(),
		Image:     img,
		Source:    name,
	}, nil
}

// Close ends the stream; later Next calls return io.EOF.
func (s *listSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Option customizes a source.
type Option func(*listSource)

// WithClock sets the clock used for frame timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *listSource) { s.clock = c }
}

func newListSource(names []string, load loader, opts ...Option) *listSource {
	s := &listSource{names: names, load: load, clock: clock.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewDirectorySource streams the image files of dir in lexical order. EXIF
// orientation is applied while decoding.
func NewDirectorySource(dir string, opts ...Option) (FrameSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && storage.IsImageName(e.Name()) {
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(names)
	return NewFileSource(names, opts...), nil
}

// NewFileSource streams the given image files in the order given.
func NewFileSource(paths []string, opts ...Option) FrameSource {
	return newListSource(paths, storage.NewLocalImageFetcher("").FetchImage, opts...)
}

// NewURLSource streams images fetched over HTTP.
func NewURLSource(fetcher storage.ImageFetcher, urls []string, opts ...Option) FrameSource {
	return newListSource(urls, fetcher.FetchImage, opts...)
}

// NewBlobSource streams every image blob under prefix, ordered by blob name.
func NewBlobSource(ctx context.Context, blobs storage.BlobStorage, container, prefix string, opts ...Option) (FrameSource, error) {
	urls, err := blobs.ListImages(ctx, container, prefix)
	if err != nil {
		return nil, err
	}
	return newListSource(urls, blobs.GetImage, opts...), nil
}
