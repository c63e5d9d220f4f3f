package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
)

// FileSink writes every frame it receives as a PNG under a directory. With
// Overwrite set it keeps a single file, the last frame seen.
type FileSink struct {
	Dir       string
	Prefix    string
	Overwrite bool
	Clock     clock.Clock
	seq       atomic.Int64
}

// NewFileSink creates the directory if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create diagnostic dir: %w", err)
	}
	return &FileSink{Dir: dir, Prefix: "frame", Clock: clock.New()}, nil
}

func (s *FileSink) SaveFrame(_ context.Context, img image.Image) error {
	return imaging.Save(img, filepath.Join(s.Dir, s.name()))
}

func (s *FileSink) name() string {
	if s.Overwrite {
		return s.Prefix + ".png"
	}
	return frameName(s.Prefix, s.Clock.Now(), s.seq.Add(1))
}

// BlobSink uploads every frame it receives as a PNG into a blob container.
type BlobSink struct {
	Storage   BlobStorage
	Container string
	Prefix    string
	Clock     clock.Clock
	seq       atomic.Int64
}

func NewBlobSink(storage BlobStorage, container string) *BlobSink {
	return &BlobSink{Storage: storage, Container: container, Prefix: "frame", Clock: clock.New()}
}

func (s *BlobSink) SaveFrame(ctx context.Context, img image.Image) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode diagnostic frame: %w", err)
	}
	return s.Storage.PutImage(ctx, s.Container, frameName(s.Prefix, s.Clock.Now(), s.seq.Add(1)), buf.Bytes())
}

func frameName(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d.png", prefix, at.UTC().Format("20060102T150405.000"), seq)
}
