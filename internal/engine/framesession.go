package engine

import (
	"image"
	"sync"
)

// DetectFunc runs one detection pass with the RecognizeOnce contract.
type DetectFunc func(img image.Image, opts Options, rects []Rect, texts [][]byte) (int, int)

// FrameSession adapts a per-image detector into a Session for engines without a
// native multi-frame primitive. Each AddFrame reports that frame's detections; the
// caller owns the temporal vote.
type FrameSession struct {
	mu        sync.Mutex
	detect    DetectFunc
	opts      Options
	bounds    Rect
	maxFrames int
	frames    int
	memory    [3]int
	lines     [4]image.Point
	released  bool
}

// NewFrameSession validates the geometry and returns a handle bound to it.
func NewFrameSession(detect DetectFunc, maxFrames int, opts Options, bounds Rect) (*FrameSession, error) {
	if bounds.Empty() {
		return nil, ErrInvalidBounds
	}
	if maxFrames <= 0 {
		return nil, ErrInvalidFrameWindow
	}
	return &FrameSession{
		detect:    detect,
		opts:      opts,
		bounds:    bounds,
		maxFrames: maxFrames,
	}, nil
}

func (s *FrameSession) AddFrame(img image.Image, rects []Rect, texts [][]byte) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return 0, StatusFailure
	}
	if img == nil || img.Bounds().Empty() {
		return 0, StatusImageEmpty
	}
	b := img.Bounds()
	if b.Dx() != s.bounds.Width || b.Dy() != s.bounds.Height {
		return 0, StatusFailure
	}
	s.frames++
	return s.detect(img, s.opts, rects, texts)
}

func (s *FrameSession) ConfigureMemory(minHits, maxMisses, maxTracked int) int {
	if minHits <= 0 || maxMisses <= 0 || maxTracked <= 0 {
		return StatusFailure
	}
	s.mu.Lock()
	s.memory = [3]int{minHits, maxMisses, maxTracked}
	s.mu.Unlock()
	return StatusOK
}

func (s *FrameSession) ConfigureLines(a1, a2, b1, b2 image.Point) int {
	if a1 == a2 || b1 == b2 {
		return StatusFailure
	}
	s.mu.Lock()
	s.lines = [4]image.Point{a1, a2, b1, b2}
	s.mu.Unlock()
	return StatusOK
}

// Release is safe to call more than once.
func (s *FrameSession) Release() {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
}

// Memory returns the last accepted memory configuration.
func (s *FrameSession) Memory() (minHits, maxMisses, maxTracked int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory[0], s.memory[1], s.memory[2]
}

// Lines returns the last accepted counting segments.
func (s *FrameSession) Lines() [4]image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}

// Frames returns how many frames were accepted.
func (s *FrameSession) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
