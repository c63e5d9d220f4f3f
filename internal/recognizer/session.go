package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-plate-recognizer/internal/engine"
	"go-plate-recognizer/internal/exchange"
	"go-plate-recognizer/internal/logger"
)

// State of a session.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	default:
		return "closed"
	}
}

// SessionConfig bounds the temporal consensus of a session.
type SessionConfig struct {
	MaxFrames          int
	MinFramesWithPlate int
	FramesWithoutPlate int
	MaxPlatesInMem     int
	// MatchDistance is the edit distance under which two readings may be the same
	// plate, provided their rectangles overlap by at least MinIoU.
	MatchDistance int
	MinIoU        float64
	Lines         *LinePair
}

// DefaultSessionConfig returns the default consensus parameters.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxFrames:          10,
		MinFramesWithPlate: 3,
		FramesWithoutPlate: 5,
		MaxPlatesInMem:     10,
		MatchDistance:      1,
		MinIoU:             0.3,
	}
}

// Validate rejects configurations the tracker cannot run with.
func (c SessionConfig) Validate() error {
	if c.MaxFrames <= 0 || c.MinFramesWithPlate <= 0 || c.FramesWithoutPlate <= 0 || c.MaxPlatesInMem <= 0 {
		return fmt.Errorf("session limits must be positive (frames=%d min=%d misses=%d tracked=%d)",
			c.MaxFrames, c.MinFramesWithPlate, c.FramesWithoutPlate, c.MaxPlatesInMem)
	}
	if c.MinFramesWithPlate > c.MaxFrames {
		return fmt.Errorf("min frames with plate %d exceeds the %d-frame window", c.MinFramesWithPlate, c.MaxFrames)
	}
	if c.MatchDistance < 0 || c.MinIoU < 0 || c.MinIoU > 1 {
		return fmt.Errorf("invalid match parameters (distance=%d iou=%.2f)", c.MatchDistance, c.MinIoU)
	}
	return nil
}

// Session aggregates plate detections over a stream of frames of one geometry.
// A session is not safe for concurrent use.
type Session struct {
	id       string
	engine   engine.Engine
	opts     Options
	cfg      SessionConfig
	settings settings
	clock    clock.Clock
	path     ColorPath

	state  State
	bounds engine.Rect
	handle engine.Session
	seq    int

	tracker *tracker
	lines   *lineCounter
}

// SessionOption customizes session collaborators that have no Recognizer analog.
type SessionOption func(*Session)

// WithClock replaces the wall clock used for reading timestamps.
func WithClock(c clock.Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// WithSessionSettings applies recognizer options (allocator, diagnostics,
// capacity, full types) to a session.
func WithSessionSettings(opts ...Option) SessionOption {
	return func(s *Session) {
		for _, opt := range opts {
			opt(&s.settings)
		}
	}
}

// NewSession creates an uninitialized session. The color path is fixed here and
// applies to every frame.
func NewSession(eng engine.Engine, opts Options, cfg SessionConfig, sessionOpts ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		id:       uuid.NewString(),
		engine:   eng,
		opts:     opts,
		cfg:      cfg,
		settings: defaultSettings(),
		clock:    clock.New(),
	}
	for _, opt := range sessionOpts {
		opt(s)
	}
	s.path = SelectPath(opts.TypeNumber, s.settings.fullTypes)
	s.tracker = newTracker(consensusConfig{
		minHits:       cfg.MinFramesWithPlate,
		maxMisses:     cfg.FramesWithoutPlate,
		maxTracked:    cfg.MaxPlatesInMem,
		window:        cfg.MaxFrames,
		matchDistance: cfg.MatchDistance,
		minIoU:        cfg.MinIoU,
	}, uuid.NewString)
	if cfg.Lines != nil {
		s.lines = newLineCounter(*cfg.Lines)
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return s.state }

func (s *Session) Path() ColorPath { return s.path }

// Bounds is the geometry bound by the first frame; zero before that.
func (s *Session) Bounds() engine.Rect { return s.bounds }

// Tracked returns how many candidates are held in memory.
func (s *Session) Tracked() int {
	return s.tracker.size()
}

// Counters returns a snapshot of the line-crossing counters.
func (s *Session) Counters() LineCounters {
	if s.lines == nil {
		return LineCounters{}
	}
	return s.lines.snapshot()
}

// Committed returns the readings committed so far.
func (s *Session) Committed() []Reading {
	tracks := s.tracker.committedTracks()
	out := make([]Reading, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.reading(s.seq))
	}
	return out
}

// AddFrame feeds one frame. When the engine reports that nothing was seen, the
// consensus still advances and both a result and a *RecognitionError are returned.
// Any other failure leaves the consensus untouched.
func (s *Session) AddFrame(ctx context.Context, img image.Image) (*FrameResult, error) {
	if s.state == StateClosed {
		return nil, ErrSessionClosed
	}
	if img == nil || img.Bounds().Empty() {
		return nil, &RecognitionError{Kind: KindImageEmpty, Status: engine.StatusImageEmpty}
	}
	if s.state == StateUninitialized {
		if err := s.bind(img.Bounds()); err != nil {
			return nil, err
		}
	} else if b := img.Bounds(); b.Dx() != s.bounds.Width || b.Dy() != s.bounds.Height {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d",
			ErrGeometryMismatch, b.Dx(), b.Dy(), s.bounds.Width, s.bounds.Height)
	}

	var detections []engine.Detection
	var statusErr error
	err := exchange.With(s.settings.alloc, s.settings.capacity, s.opts.MaxTextSize, func(set *exchange.BufferSet) error {
		prepared := PrepareImage(img, s.path)
		saveDiagnostic(ctx, s.settings.sink, prepared)

		rects := make([]engine.Rect, s.settings.capacity)
		count, status := s.handle.AddFrame(prepared, rects, set.Slots())
		if statusErr = FromStatus(status); statusErr != nil {
			var re *RecognitionError
			if !errors.As(statusErr, &re) || !re.Empty() {
				logger.WithFields(logrus.Fields{
					"session_id": s.id,
					"status":     status,
				}).Warn("engine failed on frame")
				return statusErr
			}
			return nil
		}
		detections = harvest(set, rects, count)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Only frames that reach the tracker are numbered.
	s.seq++
	result := s.advance(detections)
	if len(result.NewlyCommitted()) > 0 || len(result.Evicted) > 0 {
		logger.WithFields(logrus.Fields{
			"session_id": s.id,
			"frame_seq":  s.seq,
			"committed":  len(result.NewlyCommitted()),
			"evicted":    len(result.Evicted),
			"tracked":    s.tracker.size(),
		}).Debug("consensus changed")
	}
	return result, statusErr
}

// bind creates the engine handle for the first frame's geometry.
func (s *Session) bind(b image.Rectangle) error {
	bounds := engine.Rect{Width: b.Dx(), Height: b.Dy()}
	handle, err := s.engine.CreateSession(s.cfg.MaxFrames, s.opts.EngineOptions(), bounds)
	if err != nil {
		return fmt.Errorf("create engine session: %w", err)
	}
	if status := handle.ConfigureMemory(s.cfg.MinFramesWithPlate, s.cfg.FramesWithoutPlate, s.cfg.MaxPlatesInMem); status != engine.StatusOK {
		handle.Release()
		return fmt.Errorf("configure session memory: %w", FromStatus(status))
	}
	if l := s.cfg.Lines; l != nil {
		if status := handle.ConfigureLines(l.A.P1, l.A.P2, l.B.P1, l.B.P2); status != engine.StatusOK {
			handle.Release()
			return fmt.Errorf("configure session lines: %w", FromStatus(status))
		}
	}
	s.handle = handle
	s.bounds = bounds
	s.state = StateActive
	logger.WithFields(logrus.Fields{
		"session_id": s.id,
		"width":      bounds.Width,
		"height":     bounds.Height,
		"path":       s.path.String(),
	}).Info("recognition session bound")
	return nil
}

func (s *Session) advance(detections []engine.Detection) *FrameResult {
	now := s.clock.Now()
	up := s.tracker.update(s.seq, now, detections)

	result := &FrameResult{
		Seq:        s.seq,
		Timestamp:  now,
		Evicted:    up.evicted,
		Detections: len(detections),
	}

	if s.lines != nil {
		for _, ev := range up.evicted {
			s.lines.forget(ev.TrackID)
		}
		for _, t := range up.hit {
			for _, c := range s.lines.observe(t.id, t.center()) {
				result.Crossings = append(result.Crossings, Crossing{
					TrackID:   t.id,
					Text:      t.text,
					Line:      c.line,
					Direction: c.direction,
				})
			}
		}
		result.Counters = s.lines.snapshot()
	}

	fresh := make(map[*track]bool, len(up.committed))
	for _, t := range up.committed {
		fresh[t] = true
	}
	for _, t := range s.tracker.committedTracks() {
		r := t.reading(s.seq)
		r.NewlyCommitted = fresh[t]
		result.Committed = append(result.Committed, r)
	}
	return result
}

// Close releases the engine handle. Closing twice is a no-op.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	if s.handle != nil {
		s.handle.Release()
		s.handle = nil
	}
	s.state = StateClosed
	logger.WithFields(logrus.Fields{
		"session_id": s.id,
		"frames":     s.seq,
	}).Info("recognition session closed")
	return nil
}
