// Package recognizer turns engine detections into plate readings, either from a
// single image or by aggregating a stream of frames in a session.
package recognizer

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"

	"go-plate-recognizer/internal/engine"
	"go-plate-recognizer/internal/exchange"
	"go-plate-recognizer/internal/logger"
)

// DefaultCapacity is the maximum number of detections one engine call may return.
const DefaultCapacity = 100

// Recognizer runs one engine pass per image.
type Recognizer struct {
	engine    engine.Engine
	alloc     exchange.Allocator
	sink      DiagnosticSink
	capacity  int
	fullTypes []int
}

// Option customizes a Recognizer or a Session.
type Option func(*settings)

type settings struct {
	alloc     exchange.Allocator
	sink      DiagnosticSink
	capacity  int
	fullTypes []int
}

func defaultSettings() settings {
	return settings{
		alloc:     exchange.NewHeapAllocator(),
		capacity:  DefaultCapacity,
		fullTypes: FullTypes,
	}
}

// WithAllocator sets the buffer allocator.
func WithAllocator(alloc exchange.Allocator) Option {
	return func(s *settings) { s.alloc = alloc }
}

// WithDiagnostics sends every prepared frame to sink.
func WithDiagnostics(sink DiagnosticSink) Option {
	return func(s *settings) { s.sink = sink }
}

// WithCapacity overrides the detection capacity.
func WithCapacity(capacity int) Option {
	return func(s *settings) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

// WithFullTypes overrides the plate-type families kept in full color.
func WithFullTypes(types []int) Option {
	return func(s *settings) { s.fullTypes = types }
}

// New creates a recognizer around an engine.
func New(eng engine.Engine, opts ...Option) *Recognizer {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return &Recognizer{
		engine:    eng,
		alloc:     s.alloc,
		sink:      s.sink,
		capacity:  s.capacity,
		fullTypes: s.fullTypes,
	}
}

// Recognize runs the engine exactly once over img. On success the plates are in
// engine order and never more than the capacity; otherwise the error is either an
// allocation failure or a *RecognitionError.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image, opts Options) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &RecognitionError{Kind: KindImageEmpty, Status: engine.StatusImageEmpty}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := r.Path(opts.TypeNumber)
	var result *Result
	err := exchange.With(r.alloc, r.capacity, opts.MaxTextSize, func(set *exchange.BufferSet) error {
		prepared := PrepareImage(img, path)
		saveDiagnostic(ctx, r.sink, prepared)

		rects := make([]engine.Rect, r.capacity)
		count, status := r.engine.RecognizeOnce(prepared, opts.EngineOptions(), rects, set.Slots())
		if status != engine.StatusOK {
			logger.WithFields(logrus.Fields{
				"status":      status,
				"type_number": opts.TypeNumber,
				"path":        path.String(),
			}).Debug("engine reported no result")
			return FromStatus(status)
		}

		detections := harvest(set, rects, count)
		result = &Result{Path: path, Plates: make([]Plate, 0, len(detections))}
		for _, d := range detections {
			result.Plates = append(result.Plates, Plate{Text: d.Text, Rect: d.Rect})
		}
		result.Count = len(result.Plates)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Path reports the color path the recognizer uses for a plate-type number.
func (r *Recognizer) Path(typeNumber int) ColorPath {
	return SelectPath(typeNumber, r.fullTypes)
}

// harvest clamps the engine count to the buffer capacity and pairs every decoded
// string with its rectangle.
func harvest(set *exchange.BufferSet, rects []engine.Rect, count int) []engine.Detection {
	if count > len(rects) {
		logger.WithFields(logrus.Fields{
			"reported": count,
			"capacity": len(rects),
		}).Warn("engine reported more entries than capacity, clamping")
		count = len(rects)
	}
	entries := set.Harvest(count)
	out := make([]engine.Detection, 0, len(entries))
	for _, e := range entries {
		out = append(out, engine.Detection{Rect: rects[e.Index], Text: e.Text})
	}
	return out
}

func saveDiagnostic(ctx context.Context, sink DiagnosticSink, img image.Image) {
	if sink == nil {
		return
	}
	if err := sink.SaveFrame(ctx, img); err != nil {
		logger.WithError(err).Warn("failed to save diagnostic frame")
	}
}
