// Package enginetest provides a scripted engine for exercising callers of the engine contract.
package enginetest

import (
	"image"
	"sync"

	"go-plate-recognizer/internal/engine"
)

// Step is one scripted engine answer.
type Step struct {
	Status     int
	Detections []engine.Detection
	// Count overrides the reported count when non-zero, letting tests model an
	// engine that claims more entries than it wrote.
	Count int
	// Raw, when set for an index, is written verbatim instead of the detection text.
	Raw map[int][]byte
	// NilSlots clears the listed text slots before returning.
	NilSlots []int
}

// Call records what the engine received.
type Call struct {
	Image    image.Image
	Options  engine.Options
	Capacity int
}

// Engine replays steps in order; once the script is exhausted it keeps answering
// with the last step.
type Engine struct {
	mu        sync.Mutex
	steps     []Step
	next      int
	calls     []Call
	sessions  []*Session
	createErr error
	license   []byte
	memStatus int
	lineStat  int
}

var (
	_ engine.Engine           = (*Engine)(nil)
	_ engine.LicenseInstaller = (*Engine)(nil)
)

// New returns an engine that replays the given steps.
func New(steps ...Step) *Engine {
	return &Engine{steps: steps}
}

// Always returns an engine that reports the same detections for every frame.
func Always(detections ...engine.Detection) *Engine {
	return New(Step{Status: engine.StatusOK, Detections: detections})
}

// FailCreate makes CreateSession fail with err.
func (e *Engine) FailCreate(err error) *Engine {
	e.createErr = err
	return e
}

// WithConfigureStatus sets the statuses returned by ConfigureMemory and ConfigureLines.
func (e *Engine) WithConfigureStatus(memory, lines int) *Engine {
	e.memStatus = memory
	e.lineStat = lines
	return e
}

// Push appends steps to the script.
func (e *Engine) Push(steps ...Step) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.steps = append(e.steps, steps...)
}

func (e *Engine) RecognizeOnce(img image.Image, opts engine.Options, rects []engine.Rect, texts [][]byte) (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Image: img, Options: opts, Capacity: len(rects)})
	return e.play(rects, texts)
}

func (e *Engine) CreateSession(maxFrames int, opts engine.Options, bounds engine.Rect) (engine.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.createErr != nil {
		return nil, e.createErr
	}
	s := &Session{owner: e, MaxFrames: maxFrames, Options: opts, Bounds: bounds}
	e.sessions = append(e.sessions, s)
	return s, nil
}

func (e *Engine) InstallLicense(key []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.license = append([]byte(nil), key...)
	return nil
}

// License returns the installed key.
func (e *Engine) License() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.license
}

// Calls returns every RecognizeOnce and AddFrame invocation in order.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Sessions returns every session handle created so far.
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Session(nil), e.sessions...)
}

// play must be called with e.mu held.
func (e *Engine) play(rects []engine.Rect, texts [][]byte) (int, int) {
	if len(e.steps) == 0 {
		return 0, engine.StatusNoCandidates
	}
	step := e.steps[min(e.next, len(e.steps)-1)]
	e.next++
	if step.Status != engine.StatusOK {
		return 0, step.Status
	}

	count := engine.Fill(step.Detections, rects, texts)
	for i, raw := range step.Raw {
		if i < len(texts) && texts[i] != nil {
			n := copy(texts[i], raw)
			if n < len(texts[i]) {
				texts[i][n] = 0
			}
		}
	}
	for _, i := range step.NilSlots {
		if i < len(texts) {
			texts[i] = nil
		}
	}
	if step.Count != 0 {
		count = step.Count
	}
	return count, engine.StatusOK
}

// Session is the scripted aggregation handle.
type Session struct {
	owner     *Engine
	MaxFrames int
	Options   engine.Options
	Bounds    engine.Rect
	Memory    [3]int
	Lines     [4]image.Point
	Frames    int
	Releases  int
}

func (s *Session) AddFrame(img image.Image, rects []engine.Rect, texts [][]byte) (int, int) {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.Frames++
	s.owner.calls = append(s.owner.calls, Call{Image: img, Options: s.Options, Capacity: len(rects)})
	return s.owner.play(rects, texts)
}

func (s *Session) ConfigureMemory(minHits, maxMisses, maxTracked int) int {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.Memory = [3]int{minHits, maxMisses, maxTracked}
	return s.owner.memStatus
}

func (s *Session) ConfigureLines(a1, a2, b1, b2 image.Point) int {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.Lines = [4]image.Point{a1, a2, b1, b2}
	return s.owner.lineStat
}

func (s *Session) Release() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.Releases++
}
