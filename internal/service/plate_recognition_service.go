package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"go-plate-recognizer/internal/engine"
	apperrors "go-plate-recognizer/internal/errors"
	"go-plate-recognizer/internal/logger"
	"go-plate-recognizer/internal/observer"
	"go-plate-recognizer/internal/quality"
	"go-plate-recognizer/internal/recognizer"
	"go-plate-recognizer/internal/repository"
	"go-plate-recognizer/pkg/models"
	"go-plate-recognizer/pkg/validation"
)

// PlateRecognitionService is the application surface over the recognizer.
type PlateRecognitionService interface {
	// One-shot recognition
	RecognizeURL(ctx context.Context, imageURL string, opts *models.OptionsRequest) (*models.RecognitionResponse, error)
	RecognizeImage(ctx context.Context, img image.Image, source string, opts *models.OptionsRequest) (*models.RecognitionResponse, error)
	RecognizeBatch(ctx context.Context, urls []string, opts *models.OptionsRequest) (*models.BatchResponse, error)

	// Streaming sessions
	OpenSession(ctx context.Context, req models.OpenSessionRequest) (*models.SessionResponse, error)
	AddFrame(ctx context.Context, sessionID string, img image.Image, source string) (*models.FrameResponse, error)
	Counters(ctx context.Context, sessionID string) (*models.CountersResponse, error)
	CloseSession(ctx context.Context, sessionID string) error

	// Stored readings
	FindReadings(ctx context.Context, plate string, limit int) ([]*repository.Reading, error)
	SessionReadings(ctx context.Context, sessionID string) ([]*repository.Reading, error)

	ValidateImageURL(imageURL string) error
	Close() error
}

// Settings are the server-side defaults of the service.
type Settings struct {
	Options     recognizer.Options
	Session     recognizer.SessionConfig
	MaxSessions int
	// IdleTimeout closes sessions that received no frame or counter query for
	// that long.
	IdleTimeout time.Duration
	// Recognizer options shared by one-shot calls and sessions.
	Recognizer []recognizer.Option
}

// Dependencies are the collaborators of the service.
type Dependencies struct {
	Engine    engine.Engine
	Images    repository.ImageRepository
	Readings  repository.ReadingRepository
	Plates    *validation.PlateValidator
	Publisher observer.Subject
	Pool      *WorkerPool
	Clock     clock.Clock
	// Quality annotates one-shot responses when set.
	Quality *quality.Checker
}

type sessionEntry struct {
	mu        sync.Mutex
	session   *recognizer.Session
	createdAt time.Time
	// lastUsed is in unix nanoseconds.
	lastUsed atomic.Int64
}

func (e *sessionEntry) touch(now time.Time) {
	e.lastUsed.Store(now.UnixNano())
}

func (e *sessionEntry) idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, e.lastUsed.Load()))
}

type plateRecognitionService struct {
	deps       Dependencies
	settings   Settings
	recognizer *recognizer.Recognizer

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	closed   bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewPlateRecognitionService wires the service. Missing optional collaborators
// get in-memory or no-op defaults.
func NewPlateRecognitionService(deps Dependencies, settings Settings) (PlateRecognitionService, error) {
	if deps.Engine == nil {
		return nil, errors.New("service: engine is required")
	}
	if err := settings.Options.Validate(); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if err := settings.Session.Validate(); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Readings == nil {
		deps.Readings = repository.NewMemoryReadingRepository(deps.Clock)
	}
	if deps.Plates == nil {
		deps.Plates = validation.NewPlateValidator()
	}
	if deps.Publisher == nil {
		deps.Publisher = observer.NewEventPublisher()
	}
	if deps.Pool == nil {
		deps.Pool = NewWorkerPool(0)
	}
	deps.Pool.Start()
	if settings.MaxSessions <= 0 {
		settings.MaxSessions = 64
	}
	if settings.IdleTimeout <= 0 {
		settings.IdleTimeout = 10 * time.Minute
	}

	svc := &plateRecognitionService{
		deps:       deps,
		settings:   settings,
		recognizer: recognizer.New(deps.Engine, settings.Recognizer...),
		sessions:   make(map[string]*sessionEntry),
		done:       make(chan struct{}),
	}
	svc.wg.Add(1)
	go svc.reapIdle()
	return svc, nil
}

// RecognizeURL fetches an image and recognizes it once.
func (s *plateRecognitionService) RecognizeURL(ctx context.Context, imageURL string, opts *models.OptionsRequest) (*models.RecognitionResponse, error) {
	if s.deps.Images == nil {
		return nil, apperrors.NewInternalError("no image repository configured", nil)
	}
	if err := s.ValidateImageURL(imageURL); err != nil {
		return nil, apperrors.NewValidationError("invalid image URL", err)
	}

	img, err := s.deps.Images.FetchImage(ctx, imageURL)
	if err != nil {
		s.notify(ctx, observer.RecognitionEvent{
			EventType:    observer.ImageFetchFailed,
			Source:       imageURL,
			ErrorMessage: err.Error(),
		})
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("image fetch timeout", err)
		}
		return nil, apperrors.NewNetworkError("failed to fetch image", err)
	}
	return s.RecognizeImage(ctx, img, imageURL, opts)
}

// RecognizeImage runs one engine pass. An engine that found nothing is not an
// error: the response is empty and carries the kind as its status.
func (s *plateRecognitionService) RecognizeImage(ctx context.Context, img image.Image, source string, opts *models.OptionsRequest) (*models.RecognitionResponse, error) {
	options, err := applyOptions(s.settings.Options, opts)
	if err != nil {
		return nil, err
	}

	start := s.deps.Clock.Now()
	result, err := s.recognizer.Recognize(ctx, img, options)
	elapsed := s.deps.Clock.Since(start)

	response := &models.RecognitionResponse{
		Source:            source,
		Timestamp:         start.UTC(),
		ProcessingTimeSec: elapsed.Seconds(),
		ColorPath:         s.recognizer.Path(options.TypeNumber).String(),
		Plates:            []models.PlateResponse{},
		Status:            "ok",
	}

	var re *recognizer.RecognitionError
	switch {
	case err == nil:
		for _, p := range result.Plates {
			_, verr := s.deps.Plates.ValidatePlate(p.Text)
			response.Plates = append(response.Plates, models.PlateResponse{
				Text:   p.Text,
				X:      p.Rect.X,
				Y:      p.Rect.Y,
				Width:  p.Rect.Width,
				Height: p.Rect.Height,
				Valid:  verr == nil,
			})
		}
		response.ColorPath = result.Path.String()
	case errors.As(err, &re) && re.Empty():
		response.Status = re.Kind.String()
	default:
		s.notify(ctx, observer.RecognitionEvent{
			EventType:    observer.RecognitionFailed,
			Source:       source,
			ErrorMessage: err.Error(),
		})
		return nil, apperrors.FromRecognition(err)
	}

	if s.deps.Quality != nil {
		report := s.deps.Quality.Check(img)
		response.Quality = &report
	}

	s.notify(ctx, observer.RecognitionEvent{
		EventType:      observer.RecognitionCompleted,
		Source:         source,
		ProcessingTime: elapsed,
		Metadata:       map[string]any{"plates": len(response.Plates), "status": response.Status},
	})
	return response, nil
}

// RecognizeBatch recognizes every URL on the worker pool. Per-URL failures are
// reported in the items; the call itself only fails on a cancelled context.
func (s *plateRecognitionService) RecognizeBatch(ctx context.Context, urls []string, opts *models.OptionsRequest) (*models.BatchResponse, error) {
	if len(urls) == 0 {
		return nil, apperrors.NewValidationError("no URLs given", nil)
	}
	if _, err := applyOptions(s.settings.Options, opts); err != nil {
		return nil, err
	}

	items := make([]models.BatchItem, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		i, u := i, u
		items[i].URL = u
		wg.Add(1)
		ok := s.deps.Pool.Submit(func() {
			defer wg.Done()
			res, err := s.RecognizeURL(ctx, u, opts)
			if err != nil {
				items[i].Error = err.Error()
				return
			}
			items[i].Result = res
		})
		if !ok {
			wg.Done()
			items[i].Error = "service is shutting down"
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("batch cancelled", err)
	}

	response := &models.BatchResponse{Items: items}
	for _, item := range items {
		if item.Error == "" {
			response.Succeeded++
		} else {
			response.Failed++
		}
	}
	return response, nil
}

// OpenSession registers a new streaming session.
func (s *plateRecognitionService) OpenSession(ctx context.Context, req models.OpenSessionRequest) (*models.SessionResponse, error) {
	options, err := applyOptions(s.settings.Options, req.Options)
	if err != nil {
		return nil, err
	}
	cfg := applySessionConfig(s.settings.Session, req)

	session, err := recognizer.NewSession(s.deps.Engine, options, cfg,
		recognizer.WithClock(s.deps.Clock),
		recognizer.WithSessionSettings(s.settings.Recognizer...),
	)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid session configuration", err)
	}

	now := s.deps.Clock.Now()
	entry := &sessionEntry{session: session, createdAt: now.UTC()}
	entry.touch(now)
	s.sweepIdle(now)
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, apperrors.NewConflictError("service is shutting down", nil)
	case len(s.sessions) >= s.settings.MaxSessions:
		s.mu.Unlock()
		return nil, apperrors.NewConflictError(fmt.Sprintf("session limit of %d reached", s.settings.MaxSessions), nil)
	}
	s.sessions[session.ID()] = entry
	s.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"session_id": session.ID(),
		"path":       session.Path().String(),
		"lines":      cfg.Lines != nil,
	}).Info("session opened")
	return sessionResponse(entry), nil
}

// AddFrame feeds a frame to a session, persists newly committed readings and
// publishes the consensus changes.
func (s *plateRecognitionService) AddFrame(ctx context.Context, sessionID string, img image.Image, source string) (*models.FrameResponse, error) {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	start := s.deps.Clock.Now()
	result, err := entry.session.AddFrame(ctx, img)
	elapsed := s.deps.Clock.Since(start)
	if result == nil {
		s.notify(ctx, observer.RecognitionEvent{
			EventType:    observer.RecognitionFailed,
			SessionID:    sessionID,
			Source:       source,
			ErrorMessage: err.Error(),
		})
		return nil, apperrors.FromRecognition(err)
	}

	response := &models.FrameResponse{
		SessionID:  sessionID,
		Seq:        result.Seq,
		Status:     "ok",
		Detections: result.Detections,
		Committed:  result.Committed,
		Evicted:    result.Evicted,
		Crossings:  result.Crossings,
		Counters:   result.Counters,
	}
	var re *recognizer.RecognitionError
	if errors.As(err, &re) {
		response.Status = re.Kind.String()
	}

	for _, reading := range result.NewlyCommitted() {
		plate, verr := s.deps.Plates.ValidatePlate(reading.Text)
		if verr != nil {
			response.Rejected = append(response.Rejected, reading.Text)
			logger.WithFields(logrus.Fields{
				"session_id": sessionID,
				"plate":      reading.Text,
			}).Debug("committed reading failed plate validation")
			continue
		}
		s.persist(ctx, sessionID, source, plate, reading)
		s.notify(ctx, observer.RecognitionEvent{
			EventType: observer.PlateCommitted,
			SessionID: sessionID,
			TrackID:   reading.TrackID,
			Plate:     plate,
			Source:    source,
			Metadata:  map[string]any{"hits": reading.Hits},
		})
	}
	for _, ev := range result.Evicted {
		s.notify(ctx, observer.RecognitionEvent{
			EventType: observer.PlateEvicted,
			SessionID: sessionID,
			TrackID:   ev.TrackID,
			Plate:     ev.Text,
			Metadata:  map[string]any{"committed": ev.Committed},
		})
	}
	for _, c := range result.Crossings {
		s.notify(ctx, observer.RecognitionEvent{
			EventType: observer.LineCrossed,
			SessionID: sessionID,
			TrackID:   c.TrackID,
			Plate:     c.Text,
			Line:      lineName(c.Line),
			Direction: c.Direction.String(),
		})
	}
	s.notify(ctx, observer.RecognitionEvent{
		EventType:      observer.RecognitionCompleted,
		SessionID:      sessionID,
		Source:         source,
		ProcessingTime: elapsed,
		Metadata:       map[string]any{"frame_seq": result.Seq, "detections": result.Detections},
	})
	return response, nil
}

// Counters returns the line counters and committed readings of a session.
func (s *plateRecognitionService) Counters(_ context.Context, sessionID string) (*models.CountersResponse, error) {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	return &models.CountersResponse{
		SessionID: sessionID,
		State:     entry.session.State().String(),
		Counters:  entry.session.Counters(),
		Tracked:   entry.session.Tracked(),
		Committed: entry.session.Committed(),
	}, nil
}

// CloseSession releases a session and forgets it.
func (s *plateRecognitionService) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return apperrors.NewNotFoundError("session not found", nil)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Close()
}

func (s *plateRecognitionService) FindReadings(ctx context.Context, plate string, limit int) ([]*repository.Reading, error) {
	normalized := s.deps.Plates.Normalize(plate)
	if normalized == "" {
		return nil, apperrors.NewValidationError("plate is required", nil)
	}
	readings, err := s.deps.Readings.FindByPlate(ctx, normalized, limit)
	if errors.Is(err, repository.ErrReadingNotFound) {
		return nil, apperrors.NewNotFoundError("no readings for plate", err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load readings", err)
	}
	return readings, nil
}

func (s *plateRecognitionService) SessionReadings(ctx context.Context, sessionID string) ([]*repository.Reading, error) {
	readings, err := s.deps.Readings.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load readings", err)
	}
	return readings, nil
}

// ValidateImageURL validates the image URL
func (s *plateRecognitionService) ValidateImageURL(imageURL string) error {
	if s.deps.Images == nil {
		return apperrors.NewInternalError("no image repository configured", nil)
	}
	return s.deps.Images.ValidateImageURL(imageURL)
}

// Close closes every open session and stops the worker pool.
func (s *plateRecognitionService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	entries := s.sessions
	s.sessions = make(map[string]*sessionEntry)
	s.mu.Unlock()
	close(s.done)
	s.wg.Wait()

	for _, entry := range entries {
		entry.mu.Lock()
		_ = entry.session.Close()
		entry.mu.Unlock()
	}
	s.deps.Pool.Close()
	if p, ok := s.deps.Publisher.(*observer.EventPublisher); ok {
		p.Wait()
	}
	return nil
}

func (s *plateRecognitionService) lookup(sessionID string) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, apperrors.NewNotFoundError("session not found", nil)
	}
	entry.touch(s.deps.Clock.Now())
	return entry, nil
}

// reapIdle sweeps idle sessions until the service closes.
func (s *plateRecognitionService) reapIdle() {
	defer s.wg.Done()
	ticker := s.deps.Clock.Ticker(s.settings.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweepIdle(s.deps.Clock.Now())
		}
	}
}

// sweepIdle closes and forgets every session idle for at least the idle timeout.
func (s *plateRecognitionService) sweepIdle(now time.Time) {
	expired := make(map[string]*sessionEntry)
	s.mu.Lock()
	for id, entry := range s.sessions {
		if entry.idle(now) >= s.settings.IdleTimeout {
			expired[id] = entry
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for id, entry := range expired {
		entry.mu.Lock()
		if err := entry.session.Close(); err != nil {
			logger.WithError(err).WithField("session_id", id).Warn("failed to close idle session")
		}
		entry.mu.Unlock()
		logger.WithFields(logrus.Fields{
			"session_id": id,
			"idle":       entry.idle(now).String(),
		}).Info("idle session expired")
	}
}

// persist stores a reading; storage failures are logged and do not fail the frame.
func (s *plateRecognitionService) persist(ctx context.Context, sessionID, source, plate string, r recognizer.Reading) {
	err := s.deps.Readings.Save(ctx, &repository.Reading{
		SessionID: sessionID,
		TrackID:   r.TrackID,
		Plate:     plate,
		Source:    source,
		X:         r.Rect.X,
		Y:         r.Rect.Y,
		Width:     r.Rect.Width,
		Height:    r.Rect.Height,
		Hits:      r.Hits,
		FirstSeen: r.FirstSeen,
		LastSeen:  r.LastSeen,
	})
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"plate":      plate,
		}).Error("failed to persist reading")
	}
}

func (s *plateRecognitionService) notify(ctx context.Context, event observer.RecognitionEvent) {
	event.Timestamp = s.deps.Clock.Now().UTC()
	s.deps.Publisher.NotifyObservers(ctx, event)
}

func sessionResponse(entry *sessionEntry) *models.SessionResponse {
	b := entry.session.Bounds()
	return &models.SessionResponse{
		ID:        entry.session.ID(),
		State:     entry.session.State().String(),
		ColorPath: entry.session.Path().String(),
		Width:     b.Width,
		Height:    b.Height,
		CreatedAt: entry.createdAt,
	}
}

func lineName(i int) string {
	if i == 0 {
		return "A"
	}
	return "B"
}
