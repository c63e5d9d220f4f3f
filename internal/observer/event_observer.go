package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RecognitionEvent represents a recognition event
type RecognitionEvent struct {
	EventType      EventType      `json:"event_type"`
	Timestamp      time.Time      `json:"timestamp"`
	SessionID      string         `json:"session_id,omitempty"`
	TrackID        string         `json:"track_id,omitempty"`
	Plate          string         `json:"plate,omitempty"`
	Source         string         `json:"source,omitempty"`
	Line           string         `json:"line,omitempty"`
	Direction      string         `json:"direction,omitempty"`
	ProcessingTime time.Duration  `json:"processing_time,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// EventType represents the type of recognition event
type EventType string

const (
	// RecognitionCompleted when a one-shot call or a frame finishes
	RecognitionCompleted EventType = "recognition_completed"
	// RecognitionFailed when the engine or the buffers fail
	RecognitionFailed EventType = "recognition_failed"
	// PlateCommitted when a tracked plate reaches the hit threshold
	PlateCommitted EventType = "plate_committed"
	// PlateEvicted when a track is dropped from memory
	PlateEvicted EventType = "plate_evicted"
	// LineCrossed when a committed plate crosses a counting line
	LineCrossed EventType = "line_crossed"
	// ImageFetchFailed when image fetch fails
	ImageFetchFailed EventType = "image_fetch_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event RecognitionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event RecognitionEvent)
}

// LoggingObserver logs recognition events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles recognition events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event RecognitionEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
	}
	if event.SessionID != "" {
		fields["session_id"] = event.SessionID
	}
	if event.Plate != "" {
		fields["plate"] = event.Plate
	}
	if event.Source != "" {
		fields["source"] = event.Source
	}
	if event.Line != "" {
		fields["line"] = event.Line
		fields["direction"] = event.Direction
	}
	if event.ProcessingTime > 0 {
		fields["processing_time_ms"] = event.ProcessingTime.Milliseconds()
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case PlateCommitted:
		entry.Info("Plate committed")
	case PlateEvicted:
		entry.Debug("Plate evicted")
	case LineCrossed:
		entry.Info("Plate crossed line")
	case RecognitionCompleted:
		entry.Debug("Recognition completed")
	case RecognitionFailed:
		entry.Error("Recognition failed")
	case ImageFetchFailed:
		entry.Error("Image fetch failed")
	default:
		entry.Info("Recognition event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Metrics is a snapshot of MetricsObserver counters.
type Metrics struct {
	Recognitions          int64         `json:"recognitions"`
	Failures              int64         `json:"failures"`
	FetchFailures         int64         `json:"fetch_failures"`
	Committed             int64         `json:"committed"`
	Evicted               int64         `json:"evicted"`
	Crossings             int64         `json:"crossings"`
	TotalProcessingTime   time.Duration `json:"total_processing_time"`
	AverageProcessingTime time.Duration `json:"avg_processing_time"`
}

// MetricsObserver collects metrics from recognition events
type MetricsObserver struct {
	mu      sync.RWMutex
	metrics Metrics
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles recognition events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event RecognitionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case RecognitionCompleted:
		o.metrics.Recognitions++
		o.metrics.TotalProcessingTime += event.ProcessingTime
	case RecognitionFailed:
		o.metrics.Failures++
	case ImageFetchFailed:
		o.metrics.FetchFailures++
	case PlateCommitted:
		o.metrics.Committed++
	case PlateEvicted:
		o.metrics.Evicted++
	case LineCrossed:
		o.metrics.Crossings++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	m := o.metrics
	if m.Recognitions > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.Recognitions)
	}
	return m
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	inflight  sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event. Each observer runs on
// its own goroutine; the context passed on is detached from cancellation so
// a finished request does not cut delivery short.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event RecognitionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	ctx = context.WithoutCancel(ctx)

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		p.inflight.Add(1)
		go func(obs Observer) {
			defer p.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until every notification sent so far has been handled.
func (p *EventPublisher) Wait() {
	p.inflight.Wait()
}
