package models

import (
	"time"

	"go-plate-recognizer/internal/quality"
	"go-plate-recognizer/internal/recognizer"
)

// PlateResponse is one recognized plate.
type PlateResponse struct {
	Text   string `json:"text"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// Valid reports whether the text matches the configured plate format.
	Valid bool `json:"valid"`
}

// RecognitionResponse is the result of a one-shot recognition.
type RecognitionResponse struct {
	Source            string          `json:"source"`
	Timestamp         time.Time       `json:"timestamp"`
	ProcessingTimeSec float64         `json:"processing_time_sec"`
	ColorPath         string          `json:"color_path"`
	Plates            []PlateResponse `json:"plates"`
	// Status is "ok" or the recognition kind when the engine saw nothing.
	Status string `json:"status"`
	// Quality is set when frame quality checks are enabled.
	Quality *quality.Report `json:"quality,omitempty"`
}

// BatchItem is the outcome for one URL of a batch.
type BatchItem struct {
	URL    string               `json:"url"`
	Result *RecognitionResponse `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// BatchResponse lists batch outcomes in request order.
type BatchResponse struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// SessionResponse describes a streaming session.
type SessionResponse struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	ColorPath string    `json:"color_path"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FrameResponse is the session state after one frame.
type FrameResponse struct {
	SessionID  string                  `json:"session_id"`
	Seq        int                     `json:"seq"`
	Status     string                  `json:"status"`
	Detections int                     `json:"detections"`
	Committed  []recognizer.Reading    `json:"committed"`
	Evicted    []recognizer.Eviction   `json:"evicted,omitempty"`
	Crossings  []recognizer.Crossing   `json:"crossings,omitempty"`
	Counters   recognizer.LineCounters `json:"counters"`
	// Rejected lists newly committed texts that failed plate validation.
	Rejected []string `json:"rejected,omitempty"`
}

// CountersResponse is a read-only view of a session.
type CountersResponse struct {
	SessionID string                  `json:"session_id"`
	State     string                  `json:"state"`
	Counters  recognizer.LineCounters `json:"counters"`
	Tracked   int                     `json:"tracked"`
	Committed []recognizer.Reading    `json:"committed"`
}
