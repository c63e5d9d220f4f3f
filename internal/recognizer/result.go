package recognizer

import (
	"time"

	"github.com/golang/geo/r2"

	"go-plate-recognizer/internal/engine"
)

// Plate is one decoded plate with its rectangle.
type Plate struct {
	Text string      `json:"text"`
	Rect engine.Rect `json:"rect"`
}

// Result is the outcome of a one-shot recognition.
type Result struct {
	Plates []Plate   `json:"plates"`
	Path   ColorPath `json:"-"`
	Count  int       `json:"count"`
}

// Texts returns plate strings in engine order.
func (r *Result) Texts() []string {
	out := make([]string, len(r.Plates))
	for i, p := range r.Plates {
		out[i] = p.Text
	}
	return out
}

// Reading is a committed plate as tracked by a session.
type Reading struct {
	TrackID        string      `json:"track_id"`
	Text           string      `json:"text"`
	Rect           engine.Rect `json:"rect"`
	Hits           int         `json:"hits"`
	FirstSeen      time.Time   `json:"first_seen"`
	LastSeen       time.Time   `json:"last_seen"`
	NewlyCommitted bool        `json:"newly_committed"`
	// SeenThisFrame is false for committed plates that were missed in this frame.
	SeenThisFrame bool `json:"seen_this_frame"`
	// Trajectory holds the plate centers of the last MaxFrames sightings.
	Trajectory []r2.Point `json:"trajectory,omitempty"`
}

// Eviction describes a track dropped from memory.
type Eviction struct {
	TrackID   string `json:"track_id"`
	Text      string `json:"text"`
	Committed bool   `json:"committed"`
}

// Direction of a line crossing relative to the segment orientation.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Crossing records one track crossing one counting line.
type Crossing struct {
	TrackID   string    `json:"track_id"`
	Text      string    `json:"text"`
	Line      int       `json:"line"`
	Direction Direction `json:"direction"`
}

// LineCount holds directional totals for one line.
type LineCount struct {
	Forward  int `json:"forward"`
	Backward int `json:"backward"`
}

// Total returns crossings in both directions.
func (c LineCount) Total() int {
	return c.Forward + c.Backward
}

// LineCounters is a snapshot of both counting lines.
type LineCounters struct {
	A LineCount `json:"a"`
	B LineCount `json:"b"`
}

// FrameResult is returned by Session.AddFrame.
type FrameResult struct {
	Seq       int          `json:"seq"`
	Timestamp time.Time    `json:"timestamp"`
	Committed []Reading    `json:"committed"`
	Evicted   []Eviction   `json:"evicted,omitempty"`
	Crossings []Crossing   `json:"crossings,omitempty"`
	Counters  LineCounters `json:"counters"`
	// Detections is how many harvested entries the engine reported.
	Detections int `json:"detections"`
}

// NewlyCommitted returns the readings committed on this frame.
func (r *FrameResult) NewlyCommitted() []Reading {
	var out []Reading
	for _, rd := range r.Committed {
		if rd.NewlyCommitted {
			out = append(out, rd)
		}
	}
	return out
}
