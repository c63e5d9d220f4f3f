package recognizer

import (
	"time"

	"github.com/arbovm/levenshtein"
	"github.com/golang/geo/r2"
	"github.com/sirupsen/logrus"

	"go-plate-recognizer/internal/engine"
	"go-plate-recognizer/internal/logger"
)

// track is one plate candidate followed across frames.
type track struct {
	id        string
	text      string
	votes     map[string]int
	rect      engine.Rect
	hits      int
	misses    int
	committed bool
	firstSeen time.Time
	lastSeen  time.Time
	lastFrame int
	// recent holds the frames of the hits inside the frame window, oldest first.
	recent     []int
	trajectory []r2.Point
}

func (t *track) center() r2.Point {
	x, y := t.rect.Center()
	return r2.Point{X: x, Y: y}
}

// vote records a reading and refreshes the display text. Ties keep the current
// text, otherwise the lexicographically smallest of the leaders wins.
func (t *track) vote(text string) {
	t.votes[text]++
	best := t.votes[t.text]
	for _, n := range t.votes {
		best = max(best, n)
	}
	if t.votes[t.text] == best {
		return
	}
	leader := ""
	for candidate, n := range t.votes {
		if n == best && (leader == "" || candidate < leader) {
			leader = candidate
		}
	}
	t.text = leader
}

func (t *track) reading(frame int) Reading {
	return Reading{
		TrackID:       t.id,
		Text:          t.text,
		Rect:          t.rect,
		Hits:          t.hits,
		FirstSeen:     t.firstSeen,
		LastSeen:      t.lastSeen,
		SeenThisFrame: t.lastFrame == frame,
		Trajectory:    append([]r2.Point(nil), t.trajectory...),
	}
}

// hit records a sighting on frame and forgets sightings that fell out of the
// window of the last window frames.
func (t *track) hit(frame, window int) {
	t.hits++
	t.recent = append(t.recent, frame)
	drop := 0
	for drop < len(t.recent) && t.recent[drop] <= frame-window {
		drop++
	}
	t.recent = t.recent[drop:]
}

// consensusConfig is the subset of SessionConfig the tracker uses.
type consensusConfig struct {
	minHits    int
	maxMisses  int
	maxTracked int
	// window is the number of most recent frames whose hits count toward minHits.
	// It also caps the trajectory length.
	window        int
	matchDistance int
	minIoU        float64
}

// tracker applies temporal consensus to per-frame detections.
type tracker struct {
	cfg    consensusConfig
	tracks []*track
	newID  func() string
}

// frameUpdate is what one frame did to the tracker.
type frameUpdate struct {
	hit       []*track
	committed []*track
	evicted   []Eviction
}

func newTracker(cfg consensusConfig, newID func() string) *tracker {
	return &tracker{cfg: cfg, newID: newID}
}

// update advances the tracker by one frame. Detections without text are ignored.
func (tr *tracker) update(frame int, now time.Time, detections []engine.Detection) frameUpdate {
	var up frameUpdate
	matched := make(map[*track]bool)
	seen := make(map[string]bool)

	for _, d := range detections {
		if d.Text == "" || seen[d.Text] {
			continue
		}
		seen[d.Text] = true

		t := tr.match(d, matched)
		if t == nil {
			if len(tr.tracks) >= tr.cfg.maxTracked {
				victim := tr.victim(matched)
				if victim == nil {
					logger.WithField("plate", d.Text).Debug("tracker full, dropping detection")
					continue
				}
				up.evicted = append(up.evicted, tr.evict(victim))
			}
			t = &track{
				id:        tr.newID(),
				text:      d.Text,
				votes:     make(map[string]int),
				firstSeen: now,
			}
			tr.tracks = append(tr.tracks, t)
		}

		matched[t] = true
		t.vote(d.Text)
		t.rect = d.Rect
		t.hit(frame, tr.cfg.window)
		t.misses = 0
		t.lastSeen = now
		t.lastFrame = frame
		t.trajectory = append(t.trajectory, t.center())
		if over := len(t.trajectory) - tr.cfg.window; over > 0 {
			t.trajectory = t.trajectory[over:]
		}
		if !t.committed && len(t.recent) >= tr.cfg.minHits {
			t.committed = true
			up.committed = append(up.committed, t)
		}
		up.hit = append(up.hit, t)
	}

	var stale []*track
	for _, t := range tr.tracks {
		if matched[t] {
			continue
		}
		t.misses++
		if t.misses >= tr.cfg.maxMisses {
			stale = append(stale, t)
		}
	}
	for _, t := range stale {
		up.evicted = append(up.evicted, tr.evict(t))
	}
	return up
}

// match finds the tracked candidate a detection belongs to: an exact text match
// first, otherwise the closest text within the edit distance whose rectangle
// overlaps enough.
func (tr *tracker) match(d engine.Detection, matched map[*track]bool) *track {
	for _, t := range tr.tracks {
		if !matched[t] && (t.text == d.Text || t.votes[d.Text] > 0) {
			return t
		}
	}

	var best *track
	bestDist, bestIoU := tr.cfg.matchDistance+1, 0.0
	for _, t := range tr.tracks {
		if matched[t] {
			continue
		}
		dist := levenshtein.Distance(t.text, d.Text)
		if dist > tr.cfg.matchDistance {
			continue
		}
		iou := t.rect.IoU(d.Rect)
		if iou < tr.cfg.minIoU {
			continue
		}
		if dist < bestDist || (dist == bestDist && iou > bestIoU) {
			best, bestDist, bestIoU = t, dist, iou
		}
	}
	if best != nil {
		logger.WithFields(logrus.Fields{
			"plate":    d.Text,
			"track":    best.text,
			"distance": bestDist,
		}).Debug("fuzzy match")
	}
	return best
}

// victim picks the track to drop when memory is full: the least recently seen
// uncommitted track, or the least recently seen committed one if none exist.
// Tracks hit in the current frame are never chosen.
func (tr *tracker) victim(matched map[*track]bool) *track {
	var uncommitted, committed *track
	for _, t := range tr.tracks {
		if matched[t] {
			continue
		}
		slot := &uncommitted
		if t.committed {
			slot = &committed
		}
		if *slot == nil || t.lastFrame < (*slot).lastFrame {
			*slot = t
		}
	}
	if uncommitted != nil {
		return uncommitted
	}
	return committed
}

func (tr *tracker) evict(victim *track) Eviction {
	for i, t := range tr.tracks {
		if t == victim {
			tr.tracks = append(tr.tracks[:i], tr.tracks[i+1:]...)
			break
		}
	}
	return Eviction{TrackID: victim.id, Text: victim.text, Committed: victim.committed}
}

// committedTracks returns every committed track in the order it was first seen;
// tracks are appended on creation so memory order is first-seen order.
func (tr *tracker) committedTracks() []*track {
	var out []*track
	for _, t := range tr.tracks {
		if t.committed {
			out = append(out, t)
		}
	}
	return out
}

func (tr *tracker) size() int {
	return len(tr.tracks)
}
