package recognizer

import (
	"image"

	"github.com/golang/geo/r2"
)

// Segment is a counting line between two frame points.
type Segment struct {
	P1 image.Point `json:"p1"`
	P2 image.Point `json:"p2"`
}

// LinePair configures the two counting lines of a session.
type LinePair struct {
	A Segment `json:"a"`
	B Segment `json:"b"`
}

type lineSide struct {
	side  int
	point r2.Point
	known bool
}

// lineCounter counts trajectory crossings over two segments. For every track it
// remembers the last strict side of each line and the point observed there.
type lineCounter struct {
	segments [2][2]r2.Point
	counts   [2]LineCount
	tracks   map[string]*[2]lineSide
}

type lineCrossing struct {
	line      int
	direction Direction
}

func newLineCounter(lines LinePair) *lineCounter {
	return &lineCounter{
		segments: [2][2]r2.Point{
			{toR2(lines.A.P1), toR2(lines.A.P2)},
			{toR2(lines.B.P1), toR2(lines.B.P2)},
		},
		tracks: make(map[string]*[2]lineSide),
	}
}

// observe feeds a new position of a track and returns the crossings it produced.
func (lc *lineCounter) observe(trackID string, p r2.Point) []lineCrossing {
	state, ok := lc.tracks[trackID]
	if !ok {
		state = &[2]lineSide{}
		lc.tracks[trackID] = state
	}

	var out []lineCrossing
	for i, seg := range lc.segments {
		s := sideOf(seg[0], seg[1], p)
		if s == 0 {
			continue
		}
		prev := &state[i]
		if prev.known && s != prev.side && intersects(prev.point, p, seg[0], seg[1]) {
			dir := Forward
			if prev.side < s {
				dir = Backward
			}
			if dir == Forward {
				lc.counts[i].Forward++
			} else {
				lc.counts[i].Backward++
			}
			out = append(out, lineCrossing{line: i, direction: dir})
		}
		*prev = lineSide{side: s, point: p, known: true}
	}
	return out
}

func (lc *lineCounter) forget(trackID string) {
	delete(lc.tracks, trackID)
}

func (lc *lineCounter) snapshot() LineCounters {
	return LineCounters{A: lc.counts[0], B: lc.counts[1]}
}

func toR2(p image.Point) r2.Point {
	return r2.Point{X: float64(p.X), Y: float64(p.Y)}
}

// sideOf is +1 left of a->b, -1 right of it, 0 on the line.
func sideOf(a, b, p r2.Point) int {
	c := b.Sub(a).Cross(p.Sub(a))
	switch {
	case c > 0:
		return 1
	case c < 0:
		return -1
	default:
		return 0
	}
}

// intersects reports whether segment p1-p2 touches segment q1-q2. p1 and p2 are
// known to lie on strictly opposite sides of the q line.
func intersects(p1, p2, q1, q2 r2.Point) bool {
	d1 := sideOf(p1, p2, q1)
	d2 := sideOf(p1, p2, q2)
	return d1 == 0 || d2 == 0 || d1 != d2
}
