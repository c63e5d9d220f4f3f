package recognizer

import (
	"image"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
)

func horizontal() LinePair {
	return LinePair{
		A: Segment{P1: image.Pt(0, 0), P2: image.Pt(100, 0)},
		B: Segment{P1: image.Pt(1000, 1000), P2: image.Pt(1000, 1001)},
	}
}

func TestLineCounterCountsEachCrossingOnce(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7} {
		lc := newLineCounter(horizontal())
		y := -10.0
		lc.observe("t", r2.Point{X: 50, Y: y})
		for i := 0; i < n; i++ {
			y = -y
			// several frames on each side must not add crossings
			lc.observe("t", r2.Point{X: 50, Y: y})
			lc.observe("t", r2.Point{X: 52, Y: y})
		}
		assert.Equal(t, n, lc.snapshot().A.Total(), "n=%d", n)
	}
}

func TestLineCounterPointsOnTheLineDoNotCount(t *testing.T) {
	lc := newLineCounter(horizontal())

	lc.observe("t", r2.Point{X: 10, Y: -5})
	lc.observe("t", r2.Point{X: 20, Y: 0})
	lc.observe("t", r2.Point{X: 30, Y: -5})
	assert.Zero(t, lc.snapshot().A.Total(), "grazing the line is not a crossing")

	lc.observe("t", r2.Point{X: 40, Y: 0})
	out := lc.observe("t", r2.Point{X: 50, Y: 5})
	assert.Len(t, out, 1)
	assert.Equal(t, 1, lc.snapshot().A.Total())
}

func TestLineCounterIgnoresCrossingsOutsideSegment(t *testing.T) {
	lc := newLineCounter(horizontal())

	lc.observe("t", r2.Point{X: 150, Y: -5})
	out := lc.observe("t", r2.Point{X: 150, Y: 5})

	assert.Empty(t, out)
	assert.Zero(t, lc.snapshot().A.Total())

	// the side was still updated, so coming back inside the segment counts
	out = lc.observe("t", r2.Point{X: 40, Y: -5})
	assert.Len(t, out, 1)
}

func TestLineCounterDirections(t *testing.T) {
	lc := newLineCounter(horizontal())

	lc.observe("t", r2.Point{X: 50, Y: 5})
	out := lc.observe("t", r2.Point{X: 50, Y: -5})
	assert.Equal(t, []lineCrossing{{line: 0, direction: Forward}}, out)

	out = lc.observe("t", r2.Point{X: 50, Y: 5})
	assert.Equal(t, []lineCrossing{{line: 0, direction: Backward}}, out)
	assert.Equal(t, LineCount{Forward: 1, Backward: 1}, lc.snapshot().A)
}

func TestLineCounterTracksAreIndependent(t *testing.T) {
	lc := newLineCounter(horizontal())

	lc.observe("a", r2.Point{X: 50, Y: -5})
	lc.observe("b", r2.Point{X: 50, Y: 5})
	lc.observe("a", r2.Point{X: 50, Y: -6})
	lc.forget("b")
	lc.observe("b", r2.Point{X: 50, Y: -5})

	assert.Zero(t, lc.snapshot().A.Total())
}
