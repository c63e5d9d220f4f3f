package tesseract

import (
	"image"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"

	"go-plate-recognizer/internal/engine"
)

func TestCandidates(t *testing.T) {
	opts := engine.Options{MinPlateSize: 500, MaxPlateSize: 50000, MaxTextSize: 20}
	boxes := []gosseract.BoundingBox{
		{Box: image.Rect(10, 10, 110, 40), Word: "ab-1234", Confidence: 91},
		{Box: image.Rect(0, 0, 5, 5), Word: "XY99", Confidence: 95},
		{Box: image.Rect(200, 10, 300, 40), Word: "~~", Confidence: 30},
		{Box: image.Rect(0, 0, 1000, 1000), Word: "HUGE1", Confidence: 99},
	}

	got := Candidates(boxes, opts)

	assert.Equal(t, []engine.Detection{
		{Rect: engine.Rect{X: 10, Y: 10, Width: 100, Height: 30}, Text: "AB1234"},
		{Rect: engine.Rect{X: 200, Y: 10, Width: 100, Height: 30}, Text: ""},
	}, got)
}

func TestCandidatesTruncatesToTextSize(t *testing.T) {
	opts := engine.Options{MinPlateSize: 1, MaxTextSize: 5}
	got := Candidates([]gosseract.BoundingBox{{Box: image.Rect(0, 0, 50, 20), Word: "ABCDEFG"}}, opts)

	assert.Len(t, got, 1)
	assert.Equal(t, "ABCD", got[0].Text)
}
