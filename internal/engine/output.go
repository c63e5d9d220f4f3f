package engine

import (
	"image"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// Detection is a single engine-side finding before it is written to the caller's buffers.
type Detection struct {
	Rect Rect
	Text string
}

// DefaultPlatePattern matches the plate shapes engines in this module will emit.
var DefaultPlatePattern = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

// IsFullType reports whether the plate-type family needs full-color input.
func IsFullType(typeNumber int) bool {
	return lo.Contains(FullColorTypes, typeNumber)
}

// Precheck applies the input checks shared by every engine binding. It returns
// StatusOK when the image may be processed under the given options.
func Precheck(img image.Image, opts Options) int {
	if img == nil || img.Bounds().Empty() {
		return StatusImageEmpty
	}
	if opts.TypeNumber <= 0 {
		return StatusUnsupportedType
	}
	_, gray := img.(*image.Gray)
	if IsFullType(opts.TypeNumber) == gray {
		return StatusColorTypeMismatch
	}
	return StatusOK
}

// Fill writes detections into the caller's buffers, never past their capacity.
// Entries whose text slot is nil keep the rectangle and leave the slot untouched.
func Fill(detections []Detection, rects []Rect, texts [][]byte) int {
	capacity := min(len(rects), len(texts))
	count := 0
	for _, d := range detections {
		if count == capacity {
			break
		}
		rects[count] = d.Rect
		if texts[count] != nil {
			WriteText(texts[count], d.Text)
		}
		count++
	}
	return count
}

// WriteText copies s into buf as a NUL-terminated string, truncating to fit.
func WriteText(buf []byte, s string) {
	if len(buf) == 0 {
		return
	}
	n := copy(buf[:len(buf)-1], s)
	buf[n] = 0
}

// NormalizePlate uppercases text and strips everything but letters and digits.
func NormalizePlate(text string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(text) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
