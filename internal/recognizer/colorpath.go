package recognizer

import (
	"image"
	"image/draw"

	"github.com/samber/lo"

	"go-plate-recognizer/internal/engine"
)

// ColorPath says whether the engine receives the original frame or a grayscale copy.
type ColorPath int

const (
	PathOriginal ColorPath = iota
	PathGrayscale
)

func (p ColorPath) String() string {
	if p == PathOriginal {
		return "original"
	}
	return "grayscale"
}

// FullTypes are the plate-type families recognized on full-color frames.
var FullTypes = engine.FullColorTypes

// SelectPath maps a plate-type number to its color path.
func SelectPath(typeNumber int, fullTypes []int) ColorPath {
	if lo.Contains(fullTypes, typeNumber) {
		return PathOriginal
	}
	return PathGrayscale
}

// PrepareImage returns the frame the engine should see for the given path. The
// grayscale copy is a fresh 8-bit single-channel image owned by the caller.
func PrepareImage(img image.Image, path ColorPath) image.Image {
	if path == PathOriginal || img == nil {
		return img
	}
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}
