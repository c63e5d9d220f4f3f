package engine

import "image"

// Rect is an axis-aligned rectangle in frame pixel coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RectFromImage converts an image.Rectangle into a Rect.
func RectFromImage(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Image converts the rectangle back into an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns the rectangle area in pixels.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Center returns the rectangle's center point in floating point coordinates.
func (r Rect) Center() (float64, float64) {
	return float64(r.X) + float64(r.Width)/2, float64(r.Y) + float64(r.Height)/2
}

// IoU returns the intersection over union of two rectangles.
func (r Rect) IoU(other Rect) float64 {
	inter := r.Image().Intersect(other.Image())
	if inter.Empty() {
		return 0
	}
	i := inter.Dx() * inter.Dy()
	union := r.Area() + other.Area() - i
	if union <= 0 {
		return 0
	}
	return float64(i) / float64(union)
}
