// Package engine describes the contract of an external plate recognition engine.
//
// An engine is an opaque, synchronous black box: it is handed an image, an options
// record and caller-owned output buffers, and it answers with an integer status and
// the number of entries it wrote. Engines never allocate the output buffers and must
// not write past the capacity they are given (len(rects), which always equals len(texts)).
package engine

import (
	"image"
)

// Status codes reported by engines.
const (
	StatusOK                = 0
	StatusNoCandidates      = 1
	StatusNoPlatesFound     = 2
	StatusFailure           = -1
	StatusImageEmpty        = -2
	StatusUnsupportedType   = -100
	StatusColorTypeMismatch = -101
)

// Detection modes understood by the engines in this module.
const (
	DetectSimpleMode  = 1
	DetectComplexMode = 2
)

// Signature is the fixed protocol tag every options record carries.
var Signature = [3]byte{'i', 'a', '1'}

// FullColorTypes lists the plate-type families that are only recognized reliably on
// full-color input. Every other family expects an 8-bit single-channel image.
var FullColorTypes = []int{4, 7, 9, 310, 311, 911}

// Options is the engine-side options record. It is rebuilt for every call from the
// caller's configuration, so engines may keep a copy but never mutate the original.
type Options struct {
	Sign         [3]byte
	MinPlateSize int
	MaxPlateSize int
	DetectMode   int
	MaxTextSize  int
	TypeNumber   int
	Flags        int
	Custom       any
	Version      string
	Alpha        float64
	Beta         float64
	Gamma        float64
	MaxThreads   int
}

// Engine is the capability consumed by the one-shot recognizer and the session.
type Engine interface {
	// RecognizeOnce runs a single detection pass. On StatusOK the first count entries
	// of rects and texts are filled; count never exceeds len(rects).
	RecognizeOnce(img image.Image, opts Options, rects []Rect, texts [][]byte) (count int, status int)

	// CreateSession opens an aggregation handle bound to the given frame bounds.
	CreateSession(maxFrames int, opts Options, bounds Rect) (Session, error)
}

// Session is an engine-side aggregation handle. It is not safe for concurrent use.
type Session interface {
	AddFrame(img image.Image, rects []Rect, texts [][]byte) (count int, status int)
	ConfigureMemory(minHits, maxMisses, maxTracked int) int
	ConfigureLines(a1, a2, b1, b2 image.Point) int
	Release()
}

// LicenseInstaller is implemented by engines that need a key before the first call.
type LicenseInstaller interface {
	InstallLicense(key []byte) error
}
