// Package tesseract binds the Tesseract OCR library as a plate recognition engine.
package tesseract

import (
	"bytes"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"

	"go-plate-recognizer/internal/engine"
	"go-plate-recognizer/internal/logger"
)

const plateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Engine runs Tesseract over a frame and treats every text box whose area falls
// inside the configured plate bounds as a plate candidate.
type Engine struct {
	mu       sync.Mutex
	client   *gosseract.Client
	language string
}

var _ engine.Engine = (*Engine)(nil)

// New creates a Tesseract client for the given language.
func New(language string) (*Engine, error) {
	if language == "" {
		language = "eng"
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, err
	}
	if err := client.SetWhitelist(plateAlphabet); err != nil {
		client.Close()
		return nil, err
	}
	return &Engine{client: client, language: language}, nil
}

// Close releases the underlying Tesseract client.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}

func (e *Engine) RecognizeOnce(img image.Image, opts engine.Options, rects []engine.Rect, texts [][]byte) (int, int) {
	if status := engine.Precheck(img, opts); status != engine.StatusOK {
		return 0, status
	}

	boxes, err := e.boxes(img, opts)
	if err != nil {
		logger.WithError(err).Error("tesseract pass failed")
		return 0, engine.StatusFailure
	}

	detections := Candidates(boxes, opts)
	if len(detections) == 0 {
		return 0, engine.StatusNoCandidates
	}
	decoded := false
	for _, d := range detections {
		if d.Text != "" {
			decoded = true
			break
		}
	}
	if !decoded {
		return 0, engine.StatusNoPlatesFound
	}
	return engine.Fill(detections, rects, texts), engine.StatusOK
}

func (e *Engine) CreateSession(maxFrames int, opts engine.Options, bounds engine.Rect) (engine.Session, error) {
	return engine.NewFrameSession(e.RecognizeOnce, maxFrames, opts, bounds)
}

func (e *Engine) boxes(img image.Image, opts engine.Options) ([]gosseract.BoundingBox, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}

	mode := gosseract.PSM_AUTO
	if opts.DetectMode == engine.DetectSimpleMode {
		mode = gosseract.PSM_SINGLE_LINE
	}

	// The client keeps per-image state between calls.
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetPageSegMode(mode); err != nil {
		return nil, err
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, err
	}
	return e.client.GetBoundingBoxes(gosseract.RIL_WORD)
}

// Candidates filters OCR boxes by plate area and normalizes their text. Boxes whose
// text does not look like a plate are kept with empty text.
func Candidates(boxes []gosseract.BoundingBox, opts engine.Options) []engine.Detection {
	var out []engine.Detection
	for _, box := range boxes {
		rect := engine.RectFromImage(box.Box)
		area := rect.Area()
		if area < opts.MinPlateSize || (opts.MaxPlateSize > 0 && area > opts.MaxPlateSize) {
			continue
		}
		text := engine.NormalizePlate(box.Word)
		if opts.MaxTextSize > 0 && len(text) >= opts.MaxTextSize {
			text = text[:opts.MaxTextSize-1]
		}
		if !engine.DefaultPlatePattern.MatchString(text) {
			logger.WithFields(logrus.Fields{
				"word":       box.Word,
				"confidence": box.Confidence,
			}).Debug("box text does not look like a plate")
			text = ""
		}
		out = append(out, engine.Detection{Rect: rect, Text: text})
	}
	return out
}
