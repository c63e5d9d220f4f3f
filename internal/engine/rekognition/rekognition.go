// Package rekognition binds AWS Rekognition text detection as a plate recognition engine.
package rekognition

import (
	"bytes"
	"context"
	"image"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"go-plate-recognizer/internal/engine"
	"go-plate-recognizer/internal/logger"
)

// API is the subset of the Rekognition client used by the engine.
type API interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// Engine sends each frame to DetectText and keeps text lines shaped like plates.
type Engine struct {
	api           API
	timeout       time.Duration
	minConfidence float32
}

var _ engine.Engine = (*Engine)(nil)

// New wraps an existing client. A zero timeout defaults to ten seconds.
func New(api API, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Engine{api: api, timeout: timeout, minConfidence: 80}
}

// NewFromRegion loads the default AWS configuration for the region.
func NewFromRegion(ctx context.Context, region string, timeout time.Duration) (*Engine, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return New(rekognition.NewFromConfig(cfg), timeout), nil
}

func (e *Engine) RecognizeOnce(img image.Image, opts engine.Options, rects []engine.Rect, texts [][]byte) (int, int) {
	if status := engine.Precheck(img, opts); status != engine.StatusOK {
		return 0, status
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		logger.WithError(err).Error("failed to encode frame for rekognition")
		return 0, engine.StatusFailure
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	out, err := e.api.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: buf.Bytes()},
	})
	if err != nil {
		logger.WithError(err).Error("rekognition DetectText failed")
		return 0, engine.StatusFailure
	}

	detections, candidates := e.lines(out.TextDetections, img.Bounds(), opts)
	if candidates == 0 {
		return 0, engine.StatusNoCandidates
	}
	if len(detections) == 0 {
		return 0, engine.StatusNoPlatesFound
	}
	return engine.Fill(detections, rects, texts), engine.StatusOK
}

func (e *Engine) CreateSession(maxFrames int, opts engine.Options, bounds engine.Rect) (engine.Session, error) {
	return engine.NewFrameSession(e.RecognizeOnce, maxFrames, opts, bounds)
}

// lines returns the decoded plates and the number of line detections that fit the
// plate size bounds.
func (e *Engine) lines(found []types.TextDetection, frame image.Rectangle, opts engine.Options) ([]engine.Detection, int) {
	var out []engine.Detection
	candidates := 0
	for _, td := range found {
		if td.Type != types.TextTypesLine || td.Geometry == nil || td.Geometry.BoundingBox == nil {
			continue
		}
		rect := toPixels(td.Geometry.BoundingBox, frame)
		area := rect.Area()
		if area < opts.MinPlateSize || (opts.MaxPlateSize > 0 && area > opts.MaxPlateSize) {
			continue
		}
		candidates++

		text := engine.NormalizePlate(aws.ToString(td.DetectedText))
		confidence := aws.ToFloat32(td.Confidence)
		if confidence < e.minConfidence || !engine.DefaultPlatePattern.MatchString(text) {
			logger.WithFields(logrus.Fields{
				"text":       aws.ToString(td.DetectedText),
				"confidence": confidence,
			}).Debug("rekognition line rejected")
			continue
		}
		out = append(out, engine.Detection{Rect: rect, Text: text})
	}
	return out, candidates
}

// toPixels converts a ratio bounding box into frame pixel coordinates.
func toPixels(box *types.BoundingBox, frame image.Rectangle) engine.Rect {
	w, h := float64(frame.Dx()), float64(frame.Dy())
	return engine.Rect{
		X:      frame.Min.X + int(math.Round(float64(aws.ToFloat32(box.Left))*w)),
		Y:      frame.Min.Y + int(math.Round(float64(aws.ToFloat32(box.Top))*h)),
		Width:  int(math.Round(float64(aws.ToFloat32(box.Width)) * w)),
		Height: int(math.Round(float64(aws.ToFloat32(box.Height)) * h)),
	}
}
