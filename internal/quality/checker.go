package quality

import (
	"fmt"
	"image"
	"math"
)

// Severity of an issue.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Thresholds bound acceptable frames.
type Thresholds struct {
	MinSharpness  float64
	MinBrightness float64
	MaxBrightness float64
	MinContrast   float64
	MaxSkewAngle  float64
	MinWidth      int
	MinHeight     int
}

// DefaultThresholds suit roadside cameras at VGA resolution or better.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSharpness:  100,
		MinBrightness: 40,
		MaxBrightness: 220,
		MinContrast:   20,
		MaxSkewAngle:  15,
		MinWidth:      320,
		MinHeight:     240,
	}
}

// Issue is one failed check.
type Issue struct {
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Severity  string  `json:"severity"`
	Actual    float64 `json:"actual"`
	Threshold float64 `json:"threshold"`
}

// Report pairs the metrics of a frame with the checks it failed.
type Report struct {
	Metrics
	Issues []Issue `json:"issues,omitempty"`
}

// Acceptable is false when any check failed with error severity.
func (r Report) Acceptable() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Checker measures frames and compares them to thresholds.
type Checker struct {
	calc       *Calculator
	thresholds Thresholds
}

// NewChecker returns a checker with the default thresholds.
func NewChecker() *Checker {
	return NewCheckerWithThresholds(DefaultThresholds())
}

// NewCheckerWithThresholds returns a checker with custom thresholds.
func NewCheckerWithThresholds(t Thresholds) *Checker {
	return &Checker{calc: NewCalculator(), thresholds: t}
}

// Check measures img and reports every failed threshold.
func (c *Checker) Check(img image.Image) Report {
	m := c.calc.Measure(img)
	return Report{Metrics: m, Issues: c.Evaluate(m)}
}

// Evaluate compares already computed metrics with the thresholds.
func (c *Checker) Evaluate(m Metrics) []Issue {
	t := c.thresholds
	var issues []Issue

	if m.Width < t.MinWidth || m.Height < t.MinHeight {
		issues = append(issues, Issue{
			Type:      "resolution",
			Message:   fmt.Sprintf("frame is %dx%d, plates may be too small to read", m.Width, m.Height),
			Severity:  SeverityWarning,
			Actual:    float64(m.Width * m.Height),
			Threshold: float64(t.MinWidth * t.MinHeight),
		})
	}

	switch {
	case m.Brightness < t.MinBrightness:
		issues = append(issues, Issue{
			Type:      "too_dark",
			Message:   "frame is underexposed",
			Severity:  SeverityError,
			Actual:    m.Brightness,
			Threshold: t.MinBrightness,
		})
	case m.Brightness > t.MaxBrightness:
		issues = append(issues, Issue{
			Type:      "too_bright",
			Message:   "frame is overexposed, plate glare is likely",
			Severity:  SeverityError,
			Actual:    m.Brightness,
			Threshold: t.MaxBrightness,
		})
	}

	if m.Contrast < t.MinContrast {
		issues = append(issues, Issue{
			Type:      "low_contrast",
			Message:   "characters may not separate from the plate background",
			Severity:  SeverityWarning,
			Actual:    m.Contrast,
			Threshold: t.MinContrast,
		})
	}

	// A flat frame has no Laplacian response at all; the contrast issue covers it.
	if m.Sharpness < t.MinSharpness && m.Contrast >= t.MinContrast {
		issues = append(issues, Issue{
			Type:      "blurriness",
			Message:   "frame is blurred, likely motion blur or focus",
			Severity:  SeverityError,
			Actual:    m.Sharpness,
			Threshold: t.MinSharpness,
		})
	}

	if m.SkewAngle != nil && math.Abs(*m.SkewAngle) > t.MaxSkewAngle {
		issues = append(issues, Issue{
			Type:      "skew",
			Message:   "plate edges are strongly tilted",
			Severity:  SeverityWarning,
			Actual:    *m.SkewAngle,
			Threshold: t.MaxSkewAngle,
		})
	}
	return issues
}
