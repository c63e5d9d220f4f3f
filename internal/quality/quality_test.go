package quality

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniform(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func checkerboard(w, h, cell int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func issueTypes(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Type)
	}
	return out
}

func TestMeasureUniformFrame(t *testing.T) {
	m := NewCalculator().Measure(uniform(64, 48, color.RGBA{128, 128, 128, 255}))

	assert.Equal(t, 64, m.Width)
	assert.Equal(t, 48, m.Height)
	assert.InDelta(t, 128, m.Brightness, 1)
	assert.InDelta(t, 0, m.Contrast, 0.01)
	assert.InDelta(t, 0, m.Sharpness, 0.01)
	assert.Nil(t, m.SkewAngle)
}

func TestMeasureCheckerboard(t *testing.T) {
	m := NewCalculator().Measure(checkerboard(64, 64, 4))

	assert.InDelta(t, 127.5, m.Brightness, 0.5)
	assert.InDelta(t, 127.5, m.Contrast, 0.5)
	assert.Greater(t, m.Sharpness, 1000.0)
	require.NotNil(t, m.SkewAngle)
	assert.LessOrEqual(t, *m.SkewAngle, 45.0)
	assert.GreaterOrEqual(t, *m.SkewAngle, -45.0)
}

func TestMeasureEmptyFrame(t *testing.T) {
	m := NewCalculator().Measure(image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.Zero(t, m.Brightness)
	assert.Zero(t, m.Sharpness)
}

func TestCheck(t *testing.T) {
	checker := NewChecker()

	tests := []struct {
		name       string
		img        image.Image
		want       []string
		acceptable bool
	}{
		{
			name:       "sharp frame",
			img:        checkerboard(320, 240, 8),
			want:       []string{},
			acceptable: true,
		},
		{
			name:       "small frame",
			img:        checkerboard(64, 48, 4),
			want:       []string{"resolution"},
			acceptable: true,
		},
		{
			name:       "night frame",
			img:        uniform(320, 240, color.RGBA{10, 10, 10, 255}),
			want:       []string{"too_dark", "low_contrast"},
			acceptable: false,
		},
		{
			name:       "glare",
			img:        uniform(320, 240, color.White),
			want:       []string{"too_bright", "low_contrast"},
			acceptable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := checker.Check(tt.img)
			assert.Equal(t, tt.want, issueTypes(report.Issues))
			assert.Equal(t, tt.acceptable, report.Acceptable())
		})
	}
}

func TestEvaluateBlurAndSkew(t *testing.T) {
	checker := NewCheckerWithThresholds(DefaultThresholds())
	angle := 30.0
	issues := checker.Evaluate(Metrics{
		Width:      640,
		Height:     480,
		Brightness: 120,
		Contrast:   50,
		Sharpness:  10,
		SkewAngle:  &angle,
	})

	assert.Equal(t, []string{"blurriness", "skew"}, issueTypes(issues))
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Equal(t, 10.0, issues[0].Actual)
}
