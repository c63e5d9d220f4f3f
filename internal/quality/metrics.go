// Package quality measures whether a frame is fit for plate reading.
package quality

import (
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"
)

// edgeThreshold is the Sobel magnitude above which a pixel counts as an edge.
const edgeThreshold = 50

// Metrics describe one frame.
type Metrics struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	// Brightness is the mean gray level in [0, 255].
	Brightness float64 `json:"brightness"`
	// Contrast is the standard deviation of the gray levels.
	Contrast float64 `json:"contrast"`
	// Sharpness is the variance of the Laplacian.
	Sharpness float64 `json:"sharpness"`
	// SkewAngle is the dominant edge angle in degrees, nil when there are too few edges.
	SkewAngle *float64 `json:"skew_angle,omitempty"`
}

// Calculator computes frame metrics. It is safe for concurrent use.
type Calculator struct {
	slicePool sync.Pool
}

// NewCalculator returns a calculator with pooled scratch space.
func NewCalculator() *Calculator {
	return &Calculator{
		slicePool: sync.Pool{
			New: func() any {
				s := make([]float64, 0, 1024)
				return &s
			},
		},
	}
}

// Measure computes all metrics of img.
func (c *Calculator) Measure(img image.Image) Metrics {
	gray := toGray(img)
	b := gray.Bounds()
	m := Metrics{Width: b.Dx(), Height: b.Dy()}
	if b.Empty() {
		return m
	}
	m.Brightness, m.Contrast = c.levels(gray)
	m.Sharpness = c.laplacianVariance(gray)
	m.SkewAngle = skew(gray)
	return m
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	src := imaging.Grayscale(img)
	b := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for i := 0; i < len(gray.Pix); i++ {
		gray.Pix[i] = src.Pix[i*4]
	}
	return gray
}

// levels returns mean and standard deviation of the gray levels, summing
// horizontal strips in parallel.
func (c *Calculator) levels(gray *image.Gray) (mean, stddev float64) {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()

	workers := runtime.NumCPU()
	if height < workers {
		workers = height
	}
	rowsPerWorker := (height + workers - 1) / workers

	type strip struct{ sum, sumSq float64 }
	results := make(chan strip, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		startY := b.Min.Y + i*rowsPerWorker
		endY := min(startY+rowsPerWorker, b.Max.Y)
		if startY >= endY {
			continue
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			var s strip
			for y := startY; y < endY; y++ {
				for x := b.Min.X; x < b.Max.X; x++ {
					v := float64(gray.GrayAt(x, y).Y)
					s.sum += v
					s.sumSq += v * v
				}
			}
			results <- s
		}(startY, endY)
	}
	wg.Wait()
	close(results)

	var sum, sumSq float64
	for s := range results {
		sum += s.sum
		sumSq += s.sumSq
	}
	n := float64(width * height)
	mean = sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// laplacianVariance applies the kernel [0 1 0; 1 -4 1; 0 1 0].
func (c *Calculator) laplacianVariance(gray *image.Gray) float64 {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	buf := c.slicePool.Get().(*[]float64)
	defer func() {
		*buf = (*buf)[:0]
		c.slicePool.Put(buf)
	}()
	data := (*buf)[:0]

	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			laplacian := -4*center +
				float64(gray.GrayAt(x, y-1).Y) + float64(gray.GrayAt(x, y+1).Y) +
				float64(gray.GrayAt(x-1, y).Y) + float64(gray.GrayAt(x+1, y).Y)
			data = append(data, laplacian)
		}
	}
	*buf = data
	return stat.Variance(data, nil)
}

// skew fits a line through the edge pixels and returns its angle, folded into
// [-45, 45] degrees.
func skew(gray *image.Gray) *float64 {
	b := gray.Bounds()
	var xs, ys []float64
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			gx, gy := sobel(gray, x, y)
			if math.Hypot(float64(gx), float64(gy)) > edgeThreshold {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y))
			}
		}
	}
	if len(xs) < 10 {
		return nil
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	angle := math.Atan(slope) * 180 / math.Pi
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		angle = 0
	}
	for angle > 45 {
		angle -= 90
	}
	for angle < -45 {
		angle += 90
	}
	return &angle
}

func sobel(gray *image.Gray, x, y int) (gx, gy int) {
	p := func(dx, dy int) int { return int(gray.GrayAt(x+dx, y+dy).Y) }
	gx = -p(-1, -1) + p(1, -1) - 2*p(-1, 0) + 2*p(1, 0) - p(-1, 1) + p(1, 1)
	gy = -p(-1, -1) - 2*p(0, -1) - p(1, -1) + p(-1, 1) + 2*p(0, 1) + p(1, 1)
	return gx, gy
}
