package recognizer

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"go-plate-recognizer/internal/engine"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.MinPlateSize != 500 {
		t.Errorf("Expected MinPlateSize to be 500, got %d", opts.MinPlateSize)
	}
	if opts.MaxPlateSize != 50000 {
		t.Errorf("Expected MaxPlateSize to be 50000, got %d", opts.MaxPlateSize)
	}
	if opts.MaxTextSize != 20 {
		t.Errorf("Expected MaxTextSize to be 20, got %d", opts.MaxTextSize)
	}
	if opts.TypeNumber != 104 {
		t.Errorf("Expected TypeNumber to be 104, got %d", opts.TypeNumber)
	}
	if opts.Version != "1.6.0" {
		t.Errorf("Expected Version to be 1.6.0, got %s", opts.Version)
	}
	if opts.Alpha != 90.0 || opts.Beta != 90.0 || opts.Gamma != 90.0 {
		t.Errorf("Expected coefficients 90/90/90, got %v/%v/%v", opts.Alpha, opts.Beta, opts.Gamma)
	}
	if opts.MaxThreads != 1 {
		t.Errorf("Expected MaxThreads to be 1, got %d", opts.MaxThreads)
	}
	if opts.Custom != nil {
		t.Error("Expected Custom to be nil by default")
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestOptionsChain(t *testing.T) {
	base := DefaultOptions()
	custom := &struct{ name string }{"camera-1"}

	opts := base.
		WithMinPlateSize(100).
		WithMaxPlateSize(9000).
		WithDetectMode(engine.DetectSimpleMode).
		WithMaxTextSize(12).
		WithTypeNumber(7).
		WithFlags(3).
		WithCustom(custom).
		WithAlpha(1).
		WithBeta(2).
		WithGamma(3).
		WithMaxThreads(4)

	if base.TypeNumber != 104 {
		t.Error("Expected setters to leave the receiver untouched")
	}
	want := Options{
		MinPlateSize: 100, MaxPlateSize: 9000, DetectMode: engine.DetectSimpleMode,
		MaxTextSize: 12, TypeNumber: 7, Flags: 3, Custom: custom, Version: "1.6.0",
		Alpha: 1, Beta: 2, Gamma: 3, MaxThreads: 4,
	}
	if opts != want {
		t.Errorf("Expected %+v, got %+v", want, opts)
	}
}

func TestWithVersion(t *testing.T) {
	opts, err := DefaultOptions().WithVersion("2.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Version != "2.0.1" {
		t.Errorf("Expected version 2.0.1, got %s", opts.Version)
	}

	_, err = DefaultOptions().WithVersion("1.6\x00.0")
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("Expected EncodingError, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", DefaultOptions(), false},
		{"bad version", Options{Version: "one", MaxPlateSize: 1, MaxTextSize: 20, MaxThreads: 1, DetectMode: 2}, true},
		{"inverted sizes", DefaultOptions().WithMinPlateSize(10).WithMaxPlateSize(5), true},
		{"no room for terminator", DefaultOptions().WithMaxTextSize(1), true},
		{"no threads", DefaultOptions().WithMaxThreads(0), true},
		{"unknown mode", DefaultOptions().WithDetectMode(9), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngineOptionsCopiesEveryField(t *testing.T) {
	opts := DefaultOptions().WithTypeNumber(311).WithFlags(8).WithGamma(12.5)
	eo := opts.EngineOptions()

	if eo.Sign != [3]byte{'i', 'a', '1'} {
		t.Errorf("Expected signature ia1, got %q", eo.Sign[:])
	}
	if eo.TypeNumber != 311 || eo.Flags != 8 || eo.Gamma != 12.5 || eo.Version != "1.6.0" {
		t.Errorf("Expected fields copied, got %+v", eo)
	}
	if eo.MinPlateSize != opts.MinPlateSize || eo.MaxThreads != opts.MaxThreads || eo.Alpha != opts.Alpha {
		t.Errorf("Expected fields copied, got %+v", eo)
	}
}

func TestSelectPathConsistentWithIsFullType(t *testing.T) {
	for typeNumber := -5; typeNumber <= 1000; typeNumber++ {
		opts := DefaultOptions().WithTypeNumber(typeNumber)
		path := SelectPath(typeNumber, FullTypes)
		if opts.IsFullType(FullTypes) != (path == PathOriginal) {
			t.Fatalf("type %d: IsFullType=%v path=%s", typeNumber, opts.IsFullType(FullTypes), path)
		}
	}
	for _, full := range []int{4, 7, 9, 310, 311, 911} {
		if SelectPath(full, FullTypes) != PathOriginal {
			t.Errorf("Expected type %d to use the original frame", full)
		}
	}
	if SelectPath(104, FullTypes) != PathGrayscale {
		t.Error("Expected type 104 to use grayscale")
	}
}

func TestPrepareImage(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(2, 3, 6, 7))
	rgba.Set(3, 4, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	if got := PrepareImage(rgba, PathOriginal); got != image.Image(rgba) {
		t.Error("Expected original path to pass the frame through")
	}

	gray, ok := PrepareImage(rgba, PathGrayscale).(*image.Gray)
	if !ok {
		t.Fatal("Expected *image.Gray for grayscale path")
	}
	if gray.Bounds() != rgba.Bounds() {
		t.Errorf("Expected bounds %v, got %v", rgba.Bounds(), gray.Bounds())
	}
	if gray.GrayAt(3, 4).Y != 255 || gray.GrayAt(2, 3).Y != 0 {
		t.Error("Expected pixel values to survive conversion")
	}

	already := image.NewGray(image.Rect(0, 0, 2, 2))
	if PrepareImage(already, PathGrayscale) != image.Image(already) {
		t.Error("Expected gray frames to be reused")
	}
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{1, KindNoCandidates},
		{2, KindNoPlatesFound},
		{-2, KindImageEmpty},
		{-100, KindUnsupportedPlateType},
		{-101, KindColorTypeMismatch},
		{-1, KindUnknown},
		{42, KindUnknown},
	}
	if FromStatus(0) != nil {
		t.Error("Expected status 0 to map to nil")
	}
	for _, tt := range tests {
		err := FromStatus(tt.status)
		if !IsKind(err, tt.kind) {
			t.Errorf("status %d: expected %s, got %v", tt.status, tt.kind, err)
		}
	}
}
