package recognizer

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/lo"

	"go-plate-recognizer/internal/engine"
)

// Options configures plate recognition for one call or one session
type Options struct {
	// Plate size bounds, in pixels of area
	MinPlateSize int
	MaxPlateSize int

	DetectMode  int
	MaxTextSize int

	// Plate-type family; decides the color path
	TypeNumber int
	Flags      int
	Custom     any

	Version string

	// Engine tuning coefficients
	Alpha float64
	Beta  float64
	Gamma float64

	MaxThreads int
}

// DefaultOptions returns default recognition options
func DefaultOptions() Options {
	return Options{
		MinPlateSize: 500,
		MaxPlateSize: 50000,
		DetectMode:   engine.DetectComplexMode,
		MaxTextSize:  20,
		TypeNumber:   104,
		Flags:        0,
		Version:      "1.6.0",
		Alpha:        90.0,
		Beta:         90.0,
		Gamma:        90.0,
		MaxThreads:   1,
	}
}

func (opts Options) WithMinPlateSize(size int) Options {
	opts.MinPlateSize = size
	return opts
}

func (opts Options) WithMaxPlateSize(size int) Options {
	opts.MaxPlateSize = size
	return opts
}

func (opts Options) WithDetectMode(mode int) Options {
	opts.DetectMode = mode
	return opts
}

func (opts Options) WithMaxTextSize(size int) Options {
	opts.MaxTextSize = size
	return opts
}

func (opts Options) WithTypeNumber(typeNumber int) Options {
	opts.TypeNumber = typeNumber
	return opts
}

func (opts Options) WithFlags(flags int) Options {
	opts.Flags = flags
	return opts
}

// WithCustom attaches an opaque handle passed through to the engine untouched.
// The caller synchronizes access to whatever it points at.
func (opts Options) WithCustom(custom any) Options {
	opts.Custom = custom
	return opts
}

// WithVersion sets the version string. It fails if the string carries a NUL
// byte, which the engine would read as the end of the string.
func (opts Options) WithVersion(version string) (Options, error) {
	if strings.IndexByte(version, 0) >= 0 {
		return opts, &EncodingError{Field: "version", Value: version}
	}
	opts.Version = version
	return opts, nil
}

func (opts Options) WithAlpha(alpha float64) Options {
	opts.Alpha = alpha
	return opts
}

func (opts Options) WithBeta(beta float64) Options {
	opts.Beta = beta
	return opts
}

func (opts Options) WithGamma(gamma float64) Options {
	opts.Gamma = gamma
	return opts
}

func (opts Options) WithMaxThreads(threads int) Options {
	opts.MaxThreads = threads
	return opts
}

// IsFullType reports whether the configured plate-type family is in set
func (opts Options) IsFullType(set []int) bool {
	return lo.Contains(set, opts.TypeNumber)
}

// Validate checks the options for values no engine accepts. Setters never call it.
func (opts Options) Validate() error {
	if _, err := semver.NewVersion(opts.Version); err != nil {
		return fmt.Errorf("invalid version %q: %w", opts.Version, err)
	}
	if opts.MinPlateSize < 0 || opts.MaxPlateSize < opts.MinPlateSize {
		return fmt.Errorf("invalid plate size bounds [%d, %d]", opts.MinPlateSize, opts.MaxPlateSize)
	}
	if opts.MaxTextSize < 2 {
		return fmt.Errorf("max text size must leave room for a terminator (got %d)", opts.MaxTextSize)
	}
	if opts.MaxThreads < 1 {
		return fmt.Errorf("max threads must be >= 1 (got %d)", opts.MaxThreads)
	}
	if opts.DetectMode != engine.DetectSimpleMode && opts.DetectMode != engine.DetectComplexMode {
		return fmt.Errorf("unknown detect mode %d", opts.DetectMode)
	}
	return nil
}

// EngineOptions builds the record handed to the engine: every field copied and
// the protocol signature set.
func (opts Options) EngineOptions() engine.Options {
	return engine.Options{
		Sign:         engine.Signature,
		MinPlateSize: opts.MinPlateSize,
		MaxPlateSize: opts.MaxPlateSize,
		DetectMode:   opts.DetectMode,
		MaxTextSize:  opts.MaxTextSize,
		TypeNumber:   opts.TypeNumber,
		Flags:        opts.Flags,
		Custom:       opts.Custom,
		Version:      opts.Version,
		Alpha:        opts.Alpha,
		Beta:         opts.Beta,
		Gamma:        opts.Gamma,
		MaxThreads:   opts.MaxThreads,
	}
}
