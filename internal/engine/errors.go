package engine

import "errors"

var (
	ErrInvalidBounds      = errors.New("engine: session bounds must have a positive area")
	ErrInvalidFrameWindow = errors.New("engine: max frames must be positive")
)
