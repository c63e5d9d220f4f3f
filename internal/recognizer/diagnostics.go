package recognizer

import (
	"context"
	"image"
)

// DiagnosticSink receives the exact frame handed to the engine. Failures are
// logged by the caller and never change the recognition outcome.
type DiagnosticSink interface {
	SaveFrame(ctx context.Context, img image.Image) error
}

// DiagnosticFunc adapts a function to DiagnosticSink.
type DiagnosticFunc func(ctx context.Context, img image.Image) error

func (f DiagnosticFunc) SaveFrame(ctx context.Context, img image.Image) error {
	return f(ctx, img)
}
