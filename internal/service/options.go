package service

import (
	"image"

	apperrors "go-plate-recognizer/internal/errors"
	"go-plate-recognizer/internal/recognizer"
	"go-plate-recognizer/pkg/models"
)

// applyOptions overlays a request onto the server defaults through the options
// setters and validates the result.
func applyOptions(base recognizer.Options, req *models.OptionsRequest) (recognizer.Options, error) {
	opts := base
	if req == nil {
		return opts, nil
	}
	if req.MinPlateSize != nil {
		opts = opts.WithMinPlateSize(*req.MinPlateSize)
	}
	if req.MaxPlateSize != nil {
		opts = opts.WithMaxPlateSize(*req.MaxPlateSize)
	}
	if req.DetectMode != nil {
		opts = opts.WithDetectMode(*req.DetectMode)
	}
	if req.MaxTextSize != nil {
		opts = opts.WithMaxTextSize(*req.MaxTextSize)
	}
	if req.TypeNumber != nil {
		opts = opts.WithTypeNumber(*req.TypeNumber)
	}
	if req.Flags != nil {
		opts = opts.WithFlags(*req.Flags)
	}
	if req.Version != nil {
		var err error
		if opts, err = opts.WithVersion(*req.Version); err != nil {
			return base, apperrors.FromRecognition(err)
		}
	}
	if req.Alpha != nil {
		opts = opts.WithAlpha(*req.Alpha)
	}
	if req.Beta != nil {
		opts = opts.WithBeta(*req.Beta)
	}
	if req.Gamma != nil {
		opts = opts.WithGamma(*req.Gamma)
	}
	if req.MaxThreads != nil {
		opts = opts.WithMaxThreads(*req.MaxThreads)
	}
	if err := opts.Validate(); err != nil {
		return base, apperrors.NewValidationError("invalid recognition options", err)
	}
	return opts, nil
}

func applySessionConfig(base recognizer.SessionConfig, req models.OpenSessionRequest) recognizer.SessionConfig {
	cfg := base
	if req.MaxFrames != nil {
		cfg.MaxFrames = *req.MaxFrames
	}
	if req.MinFramesWithPlate != nil {
		cfg.MinFramesWithPlate = *req.MinFramesWithPlate
	}
	if req.FramesWithoutPlate != nil {
		cfg.FramesWithoutPlate = *req.FramesWithoutPlate
	}
	if req.MaxPlatesInMem != nil {
		cfg.MaxPlatesInMem = *req.MaxPlatesInMem
	}
	if l := req.Lines; l != nil {
		cfg.Lines = &recognizer.LinePair{
			A: segment(l.A),
			B: segment(l.B),
		}
	}
	return cfg
}

func segment(s models.SegmentRequest) recognizer.Segment {
	return recognizer.Segment{P1: image.Pt(s.X1, s.Y1), P2: image.Pt(s.X2, s.Y2)}
}
