package recognizer

import (
	"errors"
	"fmt"

	"go-plate-recognizer/internal/engine"
	"go-plate-recognizer/internal/exchange"
)

// Kind classifies an engine status.
type Kind int

const (
	KindUnknown Kind = iota
	KindNoCandidates
	KindNoPlatesFound
	KindImageEmpty
	KindUnsupportedPlateType
	KindColorTypeMismatch
)

func (k Kind) String() string {
	switch k {
	case KindNoCandidates:
		return "no_candidates"
	case KindNoPlatesFound:
		return "no_plates_found"
	case KindImageEmpty:
		return "image_empty"
	case KindUnsupportedPlateType:
		return "unsupported_plate_type"
	case KindColorTypeMismatch:
		return "color_type_mismatch"
	default:
		return "unknown"
	}
}

var (
	// ErrAllocation is the allocation failure kind; buffers were already released.
	ErrAllocation = exchange.ErrAllocation
	// ErrGeometryMismatch means a frame's size differs from the session's bound size.
	ErrGeometryMismatch = errors.New("recognizer: frame geometry does not match session")
	// ErrSessionClosed means the session was closed before the call.
	ErrSessionClosed = errors.New("recognizer: session is closed")
)

// RecognitionError carries a non-zero engine status.
type RecognitionError struct {
	Kind   Kind
	Status int
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognition failed: %s (status %d)", e.Kind, e.Status)
}

// Empty reports whether the error only means nothing was seen in the frame.
func (e *RecognitionError) Empty() bool {
	return e.Kind == KindNoCandidates || e.Kind == KindNoPlatesFound
}

// FromStatus maps an engine status to an error; StatusOK maps to nil.
func FromStatus(status int) error {
	if status == engine.StatusOK {
		return nil
	}
	return &RecognitionError{Kind: kindOf(status), Status: status}
}

func kindOf(status int) Kind {
	switch status {
	case engine.StatusNoCandidates:
		return KindNoCandidates
	case engine.StatusNoPlatesFound:
		return KindNoPlatesFound
	case engine.StatusImageEmpty:
		return KindImageEmpty
	case engine.StatusUnsupportedType:
		return KindUnsupportedPlateType
	case engine.StatusColorTypeMismatch:
		return KindColorTypeMismatch
	default:
		return KindUnknown
	}
}

// IsKind reports whether err is a RecognitionError of kind k.
func IsKind(err error, k Kind) bool {
	var re *RecognitionError
	return errors.As(err, &re) && re.Kind == k
}

// EncodingError reports a string that cannot cross the engine boundary.
type EncodingError struct {
	Field string
	Value string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s %q contains an embedded NUL byte", e.Field, e.Value)
}
