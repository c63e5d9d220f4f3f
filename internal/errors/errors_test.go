package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"go-plate-recognizer/internal/engine"
	"go-plate-recognizer/internal/recognizer"
)

func TestFromRecognition(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		wantCode int
	}{
		{"no plates", recognizer.FromStatus(engine.StatusNoPlatesFound), ErrorTypeRecognition, http.StatusUnprocessableEntity},
		{"empty image", recognizer.FromStatus(engine.StatusImageEmpty), ErrorTypeRecognition, http.StatusBadRequest},
		{"color mismatch", recognizer.FromStatus(engine.StatusColorTypeMismatch), ErrorTypeRecognition, http.StatusBadRequest},
		{"engine failure", recognizer.FromStatus(engine.StatusFailure), ErrorTypeRecognition, http.StatusBadGateway},
		{"geometry", fmt.Errorf("frame 3: %w", recognizer.ErrGeometryMismatch), ErrorTypeValidation, http.StatusBadRequest},
		{"closed", recognizer.ErrSessionClosed, ErrorTypeConflict, http.StatusConflict},
		{"allocation", recognizer.ErrAllocation, ErrorTypeInternal, http.StatusInternalServerError},
		{"encoding", &recognizer.EncodingError{Field: "version", Value: "1\x00"}, ErrorTypeValidation, http.StatusBadRequest},
		{"deadline", context.DeadlineExceeded, ErrorTypeTimeout, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := FromRecognition(tt.err)
			if appErr.Type != tt.wantType {
				t.Errorf("Expected type %s, got %s", tt.wantType, appErr.Type)
			}
			if appErr.StatusCode != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, appErr.StatusCode)
			}
		})
	}
}

func TestFromRecognitionKeepsKindInDetails(t *testing.T) {
	appErr := FromRecognition(recognizer.FromStatus(engine.StatusNoCandidates))
	if appErr.Details != "no_candidates" {
		t.Errorf("Expected details no_candidates, got %q", appErr.Details)
	}
}

func TestFromRecognitionPassesAppErrorThrough(t *testing.T) {
	original := NewNotFoundError("session not found", nil)
	if got := FromRecognition(fmt.Errorf("wrapped: %w", original)); got != original {
		t.Errorf("Expected the original AppError, got %v", got)
	}
	if FromRecognition(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}

func TestIsTypeAndStatusCodeUnwrap(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewTimeoutError("fetch timed out", nil))

	if !IsType(err, ErrorTypeTimeout) {
		t.Error("Expected wrapped timeout error to match")
	}
	if code := GetStatusCode(err); code != http.StatusGatewayTimeout {
		t.Errorf("Expected %d, got %d", http.StatusGatewayTimeout, code)
	}
	if code := GetStatusCode(fmt.Errorf("plain")); code != http.StatusInternalServerError {
		t.Errorf("Expected 500 for plain errors, got %d", code)
	}
}
