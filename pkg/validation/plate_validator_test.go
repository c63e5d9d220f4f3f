package validation

import (
	"testing"

	apperrors "go-plate-recognizer/internal/errors"
)

func TestValidatePlate(t *testing.T) {
	validator := NewPlateValidator()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"AB123", "AB123", false},
		{"ab-123", "AB123", false},
		{" 51G 123.45 ", "51G12345", false},
		{"", "", true},
		{"--", "", true},
		{"A", "", true},
		{"ABCDEFGHIJK", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := validator.ValidatePlate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected %q to be rejected, got %q", tt.input, got)
				}
				if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
					t.Errorf("Expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error for %q: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPlateValidatorWithPattern(t *testing.T) {
	validator, err := NewPlateValidatorWithPattern(`^[0-9]{2}[A-Z][0-9]{4,5}$`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := validator.ValidatePlate("51G-123.45"); err != nil {
		t.Errorf("Expected Vietnamese-style plate to pass: %v", err)
	}
	if _, err := validator.ValidatePlate("AB123"); err == nil {
		t.Error("Expected AB123 to fail the custom pattern")
	}

	if _, err := NewPlateValidatorWithPattern("("); err == nil {
		t.Error("Expected invalid regex to be rejected")
	}

	fallback, err := NewPlateValidatorWithPattern("")
	if err != nil || fallback.Pattern() != NewPlateValidator().Pattern() {
		t.Errorf("Expected empty pattern to fall back to the default, got %v", err)
	}
}
