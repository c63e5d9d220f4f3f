package validation

import (
	"fmt"
	"regexp"

	"go-plate-recognizer/internal/engine"
	apperrors "go-plate-recognizer/internal/errors"
)

// PlateValidator accepts plate strings that match a format after normalization.
type PlateValidator struct {
	pattern *regexp.Regexp
}

// NewPlateValidator uses engine.DefaultPlatePattern.
func NewPlateValidator() *PlateValidator {
	return &PlateValidator{pattern: regexp.MustCompile(engine.DefaultPlatePattern.String())}
}

// NewPlateValidatorWithPattern compiles a custom plate format. An empty pattern
// falls back to the default.
func NewPlateValidatorWithPattern(pattern string) (*PlateValidator, error) {
	if pattern == "" {
		return NewPlateValidator(), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid plate pattern", err)
	}
	return &PlateValidator{pattern: re}, nil
}

// Normalize upper-cases the text and drops everything except letters and digits.
func (v *PlateValidator) Normalize(text string) string {
	return engine.NormalizePlate(text)
}

// ValidatePlate returns the normalized plate or a validation error.
func (v *PlateValidator) ValidatePlate(text string) (string, error) {
	plate := v.Normalize(text)
	if plate == "" {
		return "", apperrors.NewValidationError("plate text is empty", nil)
	}
	if !v.pattern.MatchString(plate) {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("plate %q does not match %s", plate, v.pattern), nil)
	}
	return plate, nil
}

// Pattern returns the source of the plate format.
func (v *PlateValidator) Pattern() string {
	return v.pattern.String()
}
