package validation

import (
	"net/url"
	"strings"

	"github.com/samber/lo"

	apperrors "go-plate-recognizer/internal/errors"
)

// URLValidator checks image URLs before they are fetched. Hosts may be given
// exactly or as "*.suffix" to admit every subdomain, e.g. "*.blob.core.windows.net".
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator creates a new URL validator with default settings
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
	}
}

// NewURLValidatorWithOptions creates a URL validator with custom options
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes: lo.Map(schemes, func(s string, _ int) string { return strings.ToLower(s) }),
		allowedHosts:   lo.Map(hosts, func(h string, _ int) string { return strings.ToLower(h) }),
	}
}

// ValidateImageURL validates if the provided URL is acceptable for recognition
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Hostname() == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if !v.isHostAllowed(parsedURL.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	return lo.Contains(v.allowedSchemes, strings.ToLower(scheme))
}

// isHostAllowed returns true when no host restrictions are set.
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	return lo.SomeBy(v.allowedHosts, func(allowed string) bool {
		if suffix, ok := strings.CutPrefix(allowed, "*."); ok {
			return strings.HasSuffix(host, "."+suffix)
		}
		return host == allowed
	})
}
