package validation

import (
	"errors"
	"testing"

	apperrors "go-plate-recognizer/internal/errors"
)

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Expected AppError, got: %T", err)
	}
	if appErr.Type != apperrors.ErrorTypeValidation {
		t.Errorf("Expected validation error, got %s", appErr.Type)
	}
	return appErr.Message
}

func TestValidateImageURL(t *testing.T) {
	validator := NewURLValidator()

	tests := []struct {
		name    string
		url     string
		wantMsg string
	}{
		{"http", "http://example.com/frame.jpg", ""},
		{"https with port", "https://cam.example.com:8443/snap.png", ""},
		{"ip host", "http://192.168.1.1/frame.jpg", ""},
		{"upper-case scheme", "HTTPS://example.com/frame.jpg", ""},
		{"empty", "", "URL cannot be empty"},
		{"blank", " \t\n", "URL cannot be empty"},
		{"ftp", "ftp://example.com/frame.jpg", "URL scheme not allowed"},
		{"file", "file://local/path/frame.jpg", "URL scheme not allowed"},
		{"relative", "not-a-url", "URL scheme not allowed"},
		{"no host", "http://", "URL must have a valid host"},
		{"path only", "http:///path", "URL must have a valid host"},
		{"bad format", "://missing-scheme", "Invalid URL format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateImageURL(tt.url)
			if tt.wantMsg == "" {
				if err != nil {
					t.Errorf("Expected %q to pass, got: %v", tt.url, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected %q to fail validation", tt.url)
			}
			if msg := validationMessage(t, err); msg != tt.wantMsg {
				t.Errorf("Expected %q, got %q", tt.wantMsg, msg)
			}
		})
	}
}

func TestValidateImageURL_RestrictedHosts(t *testing.T) {
	validator := NewURLValidatorWithOptions(
		[]string{"https"},
		[]string{"cams.example.com", "*.blob.core.windows.net"},
	)

	allowed := []string{
		"https://cams.example.com/gate1.jpg",
		"https://CAMS.example.com/gate1.jpg",
		"https://account.blob.core.windows.net/frames/0001.png",
	}
	for _, u := range allowed {
		if err := validator.ValidateImageURL(u); err != nil {
			t.Errorf("Expected %q to pass, got: %v", u, err)
		}
	}

	denied := []string{
		"https://evil.com/gate1.jpg",
		"https://blob.core.windows.net/frames/0001.png",
		"https://account.blob.core.windows.net.evil.com/x.png",
	}
	for _, u := range denied {
		err := validator.ValidateImageURL(u)
		if err == nil {
			t.Errorf("Expected %q to fail", u)
			continue
		}
		if msg := validationMessage(t, err); msg != "URL host not allowed" {
			t.Errorf("Expected host error for %q, got %q", u, msg)
		}
	}

	if err := validator.ValidateImageURL("http://cams.example.com/gate1.jpg"); err == nil {
		t.Error("Expected http to be rejected when only https is allowed")
	}
}
