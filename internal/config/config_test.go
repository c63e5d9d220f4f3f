package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-plate-recognizer/internal/engine"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
	assert.Equal(t, EngineTesseract, cfg.Engine)
	assert.Equal(t, 104, cfg.Options.TypeNumber)
	assert.Equal(t, engine.DetectComplexMode, cfg.Options.DetectMode)
	assert.Equal(t, "1.6.0", cfg.Options.Version)
	assert.Equal(t, 3, cfg.Session.MinFramesWithPlate)
	assert.True(t, cfg.QualityChecks)
	assert.Equal(t, 10*time.Minute, cfg.SessionIdleTimeout)
	assert.False(t, cfg.AzureEnabled())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENGINE", "Rekognition")
	t.Setenv("PLATE_TYPE", "911")
	t.Setenv("DETECT_MODE", "1")
	t.Setenv("SESSION_MIN_HITS", "5")
	t.Setenv("SESSION_MIN_IOU", "0.5")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("ALLOWED_IMAGE_HOSTS", "cams.example.com, *.blob.core.windows.net,")
	t.Setenv("QUALITY_CHECKS", "false")
	t.Setenv("SESSION_IDLE_TIMEOUT", "90s")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, EngineRekognition, cfg.Engine)
	assert.Equal(t, 911, cfg.Options.TypeNumber)
	assert.Equal(t, engine.DetectSimpleMode, cfg.Options.DetectMode)
	assert.Equal(t, 5, cfg.Session.MinFramesWithPlate)
	assert.InDelta(t, 0.5, cfg.Session.MinIoU, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"cams.example.com", "*.blob.core.windows.net"}, cfg.AllowedHosts)
	assert.False(t, cfg.QualityChecks)
	assert.Equal(t, 90*time.Second, cfg.SessionIdleTimeout)
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DIAGNOSTIC_PATH=/tmp/diag\nSESSION_MAX_TRACKED=4\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DIAGNOSTIC_PATH")
		os.Unsetenv("SESSION_MAX_TRACKED")
	})

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/diag", cfg.DiagnosticPath)
	assert.Equal(t, 4, cfg.Session.MaxPlatesInMem)
}

func TestLoadFromEnvRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "70000"},
		{"ENGINE", "opencv"},
		{"ENGINE_VERSION", "not-a-version"},
		{"DETECT_MODE", "3"},
		{"MAX_TEXT_SIZE", "1"},
		{"SESSION_MAX_MISSES", "0"},
		{"SESSION_MIN_HITS", "11"},
		{"MAX_REQUEST_BODY_SIZE", "-1"},
		{"AZURE_DIAGNOSTIC_CONTAINER", "frames"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv(filepath.Join(t.TempDir(), "absent.env"))
			assert.Error(t, err)
		})
	}
}
