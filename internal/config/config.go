package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"go-plate-recognizer/internal/recognizer"
)

// Engine names accepted by ENGINE.
const (
	EngineTesseract   = "tesseract"
	EngineRekognition = "rekognition"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	MaxRequestBodySize int64
	MaxWorkers         int
	MaxSessions        int
	SessionIdleTimeout time.Duration

	Engine            string
	TesseractLanguage string
	AWSRegion         string
	EngineTimeout     time.Duration
	LicenseFile       string

	// Recognition defaults; requests may override them.
	Options recognizer.Options
	Session recognizer.SessionConfig

	PlatePattern   string
	AllowedHosts   []string
	DiagnosticPath string
	QualityChecks  bool

	AzureAccountName         string
	AzureAccountKey          string
	AzureDiagnosticContainer string

	DatabaseURL string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether blob credentials are configured.
func (c *Config) AzureEnabled() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

// LoadFromEnv reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func LoadFromEnv(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	opts, err := optionsFromEnv()
	if err != nil {
		return nil, err
	}

	session := recognizer.DefaultSessionConfig()
	session.MaxFrames = int(parseIntOrDefault("SESSION_MAX_FRAMES", int64(session.MaxFrames)))
	session.MinFramesWithPlate = int(parseIntOrDefault("SESSION_MIN_HITS", int64(session.MinFramesWithPlate)))
	session.FramesWithoutPlate = int(parseIntOrDefault("SESSION_MAX_MISSES", int64(session.FramesWithoutPlate)))
	session.MaxPlatesInMem = int(parseIntOrDefault("SESSION_MAX_TRACKED", int64(session.MaxPlatesInMem)))
	session.MatchDistance = int(parseIntOrDefault("SESSION_MATCH_DISTANCE", int64(session.MatchDistance)))
	session.MinIoU = parseFloatOrDefault("SESSION_MIN_IOU", session.MinIoU)

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		MaxWorkers:         int(parseIntOrDefault("MAX_WORKERS", 0)),
		MaxSessions:        int(parseIntOrDefault("MAX_SESSIONS", 64)),
		SessionIdleTimeout: parseDurationOrDefault("SESSION_IDLE_TIMEOUT", 10*time.Minute),

		Engine:            strings.ToLower(getEnvOrDefault("ENGINE", EngineTesseract)),
		TesseractLanguage: getEnvOrDefault("TESSERACT_LANGUAGE", "eng"),
		AWSRegion:         getEnvOrDefault("AWS_REGION", "us-east-1"),
		EngineTimeout:     parseDurationOrDefault("ENGINE_TIMEOUT", 10*time.Second),
		LicenseFile:       os.Getenv("LICENSE_FILE"),

		Options: opts,
		Session: session,

		PlatePattern:   os.Getenv("PLATE_PATTERN"),
		AllowedHosts:   splitList(os.Getenv("ALLOWED_IMAGE_HOSTS")),
		DiagnosticPath: os.Getenv("DIAGNOSTIC_PATH"),
		QualityChecks:  parseBoolOrDefault("QUALITY_CHECKS", true),

		AzureAccountName:         os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:          os.Getenv("AZURE_ACCOUNT_KEY"),
		AzureDiagnosticContainer: os.Getenv("AZURE_DIAGNOSTIC_CONTAINER"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.EngineTimeout <= 0 || c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, engine=%s, session idle=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.EngineTimeout, c.SessionIdleTimeout)
	}
	if !lo.Contains([]string{EngineTesseract, EngineRekognition}, c.Engine) {
		return fmt.Errorf("unknown ENGINE %q", c.Engine)
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("MAX_SESSIONS must be > 0 (got %d)", c.MaxSessions)
	}
	if err := c.Options.Validate(); err != nil {
		return fmt.Errorf("recognition options: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if c.AzureDiagnosticContainer != "" && !c.AzureEnabled() {
		return fmt.Errorf("AZURE_DIAGNOSTIC_CONTAINER needs AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY")
	}
	return nil
}

func optionsFromEnv() (recognizer.Options, error) {
	d := recognizer.DefaultOptions()
	opts := d.
		WithMinPlateSize(int(parseIntOrDefault("MIN_PLATE_SIZE", int64(d.MinPlateSize)))).
		WithMaxPlateSize(int(parseIntOrDefault("MAX_PLATE_SIZE", int64(d.MaxPlateSize)))).
		WithDetectMode(int(parseIntOrDefault("DETECT_MODE", int64(d.DetectMode)))).
		WithMaxTextSize(int(parseIntOrDefault("MAX_TEXT_SIZE", int64(d.MaxTextSize)))).
		WithTypeNumber(int(parseIntOrDefault("PLATE_TYPE", int64(d.TypeNumber)))).
		WithFlags(int(parseIntOrDefault("ENGINE_FLAGS", int64(d.Flags)))).
		WithAlpha(parseFloatOrDefault("ENGINE_ALPHA", d.Alpha)).
		WithBeta(parseFloatOrDefault("ENGINE_BETA", d.Beta)).
		WithGamma(parseFloatOrDefault("ENGINE_GAMMA", d.Gamma)).
		WithMaxThreads(int(parseIntOrDefault("ENGINE_MAX_THREADS", int64(d.MaxThreads))))
	return opts.WithVersion(getEnvOrDefault("ENGINE_VERSION", d.Version))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	return lo.Compact(lo.Map(strings.Split(value, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}
