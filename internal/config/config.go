// Package config provides application configuration loaded from environment
// variables with defaults and validation. An optional YAML file (CONFIG_FILE)
// sits between the built-in defaults and the environment, so the lookup order
// for every setting is: environment, then file, then default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-resilient-api/internal/resilience"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // must outlast the upload deadline
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration // graceful shutdown budget
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // request body cap
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // console writer instead of JSON lines
	APIBasePath string // base path for API routes

	// Storage
	DBPath string // SQLite path

	// Edge
	RateRPS     float64 // tokens per second (>= 0)
	RateBurst   int     // bucket size (>= 1)
	GzipEnabled bool
	CORS        CORSConfig

	// Request pipeline thresholds
	Resilience resilience.Config

	// Observability
	OTEL OTELConfig
}

// fileConfig mirrors the optional YAML file. Pointer fields distinguish
// "not set" from zero values.
type fileConfig struct {
	Server struct {
		Port         string `yaml:"port"`
		GinMode      string `yaml:"gin_mode"`
		APIBasePath  string `yaml:"api_base_path"`
		MaxBodyBytes *int64 `yaml:"max_body_bytes"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty *bool  `yaml:"pretty"`
	} `yaml:"log"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	RateLimit struct {
		RPS   *float64 `yaml:"rps"`
		Burst *int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	Resilience struct {
		DefaultTimeoutMs       *int64 `yaml:"default_timeout_ms"`
		ShortTimeoutMs         *int64 `yaml:"short_timeout_ms"`
		UploadTimeoutMs        *int64 `yaml:"upload_timeout_ms"`
		SlowRequestThresholdMs *int64 `yaml:"slow_request_threshold_ms"`
	} `yaml:"resilience"`
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the optional CONFIG_FILE and the environment, applies defaults,
// normalizes values, and validates the result.
func Load() (Config, error) {
	var fc fileConfig
	if path := getenv("CONFIG_FILE", ""); path != "" {
		loaded, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		fc = loaded
	}

	res, err := resilience.NewConfig(resilience.Overrides{
		DefaultTimeoutMs:       getms("DEFAULT_TIMEOUT_MS", fc.Resilience.DefaultTimeoutMs),
		ShortTimeoutMs:         getms("SHORT_TIMEOUT_MS", fc.Resilience.ShortTimeoutMs),
		UploadTimeoutMs:        getms("UPLOAD_TIMEOUT_MS", fc.Resilience.UploadTimeoutMs),
		SlowRequestThresholdMs: getms("SLOW_REQUEST_THRESHOLD_MS", fc.Resilience.SlowRequestThresholdMs),
	})
	if err != nil {
		return Config{}, fmt.Errorf("resilience thresholds: %w", err)
	}

	cfg := Config{
		// Server
		Port:              getenv("PORT", orString(fc.Server.Port, "8080")),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", res.UploadTimeout()+10*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", int(orInt64(fc.Server.MaxBodyBytes, 32<<20)))),
		GinMode:           strings.ToLower(getenv("GIN_MODE", orString(fc.Server.GinMode, "release"))),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", orString(fc.Log.Level, "info"))),
		LogPretty:   getbool("LOG_PRETTY", orBool(fc.Log.Pretty, false)),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", orString(fc.Server.APIBasePath, "/api/v1"))),

		// Storage
		DBPath: getenv("DB_PATH", orString(fc.Database.Path, "app.db")),

		// Edge
		RateRPS:     getfloat("RATE_RPS", orFloat(fc.RateLimit.RPS, 20.0)),
		RateBurst:   getint("RATE_BURST", orInt(fc.RateLimit.Burst, 40)),
		GzipEnabled: getbool("GZIP_ENABLED", false),
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		Resilience: res,

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-resilient-api"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// readFile parses a YAML config file after expanding ${VAR} references.
func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
		return fc, fmt.Errorf("parse config file: %w", err)
	}
	return fc, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// getms returns the millisecond value of k, or fallback when k is unset or
// not an integer. A nil result means "use the pipeline default".
func getms(k string, fallback *int64) *int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return &i
		}
	}
	return fallback
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt64(v *int64, def int64) int64 {
	if v != nil {
		return *v
	}
	return def
}

func orInt(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func orFloat(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func orBool(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
