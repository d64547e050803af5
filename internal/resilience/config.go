// Package resilience implements the request resilience pipeline: failure
// classification into a stable error taxonomy, the exception boundaries that
// turn failures into JSON error envelopes, a deadline guard for handler
// execution, and a latency monitor that flags slow requests.
//
// The package is transport-agnostic. It reads request metadata from a small
// Request value and writes through http.ResponseWriter; the gin glue lives in
// internal/http/middleware.
package resilience

import (
	"errors"
	"math"
	"time"
)

// Default thresholds, in milliseconds.
const (
	DefaultTimeoutMs       int64 = 30000
	DefaultShortTimeoutMs  int64 = 5000
	DefaultUploadTimeoutMs int64 = 300000
	DefaultSlowRequestMs   int64 = 1000
)

// MaxThresholdMs is the largest threshold a time.Duration can hold.
const MaxThresholdMs = math.MaxInt64 / int64(time.Millisecond)

var (
	// ErrNegativeThreshold is returned by NewConfig when an override is below zero.
	ErrNegativeThreshold = errors.New("resilience: thresholds must be >= 0")
	// ErrThresholdTooLarge is returned by NewConfig when an override exceeds
	// MaxThresholdMs.
	ErrThresholdTooLarge = errors.New("resilience: threshold exceeds the maximum duration")
)

// Config holds the pipeline thresholds. It is immutable once constructed and
// safe to share across goroutines; build it with DefaultConfig or NewConfig.
//
// A zero duration is legal: every measured duration exceeds it, so a zero
// slow-request threshold always warns and a zero deadline expires at once.
type Config struct {
	defaultTimeout       time.Duration
	shortTimeout         time.Duration
	uploadTimeout        time.Duration
	slowRequestThreshold time.Duration
}

// Overrides carries optional threshold values supplied by a configuration
// provider. A nil field means "not supplied" and takes the default.
type Overrides struct {
	DefaultTimeoutMs       *int64
	ShortTimeoutMs         *int64
	UploadTimeoutMs        *int64
	SlowRequestThresholdMs *int64
}

// DefaultConfig returns the documented default thresholds
// (30000, 5000, 300000 and 1000 ms).
func DefaultConfig() Config {
	return Config{
		defaultTimeout:       ms(DefaultTimeoutMs),
		shortTimeout:         ms(DefaultShortTimeoutMs),
		uploadTimeout:        ms(DefaultUploadTimeoutMs),
		slowRequestThreshold: ms(DefaultSlowRequestMs),
	}
}

// NewConfig applies o on top of the defaults, field by field.
func NewConfig(o Overrides) (Config, error) {
	cfg := DefaultConfig()
	fields := []struct {
		v   *int64
		dst *time.Duration
	}{
		{o.DefaultTimeoutMs, &cfg.defaultTimeout},
		{o.ShortTimeoutMs, &cfg.shortTimeout},
		{o.UploadTimeoutMs, &cfg.uploadTimeout},
		{o.SlowRequestThresholdMs, &cfg.slowRequestThreshold},
	}
	for _, f := range fields {
		if f.v == nil {
			continue
		}
		if *f.v < 0 {
			return Config{}, ErrNegativeThreshold
		}
		if *f.v > MaxThresholdMs {
			return Config{}, ErrThresholdTooLarge
		}
		*f.dst = ms(*f.v)
	}
	return cfg, nil
}

// DefaultTimeout is the deadline applied to ordinary endpoints.
func (c Config) DefaultTimeout() time.Duration { return c.defaultTimeout }

// ShortTimeout is the deadline for cheap endpoints such as health checks.
func (c Config) ShortTimeout() time.Duration { return c.shortTimeout }

// UploadTimeout is the deadline for upload endpoints.
func (c Config) UploadTimeout() time.Duration { return c.uploadTimeout }

// SlowRequestThreshold is the duration above which a completed request is
// reported as slow.
func (c Config) SlowRequestThreshold() time.Duration { return c.slowRequestThreshold }

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }
