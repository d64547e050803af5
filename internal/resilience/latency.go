package resilience

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Monitor measures handler duration and warns about slow requests. It never
// alters the handler's result or error.
type Monitor struct {
	threshold time.Duration
	log       zerolog.Logger
	now       func() time.Time
	onSlow    func(method, path string, d time.Duration)
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithSlowHook registers fn to be called for every slow request, after the
// warning is logged.
func WithSlowHook(fn func(method, path string, d time.Duration)) MonitorOption {
	return func(m *Monitor) { m.onSlow = fn }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor returns a Monitor that warns when a completed request takes
// strictly longer than threshold. A zero threshold warns for every request.
func NewMonitor(threshold time.Duration, log zerolog.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{threshold: threshold, log: log, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Threshold returns the slow-request threshold.
func (m *Monitor) Threshold() time.Duration { return m.threshold }

// Run invokes fn and, when it succeeds, logs a warning if its duration
// exceeded the threshold. Failures are returned as-is without logging.
func (m *Monitor) Run(method, path string, fn func() (any, error)) (any, error) {
	start := m.now()
	v, err := fn()
	if err != nil {
		return v, err
	}

	d := m.now().Sub(start)
	if m.threshold == 0 || d > m.threshold {
		m.log.Warn().
			Str("method", method).
			Str("path", path).
			Int64("duration_ms", d.Milliseconds()).
			Msg(fmt.Sprintf("Slow Request: %s %s took %dms", method, path, d.Milliseconds()))
		if m.onSlow != nil {
			m.onSlow(method, path, d)
		}
	}
	return v, nil
}
