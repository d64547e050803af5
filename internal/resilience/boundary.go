package resilience

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// NoStack is logged in the stack field when the failure carries no stack
// trace, i.e. when it is not a generic error.
const NoStack = "none"

// Boundary is the terminal handler for failures raised while serving a
// request. A generic boundary accepts every failure and logs at error level;
// a typed boundary accepts only protocol-level HTTP errors and logs at warn
// level. Each boundary owns its logger; instances share no state.
type Boundary struct {
	mode Mode
	log  zerolog.Logger
	now  func() time.Time
}

// NewBoundary returns the generic boundary.
func NewBoundary(log zerolog.Logger) *Boundary {
	return &Boundary{mode: ModeGeneric, log: log, now: time.Now}
}

// NewTypedBoundary returns the boundary scoped to HTTP errors.
func NewTypedBoundary(log zerolog.Logger) *Boundary {
	return &Boundary{mode: ModeTyped, log: log, now: time.Now}
}

// Mode reports the classification mode of b.
func (b *Boundary) Mode() Mode { return b.mode }

// Accepts reports whether f is within the boundary's scope.
func (b *Boundary) Accepts(f Failure) bool {
	return b.mode == ModeGeneric || f.Kind == KindHTTP
}

// Handle classifies f, logs it once and writes the error envelope to w:
// status first, then body. It returns the classification so callers can
// record metrics; a failed body write is only logged.
func (b *Boundary) Handle(f Failure, req Request, w http.ResponseWriter) Classified {
	c := Classify(f, b.mode)
	env := NewEnvelope(c, req, b.now())
	b.logFailure(f, c, env)

	body, err := env.Marshal()
	if err != nil {
		// Unreachable for sanitized details; keep the response well-formed.
		env.Details = nil
		body, _ = env.Marshal()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(wireStatus(c.Status))
	if _, err := w.Write(body); err != nil {
		b.log.Debug().Err(err).Str("path", env.Path).Msg("error envelope write failed")
	}
	return c
}

// wireStatus keeps net/http from panicking on codes it cannot write.
func wireStatus(status int) int {
	if status < 100 || status > 999 {
		return http.StatusInternalServerError
	}
	return status
}

func (b *Boundary) logFailure(f Failure, c Classified, env ErrorEnvelope) {
	if b.mode == ModeTyped {
		b.log.Warn().
			Int("status", c.Status).
			Str("code", string(c.Code)).
			Str("request_id", env.RequestID).
			Msg(fmt.Sprintf("HTTP Exception: %d - %s - %s %s", c.Status, c.Message, env.Method, env.Path))
		return
	}

	stack := NoStack
	if f.Kind == KindGeneric && f.Stack != "" {
		stack = f.Stack
	}
	b.log.Error().
		Str("stack", stack).
		Int("status", c.Status).
		Str("code", string(c.Code)).
		Str("request_id", env.RequestID).
		Msg(fmt.Sprintf("Exception: %s - %s - %s %s", c.Code, c.Message, env.Method, env.Path))
}
