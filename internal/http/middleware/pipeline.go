// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the resilience pipeline that every API route runs
// through:
//
//	Monitor (slow request warning)
//	  -> Guard (per-route deadline)
//	    -> Endpoint
//
// Failures raised anywhere in the chain, including panics and rejections
// issued by other middleware, are funneled into Fail, which hands them to the
// typed boundary when they are HTTP errors and to the generic boundary
// otherwise. Exactly one envelope is written per failed request.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-resilient-api/internal/observability"
	"github.com/tbourn/go-resilient-api/internal/resilience"
)

// Endpoint is a route handler under the pipeline. It receives a copy of the
// Gin context whose request context is cancelled when the deadline expires.
// Endpoints must not write to the response; they return the success value or
// a failure instead.
type Endpoint func(c *gin.Context) (any, error)

// Result lets an endpoint choose the success status and response headers.
// A nil Body yields an empty response.
type Result struct {
	Status int
	Header http.Header
	Body   any
}

// Created wraps body in a 201 Result.
func Created(body any) Result { return Result{Status: http.StatusCreated, Body: body} }

// Pipeline owns the boundaries and the latency monitor shared by all routes.
type Pipeline struct {
	cfg     resilience.Config
	typed   *resilience.Boundary
	generic *resilience.Boundary
	monitor *resilience.Monitor
}

// NewPipeline builds the pipeline from the resilience thresholds.
func NewPipeline(cfg resilience.Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		typed:   resilience.NewTypedBoundary(log.With().Str("component", "http_exception_filter").Logger()),
		generic: resilience.NewBoundary(log.With().Str("component", "exception_filter").Logger()),
		monitor: resilience.NewMonitor(
			cfg.SlowRequestThreshold(),
			log.With().Str("component", "latency").Logger(),
			resilience.WithSlowHook(func(method, _ string, _ time.Duration) {
				apiSlow.WithLabelValues(method).Inc()
			}),
		),
	}
}

// Config returns the thresholds the pipeline was built with.
func (p *Pipeline) Config() resilience.Config { return p.cfg }

// Default guards ep with the default deadline.
func (p *Pipeline) Default(ep Endpoint) gin.HandlerFunc { return p.Handle(p.cfg.DefaultTimeout(), ep) }

// Short guards ep with the short deadline (health and other cheap probes).
func (p *Pipeline) Short(ep Endpoint) gin.HandlerFunc { return p.Handle(p.cfg.ShortTimeout(), ep) }

// Upload guards ep with the upload deadline.
func (p *Pipeline) Upload(ep Endpoint) gin.HandlerFunc { return p.Handle(p.cfg.UploadTimeout(), ep) }

// Detach shields ep from the guard's cancellation. Its request context keeps
// the values of the original but is never cancelled, so a write that outlives
// the deadline still completes; only its outcome is discarded.
func Detach(ep Endpoint) Endpoint {
	return func(c *gin.Context) (any, error) {
		c.Request = c.Request.WithContext(context.WithoutCancel(c.Request.Context()))
		return ep(c)
	}
}

// Handle returns a Gin handler that runs ep under the monitor and a guard
// with the given deadline, then renders the outcome.
func (p *Pipeline) Handle(timeout time.Duration, ep Endpoint) gin.HandlerFunc {
	guard := resilience.NewGuard(timeout)
	return func(c *gin.Context) {
		// The endpoint gets its own copy so a handler abandoned by the guard
		// never touches a context Gin has already recycled.
		cp := c.Copy()
		parent := c.Request.Context()

		v, err := p.monitor.Run(c.Request.Method, c.Request.URL.RequestURI(), func() (any, error) {
			return guard.Run(parent, func(ctx context.Context) (any, error) {
				cp.Request = cp.Request.WithContext(ctx)
				return ep(cp)
			})
		})
		if err != nil {
			if errors.Is(err, resilience.ErrRequestTimeout) {
				apiTimeouts.WithLabelValues(c.Request.Method).Inc()
			}
			p.Fail(c, err)
			return
		}
		render(c, v)
	}
}

func render(c *gin.Context, v any) {
	switch r := v.(type) {
	case nil:
		c.Status(http.StatusNoContent)
	case Result:
		for k, vs := range r.Header {
			for _, v := range vs {
				c.Writer.Header().Add(k, v)
			}
		}
		status := r.Status
		if status == 0 {
			status = http.StatusOK
		}
		if r.Body == nil {
			c.Status(status)
			return
		}
		c.JSON(status, r.Body)
	default:
		c.JSON(http.StatusOK, v)
	}
}

// Fail turns failure into an error response and aborts the chain. HTTP errors
// go to the typed boundary, everything else to the generic one. When the
// response is already committed the failure is only logged.
func (p *Pipeline) Fail(c *gin.Context, failure any) {
	f := resilience.Capture(failure)
	b := p.generic
	if p.typed.Accepts(f) {
		b = p.typed
	}

	req := resilience.Request{
		Method:    c.Request.Method,
		URL:       c.Request.URL.RequestURI(),
		RequestID: RequestIDFrom(c),
	}

	var w http.ResponseWriter = c.Writer
	if c.Writer.Written() {
		w = committed{c.Writer.Header()}
	}
	cl := b.Handle(f, req, w)
	apiErrors.WithLabelValues(string(cl.Code), strconv.Itoa(cl.Status)).Inc()
	observability.RecordFailure(c.Request.Context(), string(cl.Code), cl.Status)
	c.Abort()
}

// Recovery converts panics raised downstream into failures. Place it after
// RequestID and AccessLog so the envelope and the access log both carry the
// correlation ID.
func (p *Pipeline) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				p.Fail(c, &resilience.PanicError{Value: rec, Stack: debug.Stack()})
			}
		}()
		c.Next()
	}
}

// NoRoute answers unmatched paths with a 404 envelope.
func (p *Pipeline) NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		p.Fail(c, resilience.NotFound("Cannot "+c.Request.Method+" "+c.Request.URL.Path))
	}
}

// NoMethod answers known paths hit with an unsupported verb.
func (p *Pipeline) NoMethod() gin.HandlerFunc {
	return func(c *gin.Context) {
		p.Fail(c, resilience.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"))
	}
}

// committed swallows the envelope when headers were already sent.
type committed struct{ h http.Header }

func (w committed) Header() http.Header       { return w.h }
func (committed) WriteHeader(int)             {}
func (committed) Write(b []byte) (int, error) { return len(b), nil }
