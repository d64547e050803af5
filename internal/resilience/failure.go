package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"runtime/debug"

	sqlitedriver "github.com/glebarez/go-sqlite"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// Kind tags the closed set of failure shapes the classifier understands.
type Kind int

const (
	// KindUnknown is anything that is not an error: strings, numbers, maps,
	// slices or nil raised through panic.
	KindUnknown Kind = iota
	// KindHTTP is a protocol-level failure that already carries a status.
	KindHTTP
	// KindDatabase is a failure originating from the persistence layer.
	KindDatabase
	// KindGeneric is any other error value.
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindDatabase:
		return "database"
	case KindGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// Failure is the tagged variant built by Capture. Exactly one of HTTP, DB or
// Err is meaningful for the corresponding Kind; Value holds the raw value
// for KindUnknown.
type Failure struct {
	Kind  Kind
	HTTP  *HTTPError
	DB    *DatabaseError
	Err   error
	Value any
	// Stack is set for KindGeneric only.
	Stack string
}

// HTTPError is a protocol-level failure. Response is either a string or a
// map[string]any that may carry "message" and "details" keys.
type HTTPError struct {
	Status   int
	Message  string
	Response any
}

// defaultHTTPMessage is the top-level message of an HTTPError whose response
// carries no message of its own.
const defaultHTTPMessage = "Http Exception"

// NewHTTPError builds an HTTPError. The top-level message is taken from a
// string response or from a non-empty "message" key of a map response.
func NewHTTPError(status int, response any) *HTTPError {
	msg := defaultHTTPMessage
	switch r := response.(type) {
	case string:
		msg = r
	case map[string]any:
		if s, ok := r["message"].(string); ok && s != "" {
			msg = s
		}
	}
	return &HTTPError{Status: status, Message: msg, Response: response}
}

func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Is matches another *HTTPError by status and message, so a copy of
// ErrRequestTimeout still satisfies errors.Is.
func (e *HTTPError) Is(target error) bool {
	t, ok := target.(*HTTPError)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Status == e.Status && t.Message == e.Message
}

const msgRequestTimeout = "Request timeout"

// ErrRequestTimeout is the errors.Is target for the failure Guard raises when
// the deadline fires before the handler finishes. Guard returns a fresh copy
// each time, so changes to this value never reach an envelope.
var ErrRequestTimeout = NewHTTPError(http.StatusRequestTimeout, msgRequestTimeout)

// RequestTimeout returns a new 408 "Request timeout" failure.
func RequestTimeout() *HTTPError {
	return NewHTTPError(http.StatusRequestTimeout, msgRequestTimeout)
}

// withDetails builds a structured response carrying message and, when non-nil,
// details.
func withDetails(status int, msg string, details any) *HTTPError {
	body := map[string]any{"message": msg}
	if details != nil {
		body["details"] = details
	}
	return NewHTTPError(status, body)
}

// BadRequest returns a 400 HTTPError.
func BadRequest(msg string, details any) *HTTPError {
	return withDetails(http.StatusBadRequest, msg, details)
}

// Unauthorized returns a 401 HTTPError.
func Unauthorized(msg string) *HTTPError { return NewHTTPError(http.StatusUnauthorized, msg) }

// Forbidden returns a 403 HTTPError.
func Forbidden(msg string) *HTTPError { return NewHTTPError(http.StatusForbidden, msg) }

// NotFound returns a 404 HTTPError.
func NotFound(msg string) *HTTPError { return NewHTTPError(http.StatusNotFound, msg) }

// Conflict returns a 409 HTTPError.
func Conflict(msg string, details any) *HTTPError {
	return withDetails(http.StatusConflict, msg, details)
}

// Validation returns a 422 HTTPError with structured details.
func Validation(msg string, details any) *HTTPError {
	return withDetails(http.StatusUnprocessableEntity, msg, details)
}

// TooManyRequests returns a 429 HTTPError.
func TooManyRequests(msg string) *HTTPError { return NewHTTPError(http.StatusTooManyRequests, msg) }

// DatabaseError marks an error as coming from the persistence layer. Its
// Error text is the raw driver message.
type DatabaseError struct {
	Op  string
	Err error
}

// Database wraps err as a DatabaseError. It returns nil for a nil err and
// leaves an existing DatabaseError untouched.
func Database(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DatabaseError
	if errors.As(err, &de) {
		return err
	}
	return &DatabaseError{Op: op, Err: err}
}

func (e *DatabaseError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *DatabaseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PanicError carries a value recovered from a panic together with the stack
// of the panicking goroutine.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// gormErrors are the persistence failures gorm reports through sentinels.
var gormErrors = []error{
	gorm.ErrRecordNotFound,
	gorm.ErrDuplicatedKey,
	gorm.ErrForeignKeyViolated,
	gorm.ErrInvalidTransaction,
	gorm.ErrInvalidData,
	gorm.ErrInvalidField,
	gorm.ErrMissingWhereClause,
	gorm.ErrPrimaryKeyRequired,
}

// Capture adapts a raised value of any shape into a Failure. It never panics.
func Capture(v any) Failure {
	var stack string
	if pe, ok := v.(*PanicError); ok {
		v, stack = pe.Value, string(pe.Stack)
	}

	err, isErr := v.(error)
	if !isErr || err == nil {
		return Failure{Kind: KindUnknown, Value: v}
	}
	var nilPanic *runtime.PanicNilError
	if errors.As(err, &nilPanic) {
		return Failure{Kind: KindUnknown, Value: nil}
	}

	// A typed nil pointer inside a non-nil error carries nothing to classify.
	var he *HTTPError
	if errors.As(err, &he) {
		if he == nil {
			return Failure{Kind: KindUnknown, Value: err}
		}
		return Failure{Kind: KindHTTP, HTTP: he, Err: err}
	}
	if de, ok := asDatabase(err); ok {
		if de == nil {
			return Failure{Kind: KindUnknown, Value: err}
		}
		return Failure{Kind: KindDatabase, DB: de, Err: err}
	}

	if st := stackOf(err); st != "" {
		stack = st
	}
	if stack == "" {
		stack = string(debug.Stack())
	}
	return Failure{Kind: KindGeneric, Err: err, Stack: stack}
}

// asDatabase reports whether err is a persistence failure. The returned
// pointer is nil when the chain holds a nil *DatabaseError.
func asDatabase(err error) (*DatabaseError, bool) {
	var de *DatabaseError
	if errors.As(err, &de) {
		return de, true
	}
	var se *sqlitedriver.Error
	if errors.As(err, &se) {
		if se == nil {
			return nil, true
		}
		return &DatabaseError{Err: err}, true
	}
	for _, sentinel := range gormErrors {
		if errors.Is(err, sentinel) {
			return &DatabaseError{Err: err}, true
		}
	}
	return nil, false
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// stackOf renders the deepest pkg/errors stack trace in the chain.
func stackOf(err error) string {
	var out string
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			out = fmt.Sprintf("%+v", st.StackTrace())
		}
	}
	return out
}
