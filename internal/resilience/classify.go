package resilience

import "net/http"

// Code is a stable, machine-readable error identifier returned to clients.
type Code string

// The closed set of codes emitted by the pipeline.
const (
	CodeBadRequest        Code = "BAD_REQUEST"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeRequestTimeout    Code = "REQUEST_TIMEOUT"
	CodeConflict          Code = "CONFLICT"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
	CodeDatabase          Code = "DATABASE_ERROR"
	CodeUnknown           Code = "UNKNOWN_ERROR"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeHTTP              Code = "HTTP_ERROR"
)

// Mode selects which boundary is classifying. The two modes differ only in
// the fallback code for unmapped statuses and in how a structured response
// without a message is labelled.
type Mode int

const (
	// ModeGeneric is the catch-all boundary.
	ModeGeneric Mode = iota
	// ModeTyped only ever sees protocol-level errors.
	ModeTyped
)

// Fixed messages.
const (
	msgDatabase = "Database operation failed"
	msgInternal = "Internal server error"
)

var statusCodes = map[int]Code{
	http.StatusBadRequest:          CodeBadRequest,
	http.StatusUnauthorized:        CodeUnauthorized,
	http.StatusForbidden:           CodeForbidden,
	http.StatusNotFound:            CodeNotFound,
	http.StatusRequestTimeout:      CodeRequestTimeout,
	http.StatusConflict:            CodeConflict,
	http.StatusUnprocessableEntity: CodeValidation,
	http.StatusTooManyRequests:     CodeRateLimitExceeded,
}

// CodeForStatus maps an HTTP status to its error code. Unmapped statuses map
// to INTERNAL_ERROR in generic mode and HTTP_ERROR in typed mode.
func CodeForStatus(status int, mode Mode) Code {
	if c, ok := statusCodes[status]; ok {
		return c
	}
	if mode == ModeTyped {
		return CodeHTTP
	}
	return CodeInternal
}

// Classified is the outcome of classifying one failure.
type Classified struct {
	Status  int
	Code    Code
	Message string
	Details any
}

// Classify maps f to a status, code, message and details. It is a pure
// function: classifying the same failure twice yields equal values.
func Classify(f Failure, mode Mode) Classified {
	switch f.Kind {
	case KindHTTP:
		return classifyHTTP(f.HTTP, mode)
	case KindDatabase:
		return Classified{
			Status:  http.StatusBadRequest,
			Code:    CodeDatabase,
			Message: msgDatabase,
			Details: driverMessage(f.DB),
		}
	case KindGeneric:
		msg, ok := errorText(f.Err)
		if !ok {
			return internalError()
		}
		return Classified{Status: http.StatusInternalServerError, Code: CodeUnknown, Message: msg}
	default:
		return internalError()
	}
}

func internalError() Classified {
	return Classified{Status: http.StatusInternalServerError, Code: CodeInternal, Message: msgInternal}
}

// errorText calls err.Error, reporting false when that method panics.
func errorText(err error) (msg string, ok bool) {
	if err == nil {
		return "", true
	}
	defer func() {
		if recover() != nil {
			msg, ok = "", false
		}
	}()
	return err.Error(), true
}

func classifyHTTP(e *HTTPError, mode Mode) Classified {
	out := Classified{Status: e.Status, Code: CodeForStatus(e.Status, mode)}
	switch r := e.Response.(type) {
	case string:
		out.Message = r
		return out
	case map[string]any:
		if s, ok := r["message"].(string); ok && s != "" {
			out.Message = s
		} else {
			out.Message = fallbackMessage(e, mode)
		}
		if d, ok := r["details"]; ok {
			out.Details = d
		}
		return out
	default:
		out.Message = fallbackMessage(e, mode)
		return out
	}
}

// fallbackMessage labels a structured response that carries no message.
func fallbackMessage(e *HTTPError, mode Mode) string {
	if mode == ModeTyped {
		return http.StatusText(e.Status)
	}
	return e.Message
}

func driverMessage(de *DatabaseError) string {
	if de == nil {
		return ""
	}
	msg, _ := errorText(de.Err)
	return msg
}
