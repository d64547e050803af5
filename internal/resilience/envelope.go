package resilience

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

// TimestampLayout renders ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// UnknownRequestID stands in for a missing correlation identifier.
const UnknownRequestID = "unknown"

// Request is the request metadata a boundary needs.
type Request struct {
	Method    string
	URL       string
	RequestID string
}

// ErrorEnvelope is the wire-level error body. It has exactly these fields.
type ErrorEnvelope struct {
	Success   bool   `json:"success"`
	Error     Code   `json:"error"`
	Message   string `json:"message"`
	Details   any    `json:"details"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	Method    string `json:"method"`
	RequestID string `json:"requestId"`
}

// NewEnvelope builds the envelope for a classified failure.
func NewEnvelope(c Classified, req Request, now time.Time) ErrorEnvelope {
	rid := req.RequestID
	if rid == "" {
		rid = UnknownRequestID
	}
	return ErrorEnvelope{
		Success:   false,
		Error:     c.Code,
		Message:   c.Message,
		Details:   c.Details,
		Timestamp: now.UTC().Format(TimestampLayout),
		Path:      req.URL,
		Method:    req.Method,
		RequestID: rid,
	}
}

// Marshal encodes the envelope. When details cannot be encoded as-is they
// are replaced by a sanitized copy, so Marshal only fails if the sanitized
// form itself cannot be encoded, which does not happen for values it builds.
func (e ErrorEnvelope) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err == nil {
		return b, nil
	}
	e.Details = Sanitize(e.Details)
	b, err = json.Marshal(e)
	if err == nil {
		return b, nil
	}
	e.Details = nil
	return json.Marshal(e)
}

const (
	maxSanitizeDepth = 16
	circularMarker   = "[Circular]"
	depthMarker      = "[MaxDepth]"
)

// Sanitize returns a JSON-encodable copy of v. Cycles become "[Circular]",
// values nested deeper than 16 levels become "[MaxDepth]", funcs, chans and
// complex numbers become "[Unserializable <type>]", NaN and infinities become
// their string form and non-string map keys are stringified.
func Sanitize(v any) any {
	s := sanitizer{seen: map[uintptr]bool{}}
	return s.walk(reflect.ValueOf(v), 0)
}

type sanitizer struct {
	seen map[uintptr]bool
}

func (s sanitizer) walk(v reflect.Value, depth int) any {
	if !v.IsValid() {
		return nil
	}
	if depth > maxSanitizeDepth {
		return depthMarker
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return s.walk(v.Elem(), depth)
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return s.enter(v, func() any { return s.walk(v.Elem(), depth+1) })
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		return s.enter(v, func() any { return s.walkMap(v, depth) })
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes()
		}
		return s.enter(v, func() any { return s.walkList(v, depth) })
	case reflect.Array:
		return s.walkList(v, depth)
	case reflect.Struct:
		if v.CanInterface() {
			if m, ok := v.Interface().(json.Marshaler); ok {
				if raw, err := m.MarshalJSON(); err == nil && json.Valid(raw) {
					return json.RawMessage(raw)
				}
			}
		}
		return s.walkStruct(v, depth)
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprint(f)
		}
		return f
	case reflect.Bool:
		return v.Bool()
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	default:
		return "[Unserializable " + v.Type().String() + "]"
	}
}

// enter guards reference values against cycles along the current path.
func (s sanitizer) enter(v reflect.Value, fn func() any) any {
	ptr := v.Pointer()
	if s.seen[ptr] {
		return circularMarker
	}
	s.seen[ptr] = true
	defer delete(s.seen, ptr)
	return fn()
}

func (s sanitizer) walkMap(v reflect.Value, depth int) any {
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		out[fmt.Sprint(iter.Key().Interface())] = s.walk(iter.Value(), depth+1)
	}
	return out
}

func (s sanitizer) walkList(v reflect.Value, depth int) any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = s.walk(v.Index(i), depth+1)
	}
	return out
}

func (s sanitizer) walkStruct(v reflect.Value, depth int) any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag := f.Tag.Get("json"); tag != "" {
			if tag == "-" {
				continue
			}
			if n := tagName(tag); n != "" {
				name = n
			}
		}
		out[name] = s.walk(v.Field(i), depth+1)
	}
	return out
}

func tagName(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[:i]
		}
	}
	return tag
}
