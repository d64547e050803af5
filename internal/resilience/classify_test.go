package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

func TestClassify_MappedStatuses_BothModes(t *testing.T) {
	cases := map[int]Code{
		400: CodeBadRequest,
		401: CodeUnauthorized,
		403: CodeForbidden,
		404: CodeNotFound,
		408: CodeRequestTimeout,
		409: CodeConflict,
		422: CodeValidation,
		429: CodeRateLimitExceeded,
	}
	for status, want := range cases {
		for _, mode := range []Mode{ModeGeneric, ModeTyped} {
			got := Classify(Capture(NewHTTPError(status, "m")), mode)
			if got.Code != want || got.Status != status {
				t.Fatalf("status %d mode %d: got %+v; want code %s", status, mode, got, want)
			}
		}
	}
}

func TestClassify_UnmappedStatus_DiffersByMode(t *testing.T) {
	for _, status := range []int{418, 500, 502, 503, 405, 299} {
		f := Capture(NewHTTPError(status, "x"))
		g := Classify(f, ModeGeneric)
		ty := Classify(f, ModeTyped)
		if g.Code != CodeInternal || g.Status != status {
			t.Fatalf("generic %d: %+v", status, g)
		}
		if ty.Code != CodeHTTP || ty.Status != status {
			t.Fatalf("typed %d: %+v", status, ty)
		}
	}
}

func TestClassify_HTTPStringPayload(t *testing.T) {
	got := Classify(Capture(NewHTTPError(http.StatusNotFound, "User not found")), ModeGeneric)
	want := Classified{Status: 404, Code: CodeNotFound, Message: "User not found"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v; want %+v", got, want)
	}
}

func TestClassify_HTTPStructuredPayload(t *testing.T) {
	got := Classify(Capture(Validation("Validation failed", map[string]any{"field": "email"})), ModeTyped)
	if got.Status != 422 || got.Code != CodeValidation || got.Message != "Validation failed" {
		t.Fatalf("unexpected: %+v", got)
	}
	if !reflect.DeepEqual(got.Details, map[string]any{"field": "email"}) {
		t.Fatalf("details = %#v", got.Details)
	}
}

func TestClassify_HTTPStructuredWithoutMessage_Fallbacks(t *testing.T) {
	e := NewHTTPError(http.StatusForbidden, map[string]any{"details": []any{"a"}})

	g := Classify(Capture(e), ModeGeneric)
	if g.Message != defaultHTTPMessage {
		t.Fatalf("generic fallback = %q; want top-level message", g.Message)
	}
	ty := Classify(Capture(e), ModeTyped)
	if ty.Message != "Forbidden" {
		t.Fatalf("typed fallback = %q; want status name", ty.Message)
	}

	// empty message counts as missing
	e2 := NewHTTPError(http.StatusTeapot, map[string]any{"message": ""})
	if got := Classify(Capture(e2), ModeTyped).Message; got != "I'm a teapot" {
		t.Fatalf("typed fallback for 418 = %q", got)
	}
}

func TestClassify_DetailsPassThroughUnmodified(t *testing.T) {
	for _, d := range []any{map[string]any{}, []any{1, "two"}, true, 3.5, "text", nil} {
		e := NewHTTPError(400, map[string]any{"message": "bad", "details": d})
		got := Classify(Capture(e), ModeGeneric)
		if !reflect.DeepEqual(got.Details, d) {
			t.Fatalf("details %#v became %#v", d, got.Details)
		}
	}
}

func TestClassify_DatabaseError_HidesDriverMessage(t *testing.T) {
	f := Capture(fmt.Errorf("create item: %w", &DatabaseError{Op: "insert", Err: errors.New("E11000 duplicate key")}))
	if f.Kind != KindDatabase {
		t.Fatalf("kind = %v", f.Kind)
	}
	got := Classify(f, ModeGeneric)
	want := Classified{Status: 400, Code: CodeDatabase, Message: "Database operation failed", Details: "E11000 duplicate key"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v; want %+v", got, want)
	}
}

func TestCapture_GormSentinelIsDatabase(t *testing.T) {
	f := Capture(fmt.Errorf("lookup: %w", gorm.ErrDuplicatedKey))
	if f.Kind != KindDatabase {
		t.Fatalf("kind = %v; want database", f.Kind)
	}
	if got := Classify(f, ModeGeneric).Details; got != "lookup: duplicated key not allowed" {
		t.Fatalf("details = %v", got)
	}
}

func TestCapture_DatabaseIsByTypeNotMessage(t *testing.T) {
	f := Capture(errors.New("database connection refused"))
	if f.Kind != KindGeneric {
		t.Fatalf("message content must not select database kind, got %v", f.Kind)
	}
}

func TestClassify_GenericError(t *testing.T) {
	got := Classify(Capture(errors.New("something broke")), ModeGeneric)
	want := Classified{Status: 500, Code: CodeUnknown, Message: "something broke"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v", got)
	}

	empty := Classify(Capture(errors.New("")), ModeGeneric)
	if empty.Code != CodeUnknown || empty.Message != "" {
		t.Fatalf("empty message error: %+v", empty)
	}
}

func TestClassify_UnknownShapes(t *testing.T) {
	want := Classified{Status: 500, Code: CodeInternal, Message: "Internal server error"}
	for _, v := range []any{"boom", 42, map[string]any{"a": 1}, []int{1}, nil, &PanicError{Value: "boom"}} {
		f := Capture(v)
		if f.Kind != KindUnknown {
			t.Fatalf("%#v: kind = %v", v, f.Kind)
		}
		if got := Classify(f, ModeGeneric); !reflect.DeepEqual(got, want) {
			t.Fatalf("%#v: got %+v", v, got)
		}
	}
}

func TestCapture_PanicWithErrorKeepsIdentityAndStack(t *testing.T) {
	orig := errors.New("exploded")
	f := Capture(&PanicError{Value: orig, Stack: []byte("goroutine 7 [running]")})
	if f.Kind != KindGeneric || f.Err != orig {
		t.Fatalf("unexpected failure: %+v", f)
	}
	if f.Stack != "goroutine 7 [running]" {
		t.Fatalf("stack = %q", f.Stack)
	}
}

func TestCapture_PkgErrorsStackTrace(t *testing.T) {
	f := Capture(pkgerrors.New("with stack"))
	if f.Kind != KindGeneric {
		t.Fatalf("kind = %v", f.Kind)
	}
	if !strings.Contains(f.Stack, "TestCapture_PkgErrorsStackTrace") {
		t.Fatalf("stack should name the origin, got:\n%s", f.Stack)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	inputs := []any{
		Validation("v", map[string]any{"f": []any{"x"}}),
		&DatabaseError{Err: errors.New("dup")},
		errors.New("e"),
		"boom",
	}
	for _, in := range inputs {
		f := Capture(in)
		a, b := Classify(f, ModeGeneric), Classify(f, ModeGeneric)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("classification not idempotent for %#v: %+v vs %+v", in, a, b)
		}
	}
}

func TestHTTPError_IsMatchesTimeoutCopies(t *testing.T) {
	cp := *ErrRequestTimeout
	if !errors.Is(&cp, ErrRequestTimeout) {
		t.Fatal("copy of ErrRequestTimeout should match")
	}
	if errors.Is(NotFound("x"), ErrRequestTimeout) {
		t.Fatal("404 must not match timeout")
	}
}

func TestDatabase_WrapsOnceAndNil(t *testing.T) {
	if Database("op", nil) != nil {
		t.Fatal("nil in, nil out")
	}
	once := Database("op", errors.New("x"))
	if twice := Database("other", once); twice != once {
		t.Fatal("already-wrapped errors must be returned as-is")
	}
}
