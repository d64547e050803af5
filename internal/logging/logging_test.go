package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel_AllVariants(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"  DeBuG  ", zerolog.DebugLevel}, // case + trim
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel}, // empty -> info
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel}, // alias
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel}, // default
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Fatalf("ParseLevel(%q) -> %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestNew_JSONLinesWithServiceAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	lg := New("warn", false, "svc", &buf)

	lg.Info().Msg("dropped")
	lg.Warn().Msg("kept")

	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "dropped") {
		t.Fatalf("info should be filtered at warn level: %s", out)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("not a JSON line: %q (%v)", out, err)
	}
	if m["service"] != "svc" || m["message"] != "kept" || m["time"] == nil {
		t.Fatalf("unexpected entry: %v", m)
	}
}

func TestNew_PrettyConsole(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", true, "svc", &buf)
	l.Info().Msg("hello")
	out := buf.String()
	if !strings.Contains(out, "hello") || strings.HasPrefix(out, "{") {
		t.Fatalf("expected console output, got %q", out)
	}
}
