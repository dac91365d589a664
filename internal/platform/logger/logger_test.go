package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"info":     zerolog.InfoLevel,
		" WARN ":   zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"":         zerolog.DebugLevel,
		"chatty":   zerolog.DebugLevel,
		"trace":    zerolog.TraceLevel,
		"disabled": zerolog.Disabled,
	}
	for in, want := range cases {
		if got := level(in); got != want {
			t.Errorf("level(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_CALLER", "yes")
	o := FromEnv()
	if o.Level != "warn" || o.Format != "json" || !o.Caller || o.Service != "" {
		t.Fatalf("options %+v", o)
	}
}

func TestRootAndContextFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "info", Format: "json", Service: "arledger-test", Writer: &buf})

	Named("sweep").Info().Msg("named")
	ctx := With(context.Background(), "request_id", "req-1")
	ctx = With(ctx, "actor", "clerk")
	ctx = With(ctx, "ignored", "")
	C(ctx).Info().Msg("scoped")
	C(context.Background()).Debug().Msg("below level")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d: %s", len(lines), buf.String())
	}
	var named, scoped map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &named); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &scoped); err != nil {
		t.Fatal(err)
	}
	if named["component"] != "sweep" || named["service"] != "arledger-test" {
		t.Fatalf("named line %v", named)
	}
	if scoped["request_id"] != "req-1" || scoped["actor"] != "clerk" {
		t.Fatalf("scoped line %v", scoped)
	}
	if _, ok := scoped["ignored"]; ok {
		t.Fatal("empty values must not be logged")
	}
}

func TestWithDoesNotShareBacking(t *testing.T) {
	base := With(context.Background(), "a", "1")
	left := With(base, "b", "2")
	right := With(base, "c", "3")
	lf, _ := left.Value(fieldsKey{}).([][2]string)
	rf, _ := right.Value(fieldsKey{}).([][2]string)
	if lf[1][0] != "b" || rf[1][0] != "c" {
		t.Fatalf("left %v right %v", lf, rf)
	}
}
