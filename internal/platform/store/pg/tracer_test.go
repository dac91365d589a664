package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestOneLine(t *testing.T) {
	got := oneLine("\n\t\tSELECT id\n\t\tFROM invoices\n\t\tWHERE  period = $1 ")
	if got != "SELECT id FROM invoices WHERE period = $1" {
		t.Fatalf("got %q", got)
	}
}

func TestTracerLevels(t *testing.T) {
	var buf bytes.Buffer
	// root at error level, the tracer still logs
	tr := Tracer(zerolog.New(&buf).Level(zerolog.ErrorLevel))

	type line struct {
		Level     string  `json:"level"`
		ElapsedMS float64 `json:"elapsed_ms"`
		SQL       string  `json:"sql"`
		Error     string  `json:"error"`
		Component string  `json:"component"`
	}
	read := func() line {
		t.Helper()
		var l line
		if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &l); err != nil {
			t.Fatalf("decode %q: %v", buf.String(), err)
		}
		buf.Reset()
		return l
	}

	tr.OnQuery(context.Background(), QueryEvent{SQL: "SELECT 1", ElapsedUS: 2500, Err: errors.New("boom")})
	l := read()
	if l.Level != "info" || l.ElapsedMS != 2.5 || l.Error != "boom" || l.Component != "pg" {
		t.Fatalf("info line %+v", l)
	}

	tr.OnQuery(context.Background(), QueryEvent{SQL: "SELECT\n pg_sleep(1)", Slow: true})
	if l := read(); l.Level != "warn" || l.SQL != "SELECT pg_sleep(1)" {
		t.Fatalf("slow line %+v", l)
	}
}
