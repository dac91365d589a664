package pg

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"arledger/internal/platform/logger"
)

// QueryEvent describes one statement, Slow is set by the adapter against SlowMs
type QueryEvent struct {
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives every statement the store adapter runs
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer logs statements on root regardless of its level, slow ones as warnings
// only installed when SERVICE_PGSQL_LOG_SQL is on
func Tracer(root logger.Logger) QueryTracer {
	return logTracer{log: root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()}
}

type logTracer struct{ log logger.Logger }

func (l logTracer) OnQuery(_ context.Context, ev QueryEvent) {
	e := l.log.Info()
	if ev.Slow {
		e = l.log.Warn()
	}
	e.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000).
		Bool("slow", ev.Slow).
		Str("sql", oneLine(ev.SQL)).
		Interface("args", ev.Args).
		Err(ev.Err).
		Msg("pg query")
}

// oneLine collapses the indentation of multi line repo queries
func oneLine(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
