package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"arledger/internal/platform/store/pg"
)

// pgxQuerier is what a pool and a transaction have in common
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// traced runs statements on q and reports each one to the tracer
type traced struct {
	q      pgxQuerier
	tracer pg.QueryTracer
	slow   time.Duration // negative disables slow flagging
}

func (t traced) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := t.q.Exec(ctx, sql, args...)
	t.report(ctx, sql, args, start, err)
	return ct, err
}

// Query reports when the result set opens, scan time is not included
func (t traced) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := t.q.Query(ctx, sql, args...)
	t.report(ctx, sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return pgxRows{rs}, nil
}

// QueryRow reports after Scan so the scan error is part of the event
func (t traced) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	return scanHook{row: t.q.QueryRow(ctx, sql, args...), done: func(err error) {
		t.report(ctx, sql, args, start, err)
	}}
}

func (t traced) report(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if t.tracer == nil {
		return
	}
	elapsed := time.Since(start)
	t.tracer.OnQuery(ctx, pg.QueryEvent{
		SQL:       sql,
		Args:      args,
		ElapsedUS: elapsed.Microseconds(),
		Err:       err,
		Slow:      t.slow >= 0 && elapsed >= t.slow,
	})
}

// pgAdapter is the TxRunner handed to repositories
type pgAdapter struct {
	traced
	p *pg.PG
}

func newPGAdapter(p *pg.PG) *pgAdapter {
	return &pgAdapter{
		traced: traced{q: p.Pool, tracer: p.Tracer, slow: time.Duration(p.SlowMs) * time.Millisecond},
		p:      p,
	}
}

// Ping goes through the traced path so readiness checks show up in the sql log
func (a *pgAdapter) Ping(ctx context.Context) error {
	if a == nil || a.p == nil {
		return errors.New("pg: not open")
	}
	var one int
	return a.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (a *pgAdapter) Close() error {
	a.p.Close()
	return nil
}

// Tx commits when fn returns nil and rolls back otherwise
func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	return pgx.BeginFunc(ctx, a.p.Pool, func(tx pgx.Tx) error {
		return fn(traced{q: tx, tracer: a.tracer, slow: a.slow})
	})
}

type scanHook struct {
	row  pgx.Row
	done func(error)
}

func (s scanHook) Scan(dst ...any) error {
	err := s.row.Scan(dst...)
	s.done(err)
	return err
}

type pgxRows struct{ pgx.Rows }

func (r pgxRows) Columns() []string {
	fds := r.FieldDescriptions()
	out := make([]string, len(fds))
	for i, fd := range fds {
		out[i] = fd.Name
	}
	return out
}
