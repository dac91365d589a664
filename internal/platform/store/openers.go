package store

import (
	"context"
	"fmt"
	"time"

	"arledger/internal/platform/logger"
	chx "arledger/internal/platform/store/ch"
	"arledger/internal/platform/store/pg"
)

// boot retry defaults, used when PGConfig leaves them zero
const (
	defaultConnectRetries = 20
	defaultPingTimeout    = 3 * time.Second
	firstBackoff          = 150 * time.Millisecond
	maxBackoff            = 2 * time.Second
)

// waitReady pings until one succeeds or attempts run out, doubling the pause up to maxBackoff
func waitReady(ctx context.Context, log logger.Logger, name string, attempts int, timeout time.Duration, ping func(context.Context) error) error {
	attempts = orDefault(attempts, defaultConnectRetries)
	timeout = orDefault(timeout, defaultPingTimeout)

	var err error
	pause := firstBackoff
	for i := 1; ; i++ {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err = ping(pctx)
		cancel()
		if err == nil {
			return nil
		}
		if i == attempts {
			return fmt.Errorf("%s not ready after %d attempts: %w", name, attempts, err)
		}
		log.Warn().Err(err).Str("backend", name).Int("attempt", i).Dur("retry_in", pause).Msg("backend not ready")

		t := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		pause = min(pause*2, maxBackoff)
	}
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// openPG opens the pool and waits for it before wrapping it with the sql adapter
func openPG(ctx context.Context, cfg Config, log logger.Logger) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(log)
	}
	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
		AppName:  cfg.AppName,
	}, tracer, nil)
	if err != nil {
		return nil, err
	}
	// the pool is pinged directly so boot noise stays out of the sql trace
	if err := waitReady(ctx, log, "postgres", cfg.PG.ConnectRetries, cfg.PG.PingTimeout, p.Pool.Ping); err != nil {
		p.Close()
		return nil, err
	}
	return newPGAdapter(p), nil
}

// openCH connects lazily, the driver dials on first use
func openCH(ctx context.Context, cfg Config) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, ClientRole: cfg.CH.ClientRole, ClientTag: cfg.CH.ClientTag})
	if err != nil {
		return nil, err
	}
	return chSeam{c}, nil
}
