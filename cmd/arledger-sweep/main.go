package main

import (
	"cmp"
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arledger/internal/adapters/events"
	"arledger/internal/adapters/records"
	"arledger/internal/modkit"
	"arledger/internal/modkit/module"
	"arledger/internal/platform/config"
	"arledger/internal/platform/logger"
	"arledger/internal/platform/metrics"
	"arledger/internal/platform/store"

	historymod "arledger/internal/services/history/module"
	identitymod "arledger/internal/services/identity/module"
	ledgermod "arledger/internal/services/ledger/module"
)

func main() {
	root := config.New()
	src := root.Prefix("LEDGER_")

	var (
		fRoot     = flag.String("root", src.MayString("SOURCE_DIR", "var/invoices"), "directory of period folders holding extracted records")
		fInterval = flag.Duration("interval", 0, "repeat the sweep at this interval (0 = run once)")
		fRelay    = flag.Bool("relay", true, "relay new history events to the configured sinks after each sweep")
		fReport   = flag.Bool("report", true, "print the sweep report as JSON")
	)
	flag.Parse()

	logOpts := logger.FromEnv()
	logOpts.Service = cmp.Or(logOpts.Service, "arledger-sweep")
	logger.Init(logOpts)
	l := logger.Named("sweep")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.FromConfig(root, "sweep"), store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	if err := st.Guard(ctx); err != nil {
		l.Panic().Err(err).Msg("store not ready")
	}

	deps := modkit.Deps{Cfg: root, PG: st.PG, CH: st.CH, Log: *l, Metrics: metrics.Default()}

	// identity installs itself as the ledger's router so ambiguous records are parked
	lm := ledgermod.New(deps)
	lp := module.MustPortsOf[ledgermod.Ports](lm)
	im := identitymod.New(deps, lp)
	module.Register(lm.Name(), lm.Ports())
	module.Register(im.Name(), im.Ports())

	// events stay in the outbox when no sink is configured
	var relay func(context.Context)
	if *fRelay {
		sinks, closeSinks, err := events.FromConfig(ctx, root, st.CH)
		if err != nil {
			l.Panic().Err(err).Msg("event sinks")
		}
		defer closeSinks()
		if len(sinks) > 0 {
			hm := historymod.New(deps, sinks...)
			module.Register(hm.Name(), hm.Ports())
			hp := module.MustPortsOf[historymod.Ports](hm)
			relay = func(ctx context.Context) {
				rep, err := hp.Relay.Drain(ctx, 0)
				if err != nil {
					l.Error().Err(err).Msg("relay failed")
					return
				}
				l.Info().Int("claimed", rep.Claimed).Int("published", rep.Published).Msg("relay done")
			}
		}
	}

	source := records.NewDir(*fRoot)
	once := func() {
		rep, err := lp.Sweep.Sweep(ctx, source)
		if err != nil {
			l.Error().Err(err).Str("root", *fRoot).Msg("sweep failed")
			return
		}
		if *fReport {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(rep)
		}
		if relay != nil {
			relay(ctx)
		}
	}

	once()
	if *fInterval <= 0 {
		return
	}
	t := time.NewTicker(*fInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("sweep loop stopped")
			return
		case <-t.C:
			once()
		}
	}
}
