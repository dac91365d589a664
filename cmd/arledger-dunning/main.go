package main

import (
	"cmp"
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"arledger/internal/adapters/artifacts"
	"arledger/internal/adapters/carrier"
	"arledger/internal/adapters/events"
	"arledger/internal/adapters/render"
	"arledger/internal/core/dunning"
	"arledger/internal/modkit"
	"arledger/internal/modkit/module"
	"arledger/internal/platform/config"
	"arledger/internal/platform/logger"
	"arledger/internal/platform/metrics"
	"arledger/internal/platform/store"

	ddom "arledger/internal/services/dunning/domain"
	dunningmod "arledger/internal/services/dunning/module"
	historymod "arledger/internal/services/history/module"
)

func main() {
	var (
		fMode   = flag.String("mode", "recommendations", "recommendations | create | dispatch | balance | relay")
		fSelect = flag.String("select", "", "create: comma separated invoice_id:level pairs, empty takes every recommendation")
		fAsOf   = flag.String("as-of", "", "recommendations and create: reference date YYYY-MM-DD")

		fColor      = flag.String("color", "", "dispatch: 1 or 4")
		fPrintMode  = flag.String("print-mode", "", "dispatch: simplex or duplex")
		fShipping   = flag.String("shipping", "", "dispatch: national or international")
		fRegistered = flag.String("registered", "", "dispatch: r1 or r2")
	)
	flag.Parse()

	root := config.New()
	logOpts := logger.FromEnv()
	logOpts.Service = cmp.Or(logOpts.Service, "arledger-dunning")
	logger.Init(logOpts)
	l := logger.Named("dunning")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var asOf time.Time
	if *fAsOf != "" {
		t, err := time.Parse(time.DateOnly, *fAsOf)
		if err != nil {
			l.Panic().Err(err).Msg("bad -as-of")
		}
		asOf = t
	}

	st, err := store.Open(ctx, store.FromConfig(root, "dunning"), store.WithLogger(*l))
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

	if *fMode == "relay" {
		sinks, closeSinks, err := events.FromConfig(ctx, root, st.CH)
		if err != nil {
			l.Panic().Err(err).Msg("event sinks")
		}
		defer closeSinks()
		if len(sinks) == 0 {
			l.Warn().Msg("no event sinks configured, nothing to relay to")
			return
		}
		hm := historymod.New(deps, sinks...)
		module.Register(hm.Name(), hm.Ports())
		rep, err := module.MustPortsOf[historymod.Ports](hm).Relay.Drain(ctx, 0)
		if err != nil {
			l.Fatal().Err(err).Msg("relay failed")
		}
		emit(rep)
		return
	}

	rnd, err := render.FromConfig(root)
	if err != nil {
		l.Panic().Err(err).Msg("renderer")
	}
	if c, ok := rnd.(render.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	art, err := artifacts.FromConfig(ctx, root)
	if err != nil {
		l.Panic().Err(err).Msg("artifact store")
	}
	car, err := carrier.FromConfig(root)
	if err != nil {
		l.Panic().Err(err).Msg("carrier")
	}

	dm := dunningmod.New(deps, rnd, art, car)
	module.Register(dm.Name(), dm.Ports())
	port := module.MustPortsOf[dunningmod.Ports](dm).Dunning

	switch *fMode {
	case "recommendations":
		recs, err := port.Recommendations(ctx, asOf)
		if err != nil {
			l.Fatal().Err(err).Msg("recommendations failed")
		}
		emit(recs)

	case "create":
		sels, err := parseSelections(*fSelect)
		if err != nil {
			l.Panic().Err(err).Msg("bad -select")
		}
		if len(sels) == 0 {
			recs, err := port.Recommendations(ctx, asOf)
			if err != nil {
				l.Fatal().Err(err).Msg("recommendations failed")
			}
			for _, r := range recs {
				if r.Recommended != nil {
					sels = append(sels, ddom.Selection{InvoiceID: r.InvoiceID, Level: *r.Recommended})
				}
			}
			if len(sels) == 0 {
				l.Info().Msg("no invoice is due for a reminder")
				return
			}
		}
		rep, err := port.CreateReminders(ctx, sels)
		if err != nil {
			l.Fatal().Err(err).Msg("create reminders failed")
		}
		emit(rep)

	case "dispatch":
		rep, err := port.Dispatch(ctx, ddom.PrintSpec{
			Color:      *fColor,
			Mode:       *fPrintMode,
			Shipping:   *fShipping,
			Registered: *fRegistered,
		})
		if err != nil {
			l.Fatal().Err(err).Msg("dispatch failed")
		}
		emit(rep)

	case "balance":
		b, err := port.CarrierBalance(ctx)
		if err != nil {
			l.Fatal().Err(err).Msg("balance failed")
		}
		emit(b)

	default:
		l.Panic().Str("mode", *fMode).Msg("unknown -mode (expected: recommendations | create | dispatch | balance | relay)")
	}
}

// parseSelections reads "12:0,15:1"
func parseSelections(s string) ([]ddom.Selection, error) {
	var out []ddom.Selection
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, lvl, ok := strings.Cut(part, ":")
		if !ok {
			return nil, strconv.ErrSyntax
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, err
		}
		lv, err := strconv.Atoi(lvl)
		if err != nil {
			return nil, err
		}
		out = append(out, ddom.Selection{InvoiceID: n, Level: dunning.Level(lv)})
	}
	return out, nil
}

func emit(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
