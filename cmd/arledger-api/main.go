// @title         arledger API
// @version       0.1.0
// @description   Invoice ledger, identity review, dunning and customer profiles

package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arledger/internal/adapters/artifacts"
	"arledger/internal/adapters/carrier"
	"arledger/internal/adapters/genderize"
	"arledger/internal/adapters/render"
	"arledger/internal/modkit/httpkit"
	"arledger/internal/platform/config"
	"arledger/internal/platform/logger"
	"arledger/internal/platform/metrics"
	phttp "arledger/internal/platform/net/http"
	"arledger/internal/platform/store"

	"arledger/internal/services/api"
)

func main() {
	var (
		fToken = flag.String("issue-token", "", "print a bearer token for this subject and exit")
		fTTL   = flag.Duration("token-ttl", 24*time.Hour, "lifetime of an issued token")
	)
	flag.Parse()

	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	logOpts := logger.FromEnv()
	logOpts.Service = cmp.Or(logOpts.Service, "arledger-api")
	logger.Init(logOpts)
	l := logger.Get()

	if *fToken != "" {
		h, err := httpkit.NewHS256(apiCfg.MustString("JWT_SECRET"), apiCfg.MayString("JWT_ISSUER", "arledger"))
		if err != nil {
			l.Fatal().Err(err).Msg("jwt")
		}
		tok, err := h.Issue(*fToken, *fTTL)
		if err != nil {
			l.Fatal().Err(err).Msg("issue token")
		}
		fmt.Println(tok)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.FromConfig(root, "api"), store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

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
	lookup, err := genderize.FromConfig(root)
	if err != nil {
		l.Panic().Err(err).Msg("genderize")
	}

	// reads CORE_API_ADDR, CORE_API_READ_HEADER_TIMEOUT and CORE_API_SHUTDOWN_GRACE
	srv := phttp.NewServer(apiCfg)

	err = api.Mount(srv.Router(), api.Options{
		Config:         root,
		Store:          st,
		Logger:         l,
		Metrics:        metrics.Default(),
		Renderer:       rnd,
		Artifacts:      art,
		Carrier:        car,
		Lookup:         lookup,
		EnableSwagger:  apiCfg.MayBool("SWAGGER", false),
		EnableProfiler: apiCfg.MayBool("PROFILER", false),
	})
	if err != nil {
		l.Panic().Err(err).Msg("api.Mount failed")
	}

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
