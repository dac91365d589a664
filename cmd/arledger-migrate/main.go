package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"arledger/internal/platform/config"
	"arledger/internal/platform/logger"
	"arledger/internal/platform/migrate"
)

func main() {
	fCmd := flag.String("cmd", "up", "up | down | status")
	flag.Parse()

	logOpts := logger.FromEnv()
	logOpts.Service = cmp.Or(logOpts.Service, "arledger-migrate")
	logger.Init(logOpts)
	l := logger.Named("migrate")
	dsn := config.New().Prefix("SERVICE_PGSQL_").MustString("DBURL")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *fCmd {
	case "up":
		applied, err := migrate.Up(ctx, dsn)
		if err != nil {
			l.Fatal().Err(err).Msg("migrate up failed")
		}
		l.Info().Int("applied", len(applied)).Msg("schema up to date")

	case "down":
		rolled, err := migrate.Down(ctx, dsn)
		if err != nil {
			l.Fatal().Err(err).Msg("migrate down failed")
		}
		for _, a := range rolled {
			l.Info().Int64("version", a.Version).Str("path", a.Path).Msg("rolled back")
		}

	case "status":
		list, err := migrate.List(ctx, dsn)
		if err != nil {
			l.Fatal().Err(err).Msg("migrate status failed")
		}
		for _, s := range list {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Printf("%-8s %5d  %s\n", state, s.Version, s.Path)
		}

	default:
		l.Panic().Str("cmd", *fCmd).Msg("unknown -cmd (expected: up | down | status)")
	}
}
