// Package migrate applies the embedded ledger schema with goose
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/pressly/goose/v3"

	"arledger/internal/platform/logger"
)

//go:embed sql/*.sql
var embedded embed.FS

// Applied describes one migration touched by Up or Down
type Applied struct {
	Version int64
	Path    string
	Empty   bool
}

// Status describes one known migration and whether it ran
type Status struct {
	Version int64
	Path    string
	Applied bool
}

// Migrations returns the embedded migration files rooted at the sql directory
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(fmt.Errorf("migrate: embedded sql: %w", err))
	}
	return sub
}

var openDB = func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) }

func provider(ctx context.Context, dsn string) (*goose.Provider, func(), error) {
	db, err := openDB(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("migrate: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: ping: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, Migrations())
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: provider: %w", err)
	}
	return p, func() { _ = db.Close() }, nil
}

// Up applies every pending migration
func Up(ctx context.Context, dsn string) ([]Applied, error) {
	p, done, err := provider(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer done()

	res, err := p.Up(ctx)
	out := toApplied(res)
	log := logger.Named("migrate")
	for _, a := range out {
		log.Info().Int64("version", a.Version).Str("path", a.Path).Msg("migration applied")
	}
	if err != nil {
		return out, fmt.Errorf("migrate: up: %w", err)
	}
	return out, nil
}

// Down rolls back the most recent migration
func Down(ctx context.Context, dsn string) ([]Applied, error) {
	p, done, err := provider(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer done()

	res, err := p.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: down: %w", err)
	}
	return toApplied([]*goose.MigrationResult{res}), nil
}

// List reports every embedded migration and whether the database has it
func List(ctx context.Context, dsn string) ([]Status, error) {
	p, done, err := provider(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer done()

	st, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: status: %w", err)
	}
	out := make([]Status, 0, len(st))
	for _, s := range st {
		if s == nil || s.Source == nil {
			continue
		}
		out = append(out, Status{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}

func toApplied(res []*goose.MigrationResult) []Applied {
	out := make([]Applied, 0, len(res))
	for _, r := range res {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Applied{Version: r.Source.Version, Path: r.Source.Path, Empty: r.Empty})
	}
	return out
}
