package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"arledger/internal/platform/testkit"
)

func TestOpenBadURL(t *testing.T) {
	if _, err := Open(context.Background(), Config{URL: "://bad"}, nil, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestOpenAppliesConfig(t *testing.T) {
	testkit.Serial(t)

	var seen *pgxpool.Config
	testkit.Swap(t, &newPool, func(_ context.Context, pc *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = pc
		return &pgxpool.Pool{}, nil
	})

	cfg := Config{URL: "postgres://u:p@db:5432/ledger?sslmode=disable", MaxConns: 6, SlowMs: 250, AppName: "arledger-sweep"}
	tuned := false
	p, err := Open(context.Background(), cfg, nil, func(*pgxpool.Config) { tuned = true })
	if err != nil {
		t.Fatal(err)
	}
	if !tuned || seen.MaxConns != 6 || seen.ConnConfig.RuntimeParams["application_name"] != "arledger-sweep" {
		t.Fatalf("tuned=%v max=%d params=%v", tuned, seen.MaxConns, seen.ConnConfig.RuntimeParams)
	}
	if p.SlowMs != 250 || p.Pool == nil {
		t.Fatalf("pg %+v", p)
	}
}

func TestOpenPoolError(t *testing.T) {
	testkit.Serial(t)
	boom := errors.New("boom")
	testkit.Swap(t, &newPool, func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) { return nil, boom })

	if _, err := Open(context.Background(), Config{URL: "postgres://u:p@db:5432/ledger"}, nil, nil); !errors.Is(err, boom) {
		t.Fatalf("err %v", err)
	}
}

func TestCloseNilSafe(t *testing.T) {
	var p *PG
	p.Close()
	(&PG{}).Close()
}
