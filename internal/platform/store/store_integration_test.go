//go:build integration_pg

package store_test

import (
	"context"
	"errors"
	"testing"

	"arledger/internal/platform/migrate/pgtest"
	"arledger/internal/platform/store"
)

func TestTxCommitAndRollback(t *testing.T) {
	st := pgtest.Start(t)
	ctx := context.Background()

	if _, err := st.PG.Exec(ctx, `CREATE TABLE notes (id int PRIMARY KEY, body text)`); err != nil {
		t.Fatal(err)
	}

	err := st.PG.Tx(ctx, func(q store.RowQuerier) error {
		return store.ExecOne(ctx, q, `INSERT INTO notes VALUES (1, 'kept')`)
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	boom := errors.New("boom")
	err = st.PG.Tx(ctx, func(q store.RowQuerier) error {
		if err := store.ExecOne(ctx, q, `INSERT INTO notes VALUES (2, 'dropped')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("rollback err %v", err)
	}

	n, err := store.Scalar[int64](ctx, st.PG, `SELECT count(*) FROM notes`)
	if err != nil || n != 1 {
		t.Fatalf("count %d err %v", n, err)
	}
	body, err := store.One(ctx, st.PG, func(r store.Row) (string, error) {
		var s string
		return s, r.Scan(&s)
	}, `SELECT body FROM notes WHERE id = 1`)
	if err != nil || body != "kept" {
		t.Fatalf("body %q err %v", body, err)
	}

	if err := st.Guard(ctx); err != nil {
		t.Fatalf("guard: %v", err)
	}
}
