package repokit

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"arledger/internal/platform/store"
)

type recQ struct {
	store.RowQuerier
	stmts []string
}

func (r *recQ) Exec(_ context.Context, sql string, _ ...any) (store.CommandTag, error) {
	r.stmts = append(r.stmts, sql)
	return nil, nil
}

type recTx struct {
	recQ
	txs int
}

func (r *recTx) Tx(_ context.Context, fn func(Queryer) error) error {
	r.txs++
	return fn(&r.recQ)
}

func TestWithBeginHooks(t *testing.T) {
	inner := &recTx{}
	if WithBeginHooks(inner) != TxRunner(inner) {
		t.Fatal("no hooks should return inner unchanged")
	}

	tx := WithBeginHooks(inner, StatementTimeout(1500*time.Millisecond))
	err := tx.Tx(context.Background(), func(q Queryer) error {
		_, err := q.Exec(context.Background(), "UPDATE invoices SET uncollectible = true")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"SET LOCAL statement_timeout = 1500", "UPDATE invoices SET uncollectible = true"}
	if !slices.Equal(inner.stmts, want) {
		t.Fatalf("stmts %q", inner.stmts)
	}

	_, _ = tx.Exec(context.Background(), "SELECT 1")
	if inner.txs != 1 || inner.stmts[2] != "SELECT 1" {
		t.Fatal("plain Exec should bypass hooks")
	}
}

func TestBeginHookErrorSkipsBody(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	tx := WithBeginHooks(&recTx{}, func(context.Context, Queryer) error { return boom })
	err := tx.Tx(context.Background(), func(Queryer) error { ran = true; return nil })
	if !errors.Is(err, boom) || ran {
		t.Fatalf("err %v ran %v", err, ran)
	}
}

func TestBindFunc(t *testing.T) {
	q := &recQ{}
	b := BindFunc[*recQ](func(in Queryer) *recQ { return in.(*recQ) })
	if b.Bind(q) != q {
		t.Fatal("bind should pass the queryer through")
	}
}
