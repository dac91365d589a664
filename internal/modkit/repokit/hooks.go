package repokit

import (
	"context"
	"fmt"
	"time"
)

// BeginHook runs first inside every transaction, an error rolls it back
type BeginHook func(ctx context.Context, q Queryer) error

// WithBeginHooks returns a TxRunner that runs hooks at the start of each Tx
// statements outside Tx go straight to inner
func WithBeginHooks(inner TxRunner, hooks ...BeginHook) TxRunner {
	if len(hooks) == 0 {
		return inner
	}
	return hookedTx{TxRunner: inner, hooks: hooks}
}

type hookedTx struct {
	TxRunner
	hooks []BeginHook
}

func (h hookedTx) Tx(ctx context.Context, fn func(q Queryer) error) error {
	return h.TxRunner.Tx(ctx, func(q Queryer) error {
		for _, hook := range h.hooks {
			if err := hook(ctx, q); err != nil {
				return err
			}
		}
		return fn(q)
	})
}

// StatementTimeout caps every statement of the transaction on the server side
func StatementTimeout(d time.Duration) BeginHook {
	stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", d.Milliseconds())
	return func(ctx context.Context, q Queryer) error {
		_, err := q.Exec(ctx, stmt)
		return err
	}
}
