// Package repokit holds the seams service code uses to reach SQL repos without a driver import
package repokit

import "arledger/internal/platform/store"

type (
	// Queryer is what a bound repo runs its statements on, a pool or a tx
	Queryer = store.RowQuerier

	// TxRunner also opens transactions
	TxRunner = store.TxRunner
)

// Binder builds a domain repo over a Queryer, services bind once per tx
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc turns a constructor into a Binder
type BindFunc[T any] func(Queryer) T

// Bind calls f
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }
