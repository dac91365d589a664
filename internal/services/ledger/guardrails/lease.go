// Package guardrails bounds sweep work with period leases and timeouts
package guardrails

import (
	"context"
	"errors"
	"time"

	"arledger/internal/platform/store"
)

// ErrLeaseHeld means another sweeper owns the period right now
var ErrLeaseHeld = errors.New("ledger: period lease already held")

// Lease runs do while holding the period lease
type Lease func(ctx context.Context, period string, do func(context.Context) error) error

// MakeLease returns a lease backed by the sweep_leases table
// a lease older than ttl is considered abandoned and may be taken over
func MakeLease(db store.TxRunner, holder string, ttl time.Duration) Lease {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return func(ctx context.Context, period string, do func(context.Context) error) error {
		var claimed bool
		err := db.Tx(ctx, func(q store.RowQuerier) error {
			rows, err := q.Query(ctx, `
				insert into sweep_leases (period, holder, claimed_at)
				values ($1, $2, now())
				on conflict (period) do update
				   set holder = excluded.holder, claimed_at = excluded.claimed_at
				 where sweep_leases.claimed_at < now() - make_interval(secs => $3)
				returning true
			`, period, holder, ttl.Seconds())
			if err != nil {
				return err
			}
			defer rows.Close()
			if rows.Next() {
				claimed = true
			}
			return rows.Err()
		})
		if err != nil {
			return err
		}
		if !claimed {
			return ErrLeaseHeld
		}
		defer func() {
			// release on a fresh context so a cancelled sweep still frees the period
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_, _ = db.Exec(rctx, `delete from sweep_leases where period = $1 and holder = $2`, period, holder)
		}()
		return do(ctx)
	}
}

// NoLease runs do directly, for single writer deployments and tests
func NoLease(ctx context.Context, _ string, do func(context.Context) error) error { return do(ctx) }
