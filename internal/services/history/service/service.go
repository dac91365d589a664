// Package service implements the history journal reads and the outbox relay
package service

import (
	"context"
	"time"

	"arledger/internal/modkit"
	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	"arledger/internal/platform/metrics"
	"arledger/internal/services/history/domain"
	hrepo "arledger/internal/services/history/repo"
)

// Config controls the relay
type Config struct {
	Batch int
}

// Svc implements HistoryPort and RelayPort
type Svc struct {
	db      repokit.TxRunner
	binder  repokit.Binder[hrepo.Repo]
	sinks   []domain.Sink
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

var (
	_ domain.HistoryPort = (*Svc)(nil)
	_ domain.RelayPort   = (*Svc)(nil)
)

// New constructs the service, sinks may be empty in which case Relay only marks events published
func New(deps modkit.Deps, cfg Config, sinks ...domain.Sink) *Svc {
	if deps.PG == nil {
		panic("history.New: nil PG")
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 500
	}
	return &Svc{
		db:      deps.PG,
		binder:  hrepo.NewPG(),
		sinks:   sinks,
		cfg:     cfg,
		log:     logger.Named("history"),
		metrics: deps.Metrics,
		now:     time.Now,
	}
}

// ListForInvoice returns the journal of one invoice oldest first
func (s *Svc) ListForInvoice(ctx context.Context, invoiceID int64) ([]domain.Event, error) {
	return s.binder.Bind(s.db).ListForInvoice(ctx, invoiceID)
}

// HasEvent reports whether the invoice already carries an event of typ
func (s *Svc) HasEvent(ctx context.Context, invoiceID int64, typ domain.EventType) (bool, error) {
	return s.binder.Bind(s.db).HasEvent(ctx, invoiceID, typ)
}

// Relay publishes one batch of unpublished events to every sink
// any sink failure rolls the claim back so the batch is retried on the next pass
func (s *Svc) Relay(ctx context.Context, batch int) (domain.RelayReport, error) {
	if batch <= 0 {
		batch = s.cfg.Batch
	}
	var rep domain.RelayReport
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		evs, err := r.ClaimUnpublished(ctx, batch)
		if err != nil {
			return err
		}
		rep.Claimed = len(evs)
		if len(evs) == 0 {
			return nil
		}
		for _, sink := range s.sinks {
			if err := sink.Publish(ctx, evs); err != nil {
				return perr.Wrapf(err, perr.ErrorCodeUnavailable, "relay to %s", sink.Name())
			}
		}
		ids := make([]int64, len(evs))
		for i, e := range evs {
			ids[i] = e.ID
		}
		if err := r.MarkPublished(ctx, ids, s.now()); err != nil {
			return err
		}
		rep.Published = len(evs)
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Int("claimed", rep.Claimed).Msg("relay pass failed")
		return domain.RelayReport{Claimed: rep.Claimed}, err
	}
	for _, sink := range s.sinks {
		s.metrics.Relayed(sink.Name(), rep.Published)
	}
	return rep, nil
}

// Drain relays batches until the outbox is empty or ctx ends
func (s *Svc) Drain(ctx context.Context, batch int) (domain.RelayReport, error) {
	if batch <= 0 {
		batch = s.cfg.Batch
	}
	var total domain.RelayReport
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		rep, err := s.Relay(ctx, batch)
		total.Claimed += rep.Claimed
		total.Published += rep.Published
		if err != nil {
			return total, err
		}
		if rep.Claimed < batch {
			return total, nil
		}
	}
}
