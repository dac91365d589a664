// Package service implements snapshot ingestion, payment reconciliation and ledger reads
package service

import (
	"context"
	"time"

	"arledger/internal/core/period"
	"arledger/internal/modkit"
	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	"arledger/internal/platform/metrics"
	hdom "arledger/internal/services/history/domain"
	hrepo "arledger/internal/services/history/repo"
	"arledger/internal/services/ledger/domain"
	"arledger/internal/services/ledger/guardrails"
	lrepo "arledger/internal/services/ledger/repo"
)

// Config controls ingestion and sweeps
type Config struct {
	SourceLabel  string
	DefaultLimit int
	MaxRetries   int
	RetryBase    time.Duration
	Timeouts     guardrails.Timeouts
}

// Svc implements the ledger ports
type Svc struct {
	db      repokit.TxRunner
	binder  repokit.Binder[lrepo.Repo]
	history repokit.Binder[hrepo.Repo]
	router  domain.Router
	lease   guardrails.Lease
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

var (
	_ domain.IngestPort    = (*Svc)(nil)
	_ domain.ReconcilePort = (*Svc)(nil)
	_ domain.SweepPort     = (*Svc)(nil)
	_ domain.LedgerPort    = (*Svc)(nil)
)

// New constructs the service, records are ingested directly until UseRouter installs a resolver
func New(deps modkit.Deps, cfg Config, lease guardrails.Lease) *Svc {
	if deps.PG == nil {
		panic("ledger.New: nil PG")
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	if lease == nil {
		lease = guardrails.NoLease
	}
	s := &Svc{
		db:      deps.PG,
		binder:  lrepo.NewPG(),
		history: hrepo.NewPG(),
		lease:   lease,
		cfg:     cfg,
		log:     logger.Named("ledger"),
		metrics: deps.Metrics,
		now:     time.Now,
	}
	s.router = directRouter{s}
	return s
}

// UseRouter sends sweep records through r, typically the identity resolver
func (s *Svc) UseRouter(r domain.Router) {
	if r != nil {
		s.router = r
	}
}

// IngestRecord ingests one record for period in its own transaction
func (s *Svc) IngestRecord(ctx context.Context, rec domain.Record, p string) (domain.IngestResult, error) {
	var res domain.IngestResult
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		res, err = s.IngestRecordIn(ctx, q, rec, p)
		return err
	})
	if err != nil {
		return domain.IngestResult{}, err
	}
	if res.NewLink {
		s.metrics.Linked()
	}
	return res, nil
}

// IngestRecordIn ingests inside the caller's transaction
// re-ingesting an already linked record is a no-op even for a completed snapshot
func (s *Svc) IngestRecordIn(ctx context.Context, q repokit.Queryer, rec domain.Record, p string) (domain.IngestResult, error) {
	return s.ingest(ctx, q, rec, p, false)
}

// IngestParkedIn ingests a record released from identity review into the period it was scanned in
// the document was seen during that scan, so a completed snapshot still takes the link and the
// following period is reconciled again in the same transaction
func (s *Svc) IngestParkedIn(ctx context.Context, q repokit.Queryer, rec domain.Record, p string) (domain.IngestResult, error) {
	return s.ingest(ctx, q, rec, p, true)
}

func (s *Svc) ingest(ctx context.Context, q repokit.Queryer, rec domain.Record, p string, parked bool) (domain.IngestResult, error) {
	if err := rec.Validate(); err != nil {
		return domain.IngestResult{}, err
	}
	key, err := period.Parse(p)
	if err != nil {
		return domain.IngestResult{}, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "invalid period")
	}
	r := s.binder.Bind(q)

	snap, err := r.EnsureSnapshot(ctx, key.String(), s.cfg.SourceLabel)
	if err != nil {
		return domain.IngestResult{}, perr.Classify(err, "ensure snapshot")
	}
	if snap.Completed && !parked {
		return s.ingestCompleted(ctx, r, snap, rec, key)
	}

	id, created, err := r.CreateInvoice(ctx, rec)
	if err != nil {
		return domain.IngestResult{}, perr.Classify(err, "create invoice")
	}
	linked, err := r.Link(ctx, id, snap.ID, rec.SourcePath)
	if err != nil {
		return domain.IngestResult{}, perr.Classify(err, "link invoice")
	}
	if linked {
		meta := map[string]any{"period": key.String(), "source_path": rec.SourcePath}
		if _, err := s.history.Bind(q).Append(ctx, id, hdom.Import, meta); err != nil {
			return domain.IngestResult{}, perr.Classify(err, "append import event")
		}
	}
	if linked && parked {
		next, ok, err := r.NextPeriod(ctx, key.String())
		if err != nil {
			return domain.IngestResult{}, perr.Classify(err, "next period")
		}
		if ok {
			paid, err := s.detect(ctx, q, key.String(), next)
			if err != nil {
				return domain.IngestResult{}, perr.Classify(err, "reconcile after review")
			}
			s.metrics.Payments(len(paid))
		}
	}
	return domain.IngestResult{InvoiceID: id, NewInvoice: created, NewLink: linked}, nil
}

func (s *Svc) ingestCompleted(ctx context.Context, r lrepo.Repo, snap lrepo.SnapshotRef, rec domain.Record, key period.Key) (domain.IngestResult, error) {
	id, found, err := r.FindInvoice(ctx, rec)
	if err != nil {
		return domain.IngestResult{}, err
	}
	if found {
		ok, err := r.HasLink(ctx, id, snap.ID)
		if err != nil {
			return domain.IngestResult{}, err
		}
		if ok {
			return domain.IngestResult{InvoiceID: id}, nil
		}
	}
	return domain.IngestResult{}, perr.WithField(
		perr.Wrapf(domain.ErrSnapshotCompleted, perr.ErrorCodeConflict, "period %s", key), "period")
}

// CompleteSnapshot marks the period fully scanned, repeated calls are no-ops
func (s *Svc) CompleteSnapshot(ctx context.Context, p string) error {
	key, err := period.Parse(p)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeInvalidArgument, "invalid period")
	}
	ok, err := s.binder.Bind(s.db).CompleteSnapshot(ctx, key.String())
	if err != nil {
		return perr.Classify(err, "complete snapshot")
	}
	if !ok {
		return perr.NotFoundf("snapshot %s not found", key)
	}
	return nil
}

// ReconcilePayments emits PAYMENT_RECEIVED for invoices present in the stored predecessor of
// period and absent from period, at most once per invoice
// a period without a snapshot, every record parked or unreadable, detects nothing
func (s *Svc) ReconcilePayments(ctx context.Context, p string) ([]domain.PaymentTransition, error) {
	key, err := period.Parse(p)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "invalid period")
	}
	var out []domain.PaymentTransition
	err = s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		if _, found, err := r.FindSnapshot(ctx, key.String()); err != nil || !found {
			return err
		}
		prev, ok, err := r.PrevPeriod(ctx, key.String())
		if err != nil || !ok {
			return err
		}
		out, err = s.detect(ctx, q, prev, key.String())
		return err
	})
	if err != nil {
		return nil, perr.Classify(err, "reconcile payments")
	}
	s.metrics.Payments(len(out))
	if len(out) > 0 {
		s.log.Info().Str("period", key.String()).Int("payments", len(out)).Msg("payments detected")
	}
	return out, nil
}

// detect appends PAYMENT_RECEIVED for invoices linked to prev and not to cur
func (s *Svc) detect(ctx context.Context, q repokit.Queryer, prev, cur string) ([]domain.PaymentTransition, error) {
	gone, err := s.binder.Bind(q).Disappeared(ctx, prev, cur)
	if err != nil {
		return nil, err
	}
	h := s.history.Bind(q)
	var out []domain.PaymentTransition
	for _, t := range gone {
		inserted, err := h.AppendOnce(ctx, t.InvoiceID, hdom.PaymentReceived, map[string]any{
			"amount_cents":       t.AmountCents,
			"invoice_number":     t.InvoiceNumber,
			"customer_name":      t.CustomerName,
			"last_seen_period":   t.LastSeenPeriod,
			"detected_at_period": t.DetectedAtPeriod,
		})
		if err != nil {
			return nil, err
		}
		if inserted {
			out = append(out, t)
		}
	}
	return out, nil
}

// directRouter ingests without identity checks
type directRouter struct{ s *Svc }

func (d directRouter) Route(ctx context.Context, rec domain.Record, p string) (domain.Route, error) {
	res, err := d.s.IngestRecord(ctx, rec, p)
	return domain.Route{IngestResult: res}, err
}
