package service

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"arledger/internal/core/outcome"
	"arledger/internal/core/period"
	perr "arledger/internal/platform/errors"
	"arledger/internal/services/ledger/domain"
	"arledger/internal/services/ledger/guardrails"
)

func parsePeriod(p string) (period.Key, error) {
	k, err := period.Parse(p)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeInvalidArgument, "invalid period")
	}
	return k, nil
}

// Sweep ingests everything the source delivers, period by period in ascending order
// each record commits on its own, a failing record never aborts the batch
// a period is completed only when it is older than the newest period seen and every
// record either landed, was parked or was rejected as malformed
func (s *Svc) Sweep(ctx context.Context, src domain.Source) (domain.SweepReport, error) {
	var rep domain.SweepReport
	items, err := src.Scan(ctx)
	if err != nil {
		return rep, perr.Wrap(err, perr.ErrorCodeUnavailable, "scan record source")
	}

	byPeriod := map[period.Key][]domain.SourceItem{}
	for _, it := range items {
		key, _, err := period.FromPath(it.Path)
		if err != nil {
			s.log.Warn().Str("source_path", it.Path).Msg("record outside a month folder skipped")
			rep.Outcomes = append(rep.Outcomes, outcome.Because(it.Path, outcome.Skipped, err.Error()))
			continue
		}
		byPeriod[key] = append(byPeriod[key], it)
	}
	keys := make([]period.Key, 0, len(byPeriod))
	for k := range byPeriod {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return period.Less(keys[i], keys[j]) })

	for i, k := range keys {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		newest := i == len(keys)-1
		pr, err := s.sweepPeriodWithRetry(ctx, k, byPeriod[k], !newest)
		rep.Periods = append(rep.Periods, pr)
		if err != nil {
			s.log.Error().Err(err).Str("period", k.String()).Msg("period sweep failed")
			rep.Outcomes = append(rep.Outcomes, outcome.Err(k.String(), err))
		}
	}
	return rep, nil
}

func (s *Svc) sweepPeriodWithRetry(ctx context.Context, k period.Key, items []domain.SourceItem, completable bool) (domain.PeriodReport, error) {
	attempts := max(s.cfg.MaxRetries, 1)
	base := s.cfg.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	var (
		pr   domain.PeriodReport
		last error
	)
	for i := range attempts {
		pr, last = s.sweepPeriod(ctx, k, items, completable)
		if last == nil {
			return pr, nil
		}
		if !perr.Retryable(last) && perr.CodeOf(last) != perr.ErrorCodeUnavailable {
			return pr, last
		}
		if i == attempts-1 {
			break
		}
		d := min(base<<i, 30*time.Second)
		j := d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
		if err := sleepCtx(ctx, j); err != nil {
			return pr, err
		}
	}
	return pr, last
}

func (s *Svc) sweepPeriod(ctx context.Context, k period.Key, items []domain.SourceItem, completable bool) (domain.PeriodReport, error) {
	pr := domain.PeriodReport{Period: k.String()}
	start := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(start)) }()

	pctx, cancel := guardrails.ForPeriod(ctx, s.cfg.Timeouts)
	defer cancel()

	done, err := s.periodCompleted(pctx, k)
	if err != nil {
		return pr, err
	}
	if done {
		pr.Skipped = "completed"
		return pr, nil
	}

	err = s.lease(pctx, k.String(), func(ctx context.Context) error {
		transient := false
		for _, it := range items {
			o, isTransient := s.sweepItem(ctx, k, it, &pr)
			pr.Outcomes = append(pr.Outcomes, o)
			transient = transient || isTransient
		}

		payments, err := s.ReconcilePayments(ctx, k.String())
		if err != nil {
			return err
		}
		pr.Payments = len(payments)

		if completable && !transient {
			cerr := s.CompleteSnapshot(ctx, k.String())
			if cerr != nil && !perr.IsCode(cerr, perr.ErrorCodeNotFound) {
				return cerr
			}
			pr.Completed = cerr == nil
		}
		return nil
	})
	if errors.Is(err, guardrails.ErrLeaseHeld) {
		pr.Skipped = "lease held"
		return pr, nil
	}
	return pr, err
}

// sweepItem ingests or parks one record, the flag reports a transient failure
func (s *Svc) sweepItem(ctx context.Context, k period.Key, it domain.SourceItem, pr *domain.PeriodReport) (outcome.Outcome, bool) {
	ref := it.Path
	log := s.log.With().Str("period", k.String()).Str("source_path", ref).Logger()

	if it.Err != nil {
		pr.Failed++
		s.metrics.Ingested(outcome.Failed)
		log.Warn().Err(it.Err).Msg("unreadable document skipped")
		return outcome.Err(ref, it.Err), false
	}
	rec := it.Record
	if rec.SourcePath == "" {
		rec.SourcePath = it.Path
	}

	rctx, cancel := guardrails.ForRecord(ctx, s.cfg.Timeouts)
	route, err := s.router.Route(rctx, rec, k.String())
	cancel()
	if err != nil {
		pr.Failed++
		s.metrics.Ingested(outcome.Failed)
		code := perr.CodeOf(err)
		permanent := code == perr.ErrorCodeInvalidArgument || code == perr.ErrorCodeValidation || code == perr.ErrorCodeConflict
		log.Warn().Err(err).Bool("permanent", permanent).Msg("record not ingested")
		return outcome.Err(ref, err), !permanent
	}

	switch {
	case route.Parked:
		pr.Parked++
		s.metrics.Ingested(outcome.Parked)
		return outcome.Because(ref, outcome.Parked, "review "+route.ReviewID), false
	case route.NewLink:
		pr.Ingested++
		pr.NewLinks++
		s.metrics.Ingested(outcome.Ingested)
		return outcome.Of(ref, outcome.Ingested), false
	default:
		s.metrics.Ingested(outcome.Unchanged)
		return outcome.Of(ref, outcome.Unchanged), false
	}
}

func (s *Svc) periodCompleted(ctx context.Context, k period.Key) (bool, error) {
	dctx, cancel := guardrails.ForDB(ctx, s.cfg.Timeouts)
	defer cancel()
	snap, found, err := s.binder.Bind(s.db).FindSnapshot(dctx, k.String())
	if err != nil {
		return false, perr.Classify(err, "find snapshot")
	}
	return found && snap.Completed, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
