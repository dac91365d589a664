package service

import (
	"context"
	"path"

	"arledger/internal/core/outcome"
	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/services/dunning/domain"
	drepo "arledger/internal/services/dunning/repo"
	hdom "arledger/internal/services/history/domain"
)

const maxNotice = 255

// Dispatch submits every rendered, not yet dispatched letter to the carrier
// a failed submission stays pending for the next run and never stops the batch
func (s *Svc) Dispatch(ctx context.Context, spec domain.PrintSpec) (domain.DispatchReport, error) {
	if s.carrier == nil {
		return domain.DispatchReport{}, perr.Unavailablef("carrier is not configured")
	}
	if _, err := s.spec(spec, 0); err != nil {
		return domain.DispatchReport{}, err
	}

	var groups []drepo.PendingGroup
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		groups, err = s.binder.Bind(q).PendingGroups(ctx)
		return perr.Classify(err, "pending groups")
	})
	if err != nil {
		return domain.DispatchReport{}, err
	}

	rep := domain.DispatchReport{Results: make([]domain.DispatchOutcome, 0, len(groups))}
	if len(groups) == 0 {
		return rep, nil
	}
	if bal, err := s.carrier.Balance(ctx); err != nil {
		s.log.Warn().Err(err).Msg("carrier balance unavailable")
	} else {
		rep.Balance = &bal
	}

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res := s.dispatchGroup(ctx, g, spec)
		if res.Status == outcome.OK {
			rep.Submitted++
			rep.TotalCents += res.PriceCents
		} else {
			rep.Failed++
		}
		rep.Results = append(rep.Results, res)
	}
	s.log.Info().
		Int("groups", len(groups)).
		Int("submitted", rep.Submitted).
		Int("failed", rep.Failed).
		Int64("total_cents", rep.TotalCents).
		Msg("reminder dispatch finished")
	return rep, nil
}

func (s *Svc) dispatchGroup(ctx context.Context, g drepo.PendingGroup, in domain.PrintSpec) domain.DispatchOutcome {
	res := domain.DispatchOutcome{GroupID: g.GroupID, InvoiceIDs: g.InvoiceIDs}
	fail := func(err error) domain.DispatchOutcome {
		res.Status, res.Reason = outcome.Failed, err.Error()
		s.metrics.Carrier(outcome.Failed)
		s.log.Warn().Err(err).Str("group", g.GroupID.String()).Str("artifact", g.ArtifactRef).Msg("carrier dispatch failed")
		return res
	}

	spec, err := s.spec(in, g.Level)
	if err != nil {
		return fail(err)
	}
	body, err := s.artifacts.Get(ctx, g.ArtifactRef)
	if err != nil {
		return fail(perr.Wrap(err, perr.ErrorCodeUnavailable, "load letter"))
	}
	notice := g.Level.Name() + " " + g.CustomerName
	if r := []rune(notice); len(r) > maxNotice {
		notice = string(r[:maxNotice])
	}
	job, err := s.carrier.Submit(ctx, domain.Letter{
		PDF:      body,
		Spec:     spec,
		Notice:   notice,
		Filename: path.Base(g.ArtifactRef),
	})
	if err != nil {
		return fail(err)
	}
	mode := firstNonEmpty(job.Mode, s.cfg.CarrierMode)

	err = s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		n, err := r.MarkSubmitted(ctx, g.GroupID, job.ID, job.PriceCents)
		if err != nil {
			return perr.Classify(err, "mark submitted")
		}
		if n == 0 {
			return perr.Conflictf("group %s was dispatched concurrently", g.GroupID)
		}
		if err := r.InsertCarrierJob(ctx, drepo.CarrierJob{
			GroupID:     g.GroupID,
			ArtifactRef: g.ArtifactRef,
			JobID:       job.ID,
			Mode:        mode,
			PriceCents:  job.PriceCents,
			Status:      firstNonEmpty(job.Status, "queued"),
			SubmittedAt: s.now().UTC(),
		}); err != nil {
			return perr.Classify(err, "insert carrier job")
		}
		h := s.history.Bind(q)
		for _, id := range g.InvoiceIDs {
			if _, err := h.Append(ctx, id, hdom.ReminderSent, map[string]any{
				"job_id":      job.ID,
				"group_id":    g.GroupID.String(),
				"level":       int(g.Level),
				"price_cents": job.PriceCents,
				"mode":        mode,
				"registered":  spec.Registered,
			}); err != nil {
				return perr.Classify(err, "append sent event")
			}
		}
		return nil
	})
	if err != nil {
		// the carrier accepted the letter, keep the job id in the log for manual reconciliation
		s.log.Error().Err(err).Str("group", g.GroupID.String()).Str("job_id", job.ID).Msg("submitted letter could not be recorded")
		return fail(err)
	}
	s.metrics.Carrier("submitted")
	res.Status, res.JobID, res.PriceCents = outcome.OK, job.ID, job.PriceCents
	return res
}
