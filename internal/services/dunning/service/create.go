package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"arledger/internal/core/dunning"
	"arledger/internal/core/outcome"
	"arledger/internal/core/salutation"
	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/services/dunning/domain"
	drepo "arledger/internal/services/dunning/repo"
	hdom "arledger/internal/services/history/domain"
	ldom "arledger/internal/services/ledger/domain"
)

type member struct {
	sel int
	st  drepo.InvoiceState
}

type letterGroup struct {
	id       uuid.UUID
	key      domain.GroupKey
	greeting string
	sal      string
	members  []member
	artifact string
	err      error
}

func (g *letterGroup) ids() []int64 {
	out := make([]int64, len(g.members))
	for i, m := range g.members {
		out[i] = m.st.InvoiceID
	}
	return out
}

// admit applies the escalation policy to a freshly read invoice, empty status means accepted
func admit(st drepo.InvoiceState, level dunning.Level) (status, reason string) {
	switch {
	case !st.Open:
		return outcome.SkippedPaid, "invoice is no longer open"
	case st.Uncollectible:
		return outcome.Rejected, "invoice is marked uncollectible"
	case st.NeverRemind:
		return outcome.Rejected, "customer does not receive reminders"
	}
	if err := dunning.ValidateStep(st.LastLevel, level); err != nil {
		return outcome.Rejected, err.Error()
	}
	return "", ""
}

// CreateReminders issues one letter per customer, address and level for the accepted selections
// stale selections are reported per item, one group failing never aborts the others
func (s *Svc) CreateReminders(ctx context.Context, sels []domain.Selection) (domain.CreateReport, error) {
	if len(sels) == 0 {
		return domain.CreateReport{}, perr.WithField(perr.InvalidArgf("at least one selection is required"), "selections")
	}
	outs := make([]outcome.Outcome, len(sels))
	groups, err := s.plan(ctx, sels, outs)
	if err != nil {
		return domain.CreateReport{}, err
	}

	var eg errgroup.Group
	eg.SetLimit(s.cfg.RenderParallel)
	for _, g := range groups {
		eg.Go(func() error {
			g.artifact, g.err = s.render(ctx, g)
			return nil
		})
	}
	_ = eg.Wait()

	rep := domain.CreateReport{Selections: outs, Groups: make([]domain.GroupOutcome, 0, len(groups))}
	for _, g := range groups {
		rep.Groups = append(rep.Groups, s.commit(ctx, g, outs))
	}
	rep.Counts = outcome.Count(outs)
	s.log.Info().
		Int("selections", len(sels)).
		Int("groups", len(groups)).
		Int("created", rep.Counts[outcome.OK]).
		Int("skipped_paid", rep.Counts[outcome.SkippedPaid]).
		Int("rejected", rep.Counts[outcome.Rejected]).
		Int("failed", rep.Counts[outcome.Failed]).
		Msg("reminders created")
	return rep, nil
}

// plan reads every selected invoice once and groups the accepted ones
func (s *Svc) plan(ctx context.Context, sels []domain.Selection, outs []outcome.Outcome) ([]*letterGroup, error) {
	var groups []*letterGroup
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		if _, ok, err := r.LatestPeriod(ctx); err != nil {
			return perr.Classify(err, "latest period")
		} else if !ok {
			return ldom.ErrNoSnapshot
		}

		byKey := map[domain.GroupKey]*letterGroup{}
		seen := map[int64]bool{}
		for i, sel := range sels {
			id := ref(sel.InvoiceID)
			if !sel.Level.Valid() {
				outs[i] = outcome.Because(id, outcome.Rejected, fmt.Sprintf("unknown reminder level %d", sel.Level))
				continue
			}
			if seen[sel.InvoiceID] {
				outs[i] = outcome.Because(id, outcome.Rejected, "invoice selected twice")
				continue
			}
			seen[sel.InvoiceID] = true

			st, err := r.InvoiceState(ctx, sel.InvoiceID)
			if perr.IsCode(err, perr.ErrorCodeNotFound) {
				outs[i] = outcome.Because(id, outcome.Rejected, "invoice not found")
				continue
			}
			if err != nil {
				return perr.Classify(err, "invoice state")
			}
			if status, reason := admit(st, sel.Level); status != "" {
				outs[i] = outcome.Because(id, status, reason)
				if status == outcome.SkippedPaid {
					s.log.Warn().Int64("invoice_id", sel.InvoiceID).Msg("skipping reminder, invoice already paid")
				}
				continue
			}

			key := domain.GroupKey{CustomerName: st.CustomerName, Street: st.Street, City: st.City, Level: sel.Level}
			g, ok := byKey[key]
			if !ok {
				g = &letterGroup{
					id:       uuid.New(),
					key:      key,
					sal:      st.Salutation,
					greeting: salutation.Greeting(st.Salutation, st.CustomerName),
				}
				byKey[key] = g
				groups = append(groups, g)
			}
			g.members = append(g.members, member{sel: i, st: st})
		}
		return nil
	})
	return groups, err
}

// render asks for the combined letter and stores it
func (s *Svc) render(ctx context.Context, g *letterGroup) (string, error) {
	req := domain.LetterRequest{
		GroupID:      g.id,
		CustomerName: g.key.CustomerName,
		Street:       g.key.Street,
		City:         g.key.City,
		Salutation:   g.sal,
		Greeting:     g.greeting,
		Level:        g.key.Level,
		Title:        g.key.Level.Name(),
		IssuedAt:     s.now().UTC(),
	}
	for _, m := range g.members {
		req.Items = append(req.Items, domain.LetterItem{
			InvoiceID:     m.st.InvoiceID,
			InvoiceNumber: m.st.InvoiceNumber,
			Date:          m.st.Date,
			AmountCents:   m.st.AmountCents,
			SourcePath:    m.st.SourcePath,
		})
	}
	sort.SliceStable(req.Items, func(i, j int) bool {
		if !req.Items[i].Date.Equal(req.Items[j].Date) {
			return req.Items[i].Date.Before(req.Items[j].Date)
		}
		return req.Items[i].InvoiceNumber < req.Items[j].InvoiceNumber
	})

	body, err := s.renderer.Render(ctx, req)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "render letter")
	}
	key := fmt.Sprintf("%s/%s/%s_%s_%s.pdf",
		s.cfg.ArtifactPrefix, req.IssuedAt.Format("2006-01"), g.key.Level.Slug(), fileSafe(g.key.CustomerName), g.id)
	artifact, err := s.artifacts.Put(ctx, key, body, "application/pdf")
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "store letter")
	}
	return artifact, nil
}

var errStale = errors.New("letter group changed before commit")

// commit re-checks every member under row locks and writes the group all or nothing
func (s *Svc) commit(ctx context.Context, g *letterGroup, outs []outcome.Outcome) domain.GroupOutcome {
	res := domain.GroupOutcome{
		GroupID:      g.id,
		CustomerName: g.key.CustomerName,
		Level:        g.key.Level,
		InvoiceIDs:   g.ids(),
		ArtifactRef:  g.artifact,
	}
	fail := func(reason string) domain.GroupOutcome {
		for _, m := range g.members {
			if outs[m.sel].Status == "" {
				outs[m.sel] = outcome.Because(ref(m.st.InvoiceID), outcome.Failed, reason)
			}
		}
		res.Status, res.Reason = outcome.Failed, reason
		s.metrics.GroupFailed()
		s.log.Warn().
			Str("group", g.id.String()).
			Str("customer", g.key.CustomerName).
			Int("level", int(g.key.Level)).
			Str("reason", reason).
			Msg("reminder group failed")
		return res
	}
	if g.err != nil {
		return fail(g.err.Error())
	}

	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		h := s.history.Bind(q)
		if err := r.LockInvoices(ctx, res.InvoiceIDs); err != nil {
			return perr.Classify(err, "lock invoices")
		}
		stale := false
		for _, m := range g.members {
			st, err := r.InvoiceState(ctx, m.st.InvoiceID)
			if err != nil {
				return perr.Classify(err, "recheck invoice")
			}
			if status, reason := admit(st, g.key.Level); status != "" {
				outs[m.sel] = outcome.Because(ref(m.st.InvoiceID), status, reason)
				stale = true
			}
		}
		if stale {
			return errStale
		}
		for _, m := range g.members {
			id, err := r.InsertReminder(ctx, drepo.Reminder{
				InvoiceID:   m.st.InvoiceID,
				Level:       g.key.Level,
				GroupID:     g.id,
				ArtifactRef: g.artifact,
			})
			if err != nil {
				return perr.Classify(err, "insert reminder")
			}
			if _, err := h.Append(ctx, m.st.InvoiceID, hdom.ReminderCreated, map[string]any{
				"reminder_id":  id,
				"level":        int(g.key.Level),
				"level_name":   g.key.Level.Name(),
				"group_id":     g.id.String(),
				"artifact_ref": g.artifact,
			}); err != nil {
				return perr.Classify(err, "append reminder event")
			}
		}
		return nil
	})
	if err != nil {
		return fail(err.Error())
	}
	for _, m := range g.members {
		outs[m.sel] = outcome.Of(ref(m.st.InvoiceID), outcome.OK)
	}
	s.metrics.Reminders(strconv.Itoa(int(g.key.Level)), len(g.members))
	res.Status = outcome.OK
	return res
}

// fileSafe keeps letters, digits, dashes and underscores and joins words with underscores
func fileSafe(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	s := strings.Join(strings.Fields(b.String()), "_")
	if s == "" {
		return "customer"
	}
	return s
}
