// Package service resolves customer identity for incoming records and runs the review queue
package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"arledger/internal/core/period"
	"arledger/internal/core/similarity"
	"arledger/internal/modkit"
	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	"arledger/internal/platform/metrics"
	hdom "arledger/internal/services/history/domain"
	hrepo "arledger/internal/services/history/repo"
	"arledger/internal/services/identity/domain"
	irepo "arledger/internal/services/identity/repo"
	ldom "arledger/internal/services/ledger/domain"
)

// Config controls candidate search
type Config struct {
	Threshold float64
}

// Svc implements domain.IdentityPort
type Svc struct {
	db      repokit.TxRunner
	binder  repokit.Binder[irepo.Repo]
	history repokit.Binder[hrepo.Repo]
	ingest  ldom.IngestPort
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

var _ domain.IdentityPort = (*Svc)(nil)

// New constructs the resolver on top of the ledger write path
func New(deps modkit.Deps, cfg Config, ingest ldom.IngestPort) *Svc {
	if deps.PG == nil {
		panic("identity.New: nil PG")
	}
	if ingest == nil {
		panic("identity.New: nil ingest port")
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = similarity.DefaultThreshold
	}
	return &Svc{
		db:      deps.PG,
		binder:  irepo.NewPG(),
		history: hrepo.NewPG(),
		ingest:  ingest,
		cfg:     cfg,
		log:     logger.Named("identity"),
		metrics: deps.Metrics,
		now:     time.Now,
	}
}

func tripleOf(rec ldom.Record) similarity.Triple {
	return similarity.Triple{
		Name:   strings.TrimSpace(rec.CustomerName),
		Street: strings.TrimSpace(rec.Street),
		City:   strings.TrimSpace(rec.City),
	}
}

func withIdentity(rec ldom.Record, t similarity.Triple) ldom.Record {
	rec.CustomerName, rec.Street, rec.City = t.Name, t.Street, t.City
	return rec
}

// Route ingests rec unless its customer resembles, without matching, an identity already in the ledger
func (s *Svc) Route(ctx context.Context, rec ldom.Record, p string) (ldom.Route, error) {
	if err := rec.Validate(); err != nil {
		return ldom.Route{}, err
	}
	key, err := period.Parse(p)
	if err != nil {
		return ldom.Route{}, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "invalid period")
	}

	var (
		out    ldom.Route
		parked bool
	)
	err = s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		ingest := func(rec ldom.Record) error {
			res, err := s.ingest.IngestRecordIn(ctx, q, rec, key.String())
			out.IngestResult = res
			return err
		}

		// a record seen before follows its earlier decision
		rv, ok, err := r.ReviewFor(ctx, rec)
		if err != nil {
			return perr.Classify(err, "find review")
		}
		if ok {
			switch {
			case rv.Status == domain.StatusPending:
				out = ldom.Route{Parked: true, ReviewID: rv.ID.String()}
				return nil
			case rv.Resolution == domain.MergeWithExisting:
				return ingest(withIdentity(rec, similarity.Triple{
					Name: rv.ResolvedProfile, Street: rv.ResolvedStreet, City: rv.ResolvedCity,
				}))
			default:
				return ingest(rec)
			}
		}

		if canonical, ok, err := r.Alias(ctx, rec.CustomerName); err != nil {
			return perr.Classify(err, "find alias")
		} else if ok {
			return ingest(withIdentity(rec, canonical))
		}

		direct, err := s.isKnown(ctx, r, tripleOf(rec))
		if err != nil {
			return err
		}
		if direct {
			return ingest(rec)
		}

		cands, err := s.candidates(ctx, r, tripleOf(rec), s.cfg.Threshold)
		if err != nil {
			return err
		}
		if len(cands) == 0 {
			return ingest(rec)
		}

		review := domain.Review{
			ID:         uuid.New(),
			Record:     rec,
			Period:     key.String(),
			SourcePath: rec.SourcePath,
			Candidates: cands,
			Status:     domain.StatusPending,
			CreatedAt:  s.now().UTC(),
		}
		if err := r.InsertReview(ctx, review); err != nil {
			return perr.Classify(err, "park record")
		}
		out = ldom.Route{Parked: true, ReviewID: review.ID.String()}
		parked = true
		return nil
	})
	if err != nil {
		return ldom.Route{}, err
	}
	if parked {
		s.metrics.Parked()
		s.log.Info().
			Str("ref", rec.Ref()).
			Str("review_id", out.ReviewID).
			Str("customer", rec.CustomerName).
			Msg("record parked for identity review")
	}
	return out, nil
}

// isKnown is the exact match short circuit that skips the fuzzy scan
func (s *Svc) isKnown(ctx context.Context, r irepo.Repo, t similarity.Triple) (bool, error) {
	if ok, err := r.ExactTriple(ctx, t); err != nil || ok {
		return ok, perr.Classify(err, "exact triple")
	}
	if ok, err := r.ExactName(ctx, t.Name); err != nil || ok {
		return ok, perr.Classify(err, "exact name")
	}
	ok, err := r.ConfirmedDistinct(ctx, t.Name)
	return ok, perr.Classify(err, "confirmed distinct")
}

// FindCandidates ranks existing identities resembling the query
func (s *Svc) FindCandidates(ctx context.Context, cq domain.CandidateQuery) ([]domain.Candidate, error) {
	if strings.TrimSpace(cq.Name) == "" {
		return nil, perr.WithField(perr.InvalidArgf("name is required"), "name")
	}
	if cq.Threshold < 0 || cq.Threshold > 100 {
		return nil, perr.WithField(perr.InvalidArgf("threshold must be within 0..100"), "threshold")
	}
	th := cq.Threshold
	if th == 0 {
		th = s.cfg.Threshold
	}
	var out []domain.Candidate
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.candidates(ctx, s.binder.Bind(q), similarity.Triple{
			Name: strings.TrimSpace(cq.Name), Street: strings.TrimSpace(cq.Street), City: strings.TrimSpace(cq.City),
		}, th)
		return err
	})
	return out, err
}

func (s *Svc) candidates(ctx context.Context, r irepo.Repo, t similarity.Triple, threshold float64) ([]domain.Candidate, error) {
	known, err := r.KnownTriples(ctx)
	if err != nil {
		return nil, perr.Classify(err, "load identities")
	}
	want := t.Normalized()
	var out []domain.Candidate
	for _, k := range known {
		if k.Triple == t {
			continue
		}
		score := similarity.ScoreNormalized(want, k.Normalized())
		if score < threshold {
			continue
		}
		out = append(out, domain.Candidate{
			Name:         k.Name,
			Street:       k.Street,
			City:         k.City,
			Score:        score,
			InvoiceCount: k.Count,
			NameDiff:     similarity.Diff(k.Name, t.Name),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ListPending returns unresolved reviews, oldest first
func (s *Svc) ListPending(ctx context.Context) ([]domain.Review, error) {
	var out []domain.Review
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.binder.Bind(q).ListPending(ctx)
		return perr.Classify(err, "list reviews")
	})
	return out, err
}

// GetPending returns one review in any state
func (s *Svc) GetPending(ctx context.Context, id uuid.UUID) (domain.Review, error) {
	var out domain.Review
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.binder.Bind(q).GetReview(ctx, id)
		return perr.Classify(err, "get review")
	})
	return out, err
}

// ResolvePending applies a reviewer's decision exactly once
func (s *Svc) ResolvePending(ctx context.Context, id uuid.UUID, args domain.ResolveArgs) (domain.Resolution, error) {
	if args.Action != domain.CreateNew && args.Action != domain.MergeWithExisting {
		return domain.Resolution{}, perr.WithField(perr.InvalidArgf("unknown action %q", args.Action), "action")
	}
	res := domain.Resolution{ReviewID: id, Action: args.Action}
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		rv, err := r.LockReview(ctx, id)
		if err != nil {
			return perr.Classify(err, "lock review")
		}
		if rv.Status != domain.StatusPending {
			return domain.ErrReviewResolved
		}

		incoming := tripleOf(rv.Record)
		canonical := incoming
		switch args.Action {
		case domain.CreateNew:
			if err := r.UpsertProfile(ctx, incoming, true); err != nil {
				return perr.Classify(err, "confirm profile")
			}
		case domain.MergeWithExisting:
			chosen, err := pickCandidate(rv.Candidates, args.ChosenName)
			if err != nil {
				return err
			}
			if !args.PreferNewData {
				canonical = chosen.Triple()
			}
			merged, err := s.merge(ctx, q, r, []string{chosen.Name, incoming.Name}, canonical)
			if err != nil {
				return err
			}
			res.Merged = merged
		}

		ing, err := s.ingest.IngestParkedIn(ctx, q, withIdentity(rv.Record, canonical), rv.Period)
		if err != nil {
			return err
		}
		res.Ingest = ing
		if canonical.Name != incoming.Name && ing.NewInvoice {
			if _, err := s.history.Bind(q).Append(ctx, ing.InvoiceID, hdom.CustomerMerged, map[string]any{
				"from": incoming.Name, "to": canonical.Name, "review_id": id.String(),
			}); err != nil {
				return perr.Classify(err, "append merge event")
			}
		}
		if err := r.MarkResolved(ctx, id, args.Action, canonical, s.now().UTC()); err != nil {
			return perr.Classify(err, "mark resolved")
		}
		res.Profile = canonical.Name
		return nil
	})
	if err != nil {
		return domain.Resolution{}, err
	}
	s.log.Info().
		Str("review_id", id.String()).
		Str("action", string(args.Action)).
		Str("profile", res.Profile).
		Int("merged", len(res.Merged)).
		Msg("review resolved")
	return res, nil
}

// merge renames every invoice of names to the canonical identity and records each rename
func (s *Svc) merge(ctx context.Context, q repokit.Queryer, r irepo.Repo, names []string, to similarity.Triple) ([]int64, error) {
	names = uniq(names)
	renamed, err := r.RewriteIdentity(ctx, names, to)
	if err != nil {
		return nil, perr.Classify(err, "rewrite identity")
	}
	if err := r.MergeProfiles(ctx, names, to); err != nil {
		return nil, perr.Classify(err, "merge profiles")
	}
	if err := r.SetAliases(ctx, names, to); err != nil {
		return nil, perr.Classify(err, "set aliases")
	}
	h := s.history.Bind(q)
	ids := make([]int64, 0, len(renamed))
	for _, x := range renamed {
		if _, err := h.Append(ctx, x.InvoiceID, hdom.CustomerMerged, map[string]any{
			"from": x.From, "to": to.Name,
		}); err != nil {
			return nil, perr.Classify(err, "append merge event")
		}
		ids = append(ids, x.InvoiceID)
	}
	return ids, nil
}

func pickCandidate(cands []domain.Candidate, name string) (domain.Candidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		if len(cands) == 1 {
			return cands[0], nil
		}
		return domain.Candidate{}, perr.WithField(perr.InvalidArgf("chosen_name is required when %d candidates exist", len(cands)), "chosen_name")
	}
	for _, c := range cands {
		if c.Name == name {
			return c, nil
		}
	}
	return domain.Candidate{}, perr.WithField(perr.InvalidArgf("%q is not a candidate of this review", name), "chosen_name")
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
