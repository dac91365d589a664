// Package service manages customer profiles and derives letter salutations
package service

import (
	"context"
	"strings"
	"time"

	"arledger/internal/core/outcome"
	"arledger/internal/core/salutation"
	"arledger/internal/modkit"
	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	"arledger/internal/services/customers/domain"
	crepo "arledger/internal/services/customers/repo"
	hdom "arledger/internal/services/history/domain"
	hrepo "arledger/internal/services/history/repo"
)

// Config controls listing and lookups
type Config struct {
	DefaultLimit  int
	LookupTimeout time.Duration
}

// Svc implements domain.CustomersPort
type Svc struct {
	db      repokit.TxRunner
	binder  repokit.Binder[crepo.Repo]
	history repokit.Binder[hrepo.Repo]
	lookup  domain.GenderLookup
	cfg     Config
	log     *logger.Logger
}

var _ domain.CustomersPort = (*Svc)(nil)

// New constructs the service, lookup may be nil when salutations are maintained by hand
func New(deps modkit.Deps, cfg Config, lookup domain.GenderLookup) *Svc {
	if deps.PG == nil {
		panic("customers.New: nil PG")
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 100
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 20 * time.Second
	}
	return &Svc{
		db:      deps.PG,
		binder:  crepo.NewPG(),
		history: hrepo.NewPG(),
		lookup:  lookup,
		cfg:     cfg,
		log:     logger.Named("customers"),
	}
}

// List pages through customers by name
func (s *Svc) List(ctx context.Context, q domain.ListQuery) ([]domain.Profile, int, error) {
	if q.Limit <= 0 {
		q.Limit = s.cfg.DefaultLimit
	}
	q.Limit = min(q.Limit, 500)
	q.Offset = max(q.Offset, 0)
	q.Search = strings.TrimSpace(q.Search)
	var (
		items []domain.Profile
		total int
	)
	err := s.db.Tx(ctx, func(qq repokit.Queryer) error {
		var err error
		items, total, err = s.binder.Bind(qq).List(ctx, q)
		return perr.Classify(err, "list customers")
	})
	return items, total, err
}

// Get returns one customer
func (s *Svc) Get(ctx context.Context, name string) (domain.Profile, error) {
	var p domain.Profile
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		p, err = s.binder.Bind(q).Get(ctx, name)
		return perr.Classify(err, "get customer")
	})
	return p, err
}

// Update stores profile settings and records the change on every invoice of the customer
func (s *Svc) Update(ctx context.Context, name string, u domain.Update) (domain.Profile, error) {
	fields := u.Fields()
	if len(fields) == 0 {
		return domain.Profile{}, perr.InvalidArgf("nothing to update")
	}
	if u.Salutation != nil && *u.Salutation != "" && *u.Salutation != salutation.Mr && *u.Salutation != salutation.Mrs {
		return domain.Profile{}, perr.WithField(perr.InvalidArgf("salutation must be %s or %s", salutation.Mr, salutation.Mrs), "salutation")
	}
	var p domain.Profile
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		if _, err := r.Get(ctx, name); err != nil {
			return perr.Classify(err, "get customer")
		}
		if err := r.Upsert(ctx, name, u); err != nil {
			return perr.Classify(err, "update customer")
		}
		ids, err := r.InvoiceIDs(ctx, name)
		if err != nil {
			return perr.Classify(err, "customer invoices")
		}
		h := s.history.Bind(q)
		for _, id := range ids {
			if _, err := h.Append(ctx, id, hdom.CustomerUpdated, map[string]any{"customer": name, "fields": fields}); err != nil {
				return perr.Classify(err, "append update event")
			}
		}
		p, err = r.Get(ctx, name)
		return perr.Classify(err, "reload customer")
	})
	return p, err
}

// DetermineSalutations asks the gender lookup for every customer without a salutation
// one failed lookup is reported and the run continues
func (s *Svc) DetermineSalutations(ctx context.Context) ([]outcome.Outcome, error) {
	if s.lookup == nil {
		return nil, perr.Unavailablef("gender lookup is not configured")
	}
	var names []string
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		names, err = s.binder.Bind(q).MissingSalutation(ctx)
		return perr.Classify(err, "missing salutations")
	})
	if err != nil {
		return nil, err
	}

	out := make([]outcome.Outcome, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, s.determine(ctx, name))
	}
	counts := outcome.Count(out)
	s.log.Info().
		Int("customers", len(names)).
		Int("set", counts[outcome.OK]).
		Int("undecided", counts[outcome.Unchanged]).
		Int("failed", counts[outcome.Failed]).
		Msg("salutations determined")
	return out, nil
}

func (s *Svc) determine(ctx context.Context, name string) outcome.Outcome {
	first := salutation.FirstName(name)
	if first == "" {
		return outcome.Because(name, outcome.Skipped, "no first name")
	}
	lctx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	answer, err := s.lookup.Gender(lctx, first)
	cancel()
	if err != nil {
		s.log.Warn().Err(err).Str("customer", name).Msg("gender lookup failed")
		return outcome.Err(name, err)
	}
	sal := salutation.FromAnswer(answer)
	if sal == "" {
		return outcome.Because(name, outcome.Unchanged, "lookup was undecided for "+first)
	}
	err = s.db.Tx(ctx, func(q repokit.Queryer) error {
		return perr.Classify(s.binder.Bind(q).Upsert(ctx, name, domain.Update{Salutation: &sal}), "store salutation")
	})
	if err != nil {
		return outcome.Err(name, err)
	}
	return outcome.Because(name, outcome.OK, sal)
}
