// Package service implements reminder recommendations, grouped reminder creation and carrier dispatch
package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"arledger/internal/core/dunning"
	"arledger/internal/modkit"
	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	"arledger/internal/platform/metrics"
	"arledger/internal/services/dunning/domain"
	drepo "arledger/internal/services/dunning/repo"
	hrepo "arledger/internal/services/history/repo"
)

// Config controls rendering fan out and carrier defaults
type Config struct {
	RenderParallel int
	ArtifactPrefix string
	CarrierMode    string
	Defaults       domain.PrintSpec
}

// Svc implements domain.DunningPort
type Svc struct {
	db        repokit.TxRunner
	binder    repokit.Binder[drepo.Repo]
	history   repokit.Binder[hrepo.Repo]
	renderer  domain.Renderer
	artifacts domain.ArtifactStore
	carrier   domain.Carrier
	cfg       Config
	log       *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

var _ domain.DunningPort = (*Svc)(nil)

// New constructs the service, carrier may be nil when dispatch is not configured
func New(deps modkit.Deps, cfg Config, r domain.Renderer, a domain.ArtifactStore, c domain.Carrier) *Svc {
	if deps.PG == nil {
		panic("dunning.New: nil PG")
	}
	if r == nil || a == nil {
		panic("dunning.New: renderer and artifact store are required")
	}
	if cfg.RenderParallel <= 0 {
		cfg.RenderParallel = 4
	}
	if cfg.ArtifactPrefix == "" {
		cfg.ArtifactPrefix = "reminders"
	}
	if cfg.CarrierMode == "" {
		cfg.CarrierMode = "test"
	}
	return &Svc{
		db:        deps.PG,
		binder:    drepo.NewPG(),
		history:   hrepo.NewPG(),
		renderer:  r,
		artifacts: a,
		carrier:   c,
		cfg:       cfg,
		log:       logger.Named("dunning"),
		metrics:   deps.Metrics,
		now:       time.Now,
	}
}

// Recommendations lists every open collectible invoice with its escalation state, most overdue first
func (s *Svc) Recommendations(ctx context.Context, now time.Time) ([]domain.Recommendation, error) {
	if now.IsZero() {
		now = s.now()
	}
	var states []drepo.InvoiceState
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		states, err = s.binder.Bind(q).OpenInvoices(ctx)
		return perr.Classify(err, "open invoices")
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Recommendation, 0, len(states))
	for _, st := range states {
		months := dunning.MonthsOpen(st.Date, now)
		out = append(out, domain.Recommendation{
			InvoiceID:      st.InvoiceID,
			InvoiceNumber:  st.InvoiceNumber,
			CustomerName:   st.CustomerName,
			Street:         st.Street,
			City:           st.City,
			Date:           st.Date,
			AmountCents:    st.AmountCents,
			MonthsOpen:     months,
			LastLevel:      st.LastLevel,
			LastReminderAt: st.LastReminderAt,
			Recommended:    dunning.RecommendedLevel(months, st.LastLevel),
			StatusText:     dunning.StatusText(months, st.LastLevel),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MonthsOpen != out[j].MonthsOpen {
			return out[i].MonthsOpen > out[j].MonthsOpen
		}
		return out[i].CustomerName < out[j].CustomerName
	})
	return out, nil
}

// CarrierBalance returns the prepaid carrier balance
func (s *Svc) CarrierBalance(ctx context.Context) (domain.Balance, error) {
	if s.carrier == nil {
		return domain.Balance{}, perr.Unavailablef("carrier is not configured")
	}
	return s.carrier.Balance(ctx)
}

// CarrierPrice quotes one letter
func (s *Svc) CarrierPrice(ctx context.Context, q domain.PriceQuery) (int64, error) {
	if s.carrier == nil {
		return 0, perr.Unavailablef("carrier is not configured")
	}
	if q.Pages <= 0 {
		return 0, perr.WithField(perr.InvalidArgf("pages must be positive"), "pages")
	}
	spec, err := s.spec(q.PrintSpec, dunning.LevelReminder)
	if err != nil {
		return 0, err
	}
	q.PrintSpec = spec
	return s.carrier.Price(ctx, q)
}

// spec fills defaults and validates print options, final notices go registered unless told otherwise
func (s *Svc) spec(in domain.PrintSpec, level dunning.Level) (domain.PrintSpec, error) {
	out := in
	def := s.cfg.Defaults
	if out.Color == "" {
		out.Color = firstNonEmpty(def.Color, "1")
	}
	if out.Mode == "" {
		out.Mode = firstNonEmpty(def.Mode, "duplex")
	}
	if out.Shipping == "" {
		out.Shipping = firstNonEmpty(def.Shipping, "national")
	}
	if out.Registered == "" {
		out.Registered = def.Registered
	}
	if out.Registered == "" && level == dunning.LevelFinalNotice {
		out.Registered = "r1"
	}
	switch {
	case out.Color != "1" && out.Color != "4":
		return out, perr.WithField(perr.InvalidArgf("color must be 1 or 4"), "color")
	case out.Mode != "simplex" && out.Mode != "duplex":
		return out, perr.WithField(perr.InvalidArgf("mode must be simplex or duplex"), "mode")
	case out.Shipping != "national" && out.Shipping != "international":
		return out, perr.WithField(perr.InvalidArgf("shipping must be national or international"), "shipping")
	case out.Registered != "" && out.Registered != "r1" && out.Registered != "r2":
		return out, perr.WithField(perr.InvalidArgf("registered must be r1 or r2"), "registered")
	}
	return out, nil
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}

func ref(id int64) string { return strconv.FormatInt(id, 10) }
