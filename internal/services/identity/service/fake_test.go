package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"arledger/internal/core/similarity"
	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	hdom "arledger/internal/services/history/domain"
	hrepo "arledger/internal/services/history/repo"
	"arledger/internal/services/identity/domain"
	irepo "arledger/internal/services/identity/repo"
	ldom "arledger/internal/services/ledger/domain"
)

type fakeTx struct{ repokit.TxRunner }

func (fakeTx) Tx(_ context.Context, fn func(q repokit.Queryer) error) error { return fn(nil) }

type memInvoice struct {
	id      int64
	rec     ldom.Record
	periods map[string]bool
}

type memProfile struct {
	t        similarity.Triple
	distinct bool
}

// memWorld backs the identity repo, the ledger write path and history at once
type memWorld struct {
	invoices []*memInvoice
	profiles map[string]*memProfile
	aliases  map[string]similarity.Triple
	reviews  []*domain.Review
	events   []hdom.Event
	// completed periods refuse new links except for released reviews
	completed map[string]bool
}

func newWorld() *memWorld {
	return &memWorld{profiles: map[string]*memProfile{}, aliases: map[string]similarity.Triple{}, completed: map[string]bool{}}
}

func newTestSvc(w *memWorld) *Svc {
	return &Svc{
		db:      fakeTx{},
		binder:  repokit.BindFunc[irepo.Repo](func(repokit.Queryer) irepo.Repo { return w }),
		history: repokit.BindFunc[hrepo.Repo](func(repokit.Queryer) hrepo.Repo { return (*memHistory)(w) }),
		ingest:  (*memIngest)(w),
		cfg:     Config{Threshold: similarity.DefaultThreshold},
		log:     logger.Named("test"),
		now:     time.Now,
	}
}

// seed stores an invoice as if ingested earlier
func (w *memWorld) seed(number, name, street, city string, cents int64) int64 {
	rec := ldom.Record{InvoiceNumber: number, CustomerName: name, Street: street, City: city,
		AmountCents: cents, Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)}
	id := int64(len(w.invoices) + 1)
	w.invoices = append(w.invoices, &memInvoice{id: id, rec: rec, periods: map[string]bool{"2024-01": true}})
	return id
}

func (w *memWorld) byName(name string) []*memInvoice {
	var out []*memInvoice
	for _, inv := range w.invoices {
		if inv.rec.CustomerName == name {
			out = append(out, inv)
		}
	}
	return out
}

func (w *memWorld) count(typ hdom.EventType) int {
	n := 0
	for _, e := range w.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type memIngest memWorld

func (m *memIngest) IngestRecord(ctx context.Context, rec ldom.Record, p string) (ldom.IngestResult, error) {
	return m.IngestRecordIn(ctx, nil, rec, p)
}

func (m *memIngest) IngestRecordIn(_ context.Context, _ repokit.Queryer, rec ldom.Record, p string) (ldom.IngestResult, error) {
	return m.ingest(rec, p, false)
}

func (m *memIngest) IngestParkedIn(_ context.Context, _ repokit.Queryer, rec ldom.Record, p string) (ldom.IngestResult, error) {
	return m.ingest(rec, p, true)
}

func (m *memIngest) ingest(rec ldom.Record, p string, parked bool) (ldom.IngestResult, error) {
	if err := rec.Validate(); err != nil {
		return ldom.IngestResult{}, err
	}
	closed := m.completed[p] && !parked
	for _, inv := range m.invoices {
		if inv.rec.InvoiceNumber == rec.InvoiceNumber && inv.rec.CustomerName == rec.CustomerName && inv.rec.AmountCents == rec.AmountCents {
			linked := !inv.periods[p]
			if linked && closed {
				return ldom.IngestResult{}, ldom.ErrSnapshotCompleted
			}
			inv.periods[p] = true
			return ldom.IngestResult{InvoiceID: inv.id, NewLink: linked}, nil
		}
	}
	if closed {
		return ldom.IngestResult{}, ldom.ErrSnapshotCompleted
	}
	id := int64(len(m.invoices) + 1)
	m.invoices = append(m.invoices, &memInvoice{id: id, rec: rec, periods: map[string]bool{p: true}})
	return ldom.IngestResult{InvoiceID: id, NewInvoice: true, NewLink: true}, nil
}

func (w *memWorld) KnownTriples(context.Context) ([]irepo.Known, error) {
	counts := map[similarity.Triple]int{}
	for _, inv := range w.invoices {
		counts[similarity.Triple{Name: inv.rec.CustomerName, Street: inv.rec.Street, City: inv.rec.City}]++
	}
	out := make([]irepo.Known, 0, len(counts))
	for t, n := range counts {
		out = append(out, irepo.Known{Triple: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (w *memWorld) ExactTriple(_ context.Context, t similarity.Triple) (bool, error) {
	for _, inv := range w.invoices {
		if inv.rec.CustomerName == t.Name && inv.rec.Street == t.Street && inv.rec.City == t.City {
			return true, nil
		}
	}
	return false, nil
}

func (w *memWorld) ExactName(_ context.Context, name string) (bool, error) {
	return len(w.byName(name)) > 0, nil
}

func (w *memWorld) ConfirmedDistinct(_ context.Context, name string) (bool, error) {
	p, ok := w.profiles[name]
	return ok && p.distinct, nil
}

func (w *memWorld) InsertReview(_ context.Context, rv domain.Review) error {
	w.reviews = append(w.reviews, &rv)
	return nil
}

func (w *memWorld) ReviewFor(_ context.Context, rec ldom.Record) (domain.Review, bool, error) {
	for i := len(w.reviews) - 1; i >= 0; i-- {
		r := w.reviews[i].Record
		if r.InvoiceNumber == rec.InvoiceNumber && r.CustomerName == rec.CustomerName && r.AmountCents == rec.AmountCents {
			return *w.reviews[i], true, nil
		}
	}
	return domain.Review{}, false, nil
}

func (w *memWorld) ListPending(context.Context) ([]domain.Review, error) {
	var out []domain.Review
	for _, rv := range w.reviews {
		if rv.Status == domain.StatusPending {
			out = append(out, *rv)
		}
	}
	return out, nil
}

func (w *memWorld) GetReview(_ context.Context, id uuid.UUID) (domain.Review, error) {
	for _, rv := range w.reviews {
		if rv.ID == id {
			return *rv, nil
		}
	}
	return domain.Review{}, perr.NotFoundf("review %s not found", id)
}

func (w *memWorld) LockReview(ctx context.Context, id uuid.UUID) (domain.Review, error) {
	return w.GetReview(ctx, id)
}

func (w *memWorld) MarkResolved(_ context.Context, id uuid.UUID, action domain.Action, t similarity.Triple, at time.Time) error {
	for _, rv := range w.reviews {
		if rv.ID == id && rv.Status == domain.StatusPending {
			rv.Status = domain.StatusResolved
			rv.Resolution = action
			rv.ResolvedProfile, rv.ResolvedStreet, rv.ResolvedCity = t.Name, t.Street, t.City
			rv.ResolvedAt = &at
			return nil
		}
	}
	return perr.Conflictf("review %s not pending", id)
}

func (w *memWorld) Alias(_ context.Context, name string) (similarity.Triple, bool, error) {
	t, ok := w.aliases[name]
	return t, ok, nil
}

func (w *memWorld) SetAliases(_ context.Context, names []string, to similarity.Triple) error {
	for a, t := range w.aliases {
		for _, n := range names {
			if t.Name == n {
				w.aliases[a] = to
			}
		}
	}
	for _, n := range names {
		if n != to.Name {
			w.aliases[n] = to
		}
	}
	delete(w.aliases, to.Name)
	return nil
}

func (w *memWorld) UpsertProfile(_ context.Context, t similarity.Triple, distinct bool) error {
	p, ok := w.profiles[t.Name]
	if !ok {
		p = &memProfile{}
		w.profiles[t.Name] = p
	}
	p.t = t
	p.distinct = p.distinct || distinct
	return nil
}

func (w *memWorld) RewriteIdentity(_ context.Context, names []string, to similarity.Triple) ([]irepo.Renamed, error) {
	var out []irepo.Renamed
	for _, inv := range w.invoices {
		for _, n := range names {
			if inv.rec.CustomerName != n {
				continue
			}
			cur := similarity.Triple{Name: inv.rec.CustomerName, Street: inv.rec.Street, City: inv.rec.City}
			if cur == to {
				continue
			}
			out = append(out, irepo.Renamed{InvoiceID: inv.id, From: inv.rec.CustomerName})
			inv.rec.CustomerName, inv.rec.Street, inv.rec.City = to.Name, to.Street, to.City
		}
	}
	return out, nil
}

func (w *memWorld) MergeProfiles(_ context.Context, names []string, to similarity.Triple) error {
	for _, n := range names {
		if n != to.Name {
			delete(w.profiles, n)
		}
	}
	w.profiles[to.Name] = &memProfile{t: to}
	return nil
}

type memHistory memWorld

func (h *memHistory) Append(_ context.Context, invoiceID int64, typ hdom.EventType, meta map[string]any) (int64, error) {
	id := int64(len(h.events) + 1)
	h.events = append(h.events, hdom.Event{ID: id, InvoiceID: invoiceID, Type: typ, Metadata: meta})
	return id, nil
}

func (h *memHistory) AppendOnce(ctx context.Context, invoiceID int64, typ hdom.EventType, meta map[string]any) (bool, error) {
	_, err := h.Append(ctx, invoiceID, typ, meta)
	return err == nil, err
}

func (h *memHistory) ListForInvoice(context.Context, int64) ([]hdom.Event, error) { return nil, nil }
func (h *memHistory) HasEvent(context.Context, int64, hdom.EventType) (bool, error) {
	return false, nil
}
func (h *memHistory) ClaimUnpublished(context.Context, int) ([]hdom.Event, error) { return nil, nil }
func (h *memHistory) MarkPublished(context.Context, []int64, time.Time) error     { return nil }
