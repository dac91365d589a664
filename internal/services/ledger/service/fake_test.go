package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	hdom "arledger/internal/services/history/domain"
	hrepo "arledger/internal/services/history/repo"
	"arledger/internal/services/ledger/domain"
	"arledger/internal/services/ledger/guardrails"
	lrepo "arledger/internal/services/ledger/repo"
)

type fakeTx struct{ repokit.TxRunner }

func (fakeTx) Tx(_ context.Context, fn func(q repokit.Queryer) error) error { return fn(nil) }

type memSnap struct {
	id        int64
	period    string
	completed bool
}

type memInvoice struct {
	rec           domain.Record
	id            int64
	uncollectible bool
}

// memLedger is an in memory ledger and history store
type memLedger struct {
	mu       sync.Mutex
	snaps    map[string]*memSnap
	invoices []*memInvoice
	links    map[[2]int64]string
	events   []hdom.Event
}

func newMem() *memLedger {
	return &memLedger{snaps: map[string]*memSnap{}, links: map[[2]int64]string{}}
}

func newTestSvc(m *memLedger) *Svc {
	s := &Svc{
		db:      fakeTx{},
		binder:  repokit.BindFunc[lrepo.Repo](func(repokit.Queryer) lrepo.Repo { return m }),
		history: repokit.BindFunc[hrepo.Repo](func(repokit.Queryer) hrepo.Repo { return (*memHistory)(m) }),
		lease:   guardrails.NoLease,
		cfg:     Config{DefaultLimit: 50, MaxRetries: 1},
		log:     logger.Named("test"),
		now:     time.Now,
	}
	s.router = directRouter{s}
	return s
}

func (m *memLedger) EnsureSnapshot(_ context.Context, period, _ string) (lrepo.SnapshotRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[period]
	if !ok {
		s = &memSnap{id: int64(len(m.snaps) + 1), period: period}
		m.snaps[period] = s
	}
	return lrepo.SnapshotRef{ID: s.id, Completed: s.completed}, nil
}

func (m *memLedger) FindSnapshot(_ context.Context, period string) (lrepo.SnapshotRef, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[period]
	if !ok {
		return lrepo.SnapshotRef{}, false, nil
	}
	return lrepo.SnapshotRef{ID: s.id, Completed: s.completed}, true, nil
}

func (m *memLedger) CompleteSnapshot(_ context.Context, period string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[period]
	if ok {
		s.completed = true
	}
	return ok, nil
}

func (m *memLedger) PrevPeriod(_ context.Context, period string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := ""
	for p := range m.snaps {
		if p < period && p > best {
			best = p
		}
	}
	return best, best != "", nil
}

func (m *memLedger) NextPeriod(_ context.Context, period string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := ""
	for p := range m.snaps {
		if p > period && (best == "" || p < best) {
			best = p
		}
	}
	return best, best != "", nil
}

func (m *memLedger) latest() string {
	best := ""
	for p := range m.snaps {
		if p > best {
			best = p
		}
	}
	return best
}

func (m *memLedger) LatestPeriod(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest(), nil
}

func (m *memLedger) ListSnapshots(context.Context) ([]domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Snapshot
	for _, s := range m.snaps {
		out = append(out, domain.Snapshot{ID: s.id, Period: s.period, Completed: s.completed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out, nil
}

func (m *memLedger) find(rec domain.Record) *memInvoice {
	for _, inv := range m.invoices {
		r := inv.rec
		if r.InvoiceNumber == rec.InvoiceNumber && r.CustomerName == rec.CustomerName && r.AmountCents == rec.AmountCents {
			return inv
		}
	}
	return nil
}

func (m *memLedger) FindInvoice(_ context.Context, rec domain.Record) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv := m.find(rec); inv != nil {
		return inv.id, true, nil
	}
	return 0, false, nil
}

func (m *memLedger) CreateInvoice(_ context.Context, rec domain.Record) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv := m.find(rec); inv != nil {
		return inv.id, false, nil
	}
	inv := &memInvoice{rec: rec, id: int64(len(m.invoices) + 1)}
	m.invoices = append(m.invoices, inv)
	return inv.id, true, nil
}

func (m *memLedger) Link(_ context.Context, invoiceID, snapshotID int64, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]int64{invoiceID, snapshotID}
	if _, ok := m.links[k]; ok {
		return false, nil
	}
	m.links[k] = path
	return true, nil
}

func (m *memLedger) HasLink(_ context.Context, invoiceID, snapshotID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.links[[2]int64{invoiceID, snapshotID}]
	return ok, nil
}

func (m *memLedger) linked(invoiceID int64, period string) bool {
	s, ok := m.snaps[period]
	if !ok {
		return false
	}
	_, ok = m.links[[2]int64{invoiceID, s.id}]
	return ok
}

func (m *memLedger) hasPayment(invoiceID int64) bool {
	for _, e := range m.events {
		if e.InvoiceID == invoiceID && e.Type == hdom.PaymentReceived {
			return true
		}
	}
	return false
}

func (m *memLedger) Disappeared(_ context.Context, prev, cur string) ([]domain.PaymentTransition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PaymentTransition
	for _, inv := range m.invoices {
		if m.linked(inv.id, prev) && !m.linked(inv.id, cur) && !m.hasPayment(inv.id) {
			out = append(out, domain.PaymentTransition{
				InvoiceID: inv.id, InvoiceNumber: inv.rec.InvoiceNumber, CustomerName: inv.rec.CustomerName,
				AmountCents: inv.rec.AmountCents, LastSeenPeriod: prev, DetectedAtPeriod: cur,
			})
		}
	}
	return out, nil
}

func (m *memLedger) lastSeen(invoiceID int64) string {
	last := ""
	for p := range m.snaps {
		if m.linked(invoiceID, p) && p > last {
			last = p
		}
	}
	return last
}

func (m *memLedger) InvoicePeriods(_ context.Context, invoiceID int64) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := m.lastSeen(invoiceID)
	if last == "" {
		return "", "", perr.ErrNotFound
	}
	return last, m.latest(), nil
}

func (m *memLedger) view(inv *memInvoice) domain.Invoice {
	last := m.lastSeen(inv.id)
	return domain.Invoice{
		ID: inv.id, Number: inv.rec.InvoiceNumber, CustomerName: inv.rec.CustomerName,
		AmountCents: inv.rec.AmountCents, Uncollectible: inv.uncollectible, LastPeriod: last,
		Status: DeriveStatus(last, m.latest()),
	}
}

func (m *memLedger) GetInvoice(_ context.Context, invoiceID int64) (domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.id == invoiceID {
			return m.view(inv), nil
		}
	}
	return domain.Invoice{}, perr.NotFoundf("invoice %d not found", invoiceID)
}

func (m *memLedger) ListInvoices(_ context.Context, f domain.Filter) ([]domain.Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range m.invoices {
		v := m.view(inv)
		if f.Status != "" && f.Status != "all" && string(v.Status) != f.Status {
			continue
		}
		out = append(out, v)
	}
	return out, len(out), nil
}

func (m *memLedger) SetUncollectible(_ context.Context, invoiceID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.id == invoiceID && !inv.uncollectible {
			inv.uncollectible = true
			return true, nil
		}
	}
	return false, nil
}

// memHistory shares the ledger's lock and event slice
type memHistory memLedger

func (h *memHistory) Append(_ context.Context, invoiceID int64, typ hdom.EventType, meta map[string]any) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := int64(len(h.events) + 1)
	h.events = append(h.events, hdom.Event{ID: id, InvoiceID: invoiceID, Type: typ, Metadata: meta})
	return id, nil
}

func (h *memHistory) AppendOnce(ctx context.Context, invoiceID int64, typ hdom.EventType, meta map[string]any) (bool, error) {
	h.mu.Lock()
	dup := typ == hdom.PaymentReceived && (*memLedger)(h).hasPayment(invoiceID)
	h.mu.Unlock()
	if dup {
		return false, nil
	}
	_, err := h.Append(ctx, invoiceID, typ, meta)
	return err == nil, err
}

func (h *memHistory) ListForInvoice(_ context.Context, invoiceID int64) ([]hdom.Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []hdom.Event
	for _, e := range h.events {
		if e.InvoiceID == invoiceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (h *memHistory) HasEvent(_ context.Context, invoiceID int64, typ hdom.EventType) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.events {
		if e.InvoiceID == invoiceID && e.Type == typ {
			return true, nil
		}
	}
	return false, nil
}

func (h *memHistory) ClaimUnpublished(context.Context, int) ([]hdom.Event, error) { return nil, nil }
func (h *memHistory) MarkPublished(context.Context, []int64, time.Time) error     { return nil }

func (m *memLedger) count(typ hdom.EventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type sliceSource []domain.SourceItem

func (s sliceSource) Scan(context.Context) ([]domain.SourceItem, error) { return s, nil }
