package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"arledger/internal/core/dunning"
	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	"arledger/internal/services/dunning/domain"
	drepo "arledger/internal/services/dunning/repo"
	hdom "arledger/internal/services/history/domain"
	hrepo "arledger/internal/services/history/repo"
)

type fakeTx struct{ repokit.TxRunner }

func (fakeTx) Tx(_ context.Context, fn func(q repokit.Queryer) error) error { return fn(nil) }

type memReminder struct {
	drepo.Reminder
	status string
	jobID  string
	at     time.Time
}

// memDunning stores invoice states, reminders, carrier jobs and history in memory
type memDunning struct {
	latest    string
	states    map[int64]*drepo.InvoiceState
	reminders []*memReminder
	jobs      []drepo.CarrierJob
	events    []hdom.Event

	// onRecheck runs when the commit transaction re-reads an invoice
	onRecheck func(id int64)
	locked    bool
}

func newMem() *memDunning {
	return &memDunning{latest: "2025-04", states: map[int64]*drepo.InvoiceState{}}
}

func (m *memDunning) add(id int64, name string, date time.Time) *drepo.InvoiceState {
	st := &drepo.InvoiceState{
		InvoiceID:     id,
		InvoiceNumber: "INV-" + ref(id),
		CustomerName:  name,
		Street:        "Hauptstr. 5",
		City:          "Alzey",
		Date:          date,
		AmountCents:   10000,
		Open:          true,
		SourcePath:    "2025-04/INV-" + ref(id) + ".pdf",
	}
	m.states[id] = st
	return st
}

func (m *memDunning) LatestPeriod(context.Context) (string, bool, error) {
	return m.latest, m.latest != "", nil
}

func (m *memDunning) OpenInvoices(context.Context) ([]drepo.InvoiceState, error) {
	var out []drepo.InvoiceState
	for _, st := range m.states {
		if st.Open && !st.Uncollectible && !st.NeverRemind {
			out = append(out, *m.withLast(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceID < out[j].InvoiceID })
	return out, nil
}

func (m *memDunning) withLast(st *drepo.InvoiceState) *drepo.InvoiceState {
	cp := *st
	for _, r := range m.reminders {
		if r.InvoiceID == st.InvoiceID {
			cp.LastLevel = r.Level.Ptr()
			at := r.at
			cp.LastReminderAt = &at
		}
	}
	return &cp
}

func (m *memDunning) InvoiceState(_ context.Context, id int64) (drepo.InvoiceState, error) {
	if m.locked && m.onRecheck != nil {
		m.onRecheck(id)
	}
	st, ok := m.states[id]
	if !ok {
		return drepo.InvoiceState{}, perr.NotFoundf("invoice %d not found", id)
	}
	return *m.withLast(st), nil
}

func (m *memDunning) LockInvoices(context.Context, []int64) error {
	m.locked = true
	return nil
}

func (m *memDunning) InsertReminder(_ context.Context, r drepo.Reminder) (int64, error) {
	m.reminders = append(m.reminders, &memReminder{Reminder: r, status: domain.DispatchPending, at: time.Now()})
	return int64(len(m.reminders)), nil
}

func (m *memDunning) PendingGroups(context.Context) ([]drepo.PendingGroup, error) {
	var (
		out   []drepo.PendingGroup
		index = map[uuid.UUID]int{}
	)
	for _, r := range m.reminders {
		if r.status != domain.DispatchPending {
			continue
		}
		i, ok := index[r.GroupID]
		if !ok {
			i = len(out)
			index[r.GroupID] = i
			out = append(out, drepo.PendingGroup{
				GroupID: r.GroupID, ArtifactRef: r.ArtifactRef, Level: r.Level,
				CustomerName: m.states[r.InvoiceID].CustomerName,
			})
		}
		out[i].InvoiceIDs = append(out[i].InvoiceIDs, r.InvoiceID)
	}
	return out, nil
}

func (m *memDunning) MarkSubmitted(_ context.Context, groupID uuid.UUID, jobID string, _ int64) (int64, error) {
	var n int64
	for _, r := range m.reminders {
		if r.GroupID == groupID && r.status == domain.DispatchPending {
			r.status, r.jobID = domain.DispatchSubmitted, jobID
			n++
		}
	}
	return n, nil
}

func (m *memDunning) InsertCarrierJob(_ context.Context, j drepo.CarrierJob) error {
	m.jobs = append(m.jobs, j)
	return nil
}

func (m *memDunning) levels(id int64) []dunning.Level {
	var out []dunning.Level
	for _, r := range m.reminders {
		if r.InvoiceID == id {
			out = append(out, r.Level)
		}
	}
	return out
}

func (m *memDunning) count(typ hdom.EventType) int {
	n := 0
	for _, e := range m.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type memHistory memDunning

func (h *memHistory) Append(_ context.Context, invoiceID int64, typ hdom.EventType, meta map[string]any) (int64, error) {
	h.events = append(h.events, hdom.Event{ID: int64(len(h.events) + 1), InvoiceID: invoiceID, Type: typ, Metadata: meta})
	return int64(len(h.events)), nil
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

// fakeRenderer fails for customers listed in failFor
type fakeRenderer struct {
	mu      sync.Mutex
	failFor map[string]bool
	reqs    []domain.LetterRequest
}

func (f *fakeRenderer) Render(_ context.Context, req domain.LetterRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.failFor[req.CustomerName] {
		return nil, errors.New("renderer down")
	}
	return []byte("%PDF-1.7 " + req.CustomerName), nil
}

type memArtifacts struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func (a *memArtifacts) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objs == nil {
		a.objs = map[string][]byte{}
	}
	a.objs[key] = body
	return key, nil
}

func (a *memArtifacts) Get(_ context.Context, ref string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.objs[ref]
	if !ok {
		return nil, perr.NotFoundf("artifact %s", ref)
	}
	return b, nil
}

type fakeCarrier struct {
	letters []domain.Letter
	failOn  int
}

func (c *fakeCarrier) Submit(_ context.Context, l domain.Letter) (domain.Job, error) {
	c.letters = append(c.letters, l)
	if c.failOn == len(c.letters) {
		return domain.Job{}, perr.Unavailablef("carrier rejected letter")
	}
	return domain.Job{ID: "job-" + ref(int64(len(c.letters))), Status: "queue", PriceCents: 145, Mode: "test"}, nil
}

func (c *fakeCarrier) Balance(context.Context) (domain.Balance, error) {
	return domain.Balance{Cents: 5000, Currency: "EUR"}, nil
}

func (c *fakeCarrier) Price(_ context.Context, q domain.PriceQuery) (int64, error) {
	return int64(q.Pages) * 100, nil
}

func newTestSvc(m *memDunning, r *fakeRenderer, c *fakeCarrier) *Svc {
	var carrier domain.Carrier
	if c != nil {
		carrier = c
	}
	return &Svc{
		db:        fakeTx{},
		binder:    repokit.BindFunc[drepo.Repo](func(repokit.Queryer) drepo.Repo { return m }),
		history:   repokit.BindFunc[hrepo.Repo](func(repokit.Queryer) hrepo.Repo { return (*memHistory)(m) }),
		renderer:  r,
		artifacts: &memArtifacts{},
		carrier:   carrier,
		cfg:       Config{RenderParallel: 2, ArtifactPrefix: "reminders", CarrierMode: "test"},
		log:       logger.Named("test"),
		now:       func() time.Time { return time.Date(2025, 4, 15, 9, 0, 0, 0, time.UTC) },
	}
}

func reminderRow(id int64, l dunning.Level) drepo.Reminder {
	return drepo.Reminder{InvoiceID: id, Level: l, GroupID: uuid.New(), ArtifactRef: "seed"}
}
