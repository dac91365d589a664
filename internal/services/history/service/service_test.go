package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"arledger/internal/modkit"
	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	"arledger/internal/platform/testkit"
	"arledger/internal/services/history/domain"
	hrepo "arledger/internal/services/history/repo"
)

type fakeTx struct {
	repokit.TxRunner
	rolledBack bool
}

func (f *fakeTx) Tx(ctx context.Context, fn func(q repokit.Queryer) error) error {
	err := fn(nil)
	f.rolledBack = err != nil
	return err
}

type fakeRepo struct {
	hrepo.Repo
	pending   []domain.Event
	published []int64
}

func (r *fakeRepo) ClaimUnpublished(_ context.Context, limit int) ([]domain.Event, error) {
	n := min(limit, len(r.pending))
	return append([]domain.Event(nil), r.pending[:n]...), nil
}

func (r *fakeRepo) MarkPublished(_ context.Context, ids []int64, _ time.Time) error {
	r.published = append(r.published, ids...)
	r.pending = r.pending[len(ids):]
	return nil
}

type fakeSink struct {
	name string
	err  error
	got  int
}

func (s *fakeSink) Name() string { return s.name }
func (s *fakeSink) Publish(_ context.Context, evs []domain.Event) error {
	if s.err != nil {
		return s.err
	}
	s.got += len(evs)
	return nil
}

func newSvc(tx *fakeTx, r *fakeRepo, sinks ...domain.Sink) *Svc {
	return &Svc{
		db:     tx,
		binder: repokit.BindFunc[hrepo.Repo](func(repokit.Queryer) hrepo.Repo { return r }),
		sinks:  sinks,
		cfg:    Config{Batch: 2},
		log:    logger.Named("test"),
		now:    time.Now,
	}
}

func events(n int) []domain.Event {
	out := make([]domain.Event, n)
	for i := range out {
		out[i] = domain.Event{ID: int64(i + 1), InvoiceID: 7, Type: domain.Import}
	}
	return out
}

func TestRelay_PublishesAndMarks(t *testing.T) {
	t.Parallel()

	r := &fakeRepo{pending: events(3)}
	k := &fakeSink{name: "kafka"}
	s := newSvc(&fakeTx{}, r, k)

	rep, err := s.Relay(context.Background(), 0)
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if rep.Claimed != 2 || rep.Published != 2 {
		t.Fatalf("report = %+v, want 2/2", rep)
	}
	if k.got != 2 || len(r.published) != 2 {
		t.Fatalf("sink got %d, marked %d", k.got, len(r.published))
	}
}

func TestRelay_SinkFailureKeepsEventsUnpublished(t *testing.T) {
	t.Parallel()

	r := &fakeRepo{pending: events(1)}
	tx := &fakeTx{}
	s := newSvc(tx, r, &fakeSink{name: "kafka"}, &fakeSink{name: "clickhouse", err: errors.New("down")})

	rep, err := s.Relay(context.Background(), 10)
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("want Unavailable, got %v", err)
	}
	if rep.Published != 0 || len(r.published) != 0 || !tx.rolledBack {
		t.Fatalf("events must stay unpublished: rep=%+v marked=%v", rep, r.published)
	}
}

func TestDrain_UntilEmpty(t *testing.T) {
	t.Parallel()

	r := &fakeRepo{pending: events(5)}
	s := newSvc(&fakeTx{}, r)

	rep, err := s.Drain(context.Background(), 2)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if rep.Published != 5 || len(r.pending) != 0 {
		t.Fatalf("drain = %+v, pending left %d", rep, len(r.pending))
	}
}

func TestNew_PanicsWithoutPG(t *testing.T) {
	t.Parallel()

	testkit.MustPanic(t, func() { _ = New(modkit.Deps{}, Config{}) })
}
