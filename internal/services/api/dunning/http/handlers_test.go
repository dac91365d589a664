package http

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"arledger/internal/core/dunning"
	perr "arledger/internal/platform/errors"
	phttp "arledger/internal/platform/net/http"
	"arledger/internal/services/dunning/domain"
)

type fakeDunning struct {
	domain.DunningPort

	asOf   time.Time
	sels   []domain.Selection
	spec   domain.PrintSpec
	noCarr bool
}

func (f *fakeDunning) Recommendations(_ context.Context, now time.Time) ([]domain.Recommendation, error) {
	f.asOf = now
	return []domain.Recommendation{{InvoiceID: 1, StatusText: "Erinnerung empfohlen"}}, nil
}

func (f *fakeDunning) CreateReminders(_ context.Context, sels []domain.Selection) (domain.CreateReport, error) {
	f.sels = sels
	return domain.CreateReport{Counts: map[string]int{"created": len(sels)}}, nil
}

func (f *fakeDunning) Dispatch(_ context.Context, spec domain.PrintSpec) (domain.DispatchReport, error) {
	f.spec = spec
	return domain.DispatchReport{Submitted: 1}, nil
}

func (f *fakeDunning) CarrierBalance(context.Context) (domain.Balance, error) {
	if f.noCarr {
		return domain.Balance{}, perr.Unavailablef("carrier is not configured")
	}
	return domain.Balance{Cents: 2500, Currency: "EUR"}, nil
}

func (f *fakeDunning) CarrierPrice(_ context.Context, q domain.PriceQuery) (int64, error) {
	return int64(q.Pages) * 85, nil
}

func serve(f *fakeDunning, method, target, body string) *httptest.ResponseRecorder {
	m := chi.NewRouter()
	phttp.AdaptChi(m).Route("/dunning", func(r phttp.Router) { Register(r, f) })
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestRecommendations(t *testing.T) {
	f := &fakeDunning{}
	if rec := serve(f, stdhttp.MethodGet, "/dunning/recommendations", ""); rec.Code != stdhttp.StatusOK || !f.asOf.IsZero() {
		t.Fatalf("default %d asOf=%v", rec.Code, f.asOf)
	}
	if rec := serve(f, stdhttp.MethodGet, "/dunning/recommendations?as_of=2025-06-30", ""); rec.Code != stdhttp.StatusOK {
		t.Fatalf("as_of %d", rec.Code)
	}
	if !f.asOf.Equal(time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("asOf %v", f.asOf)
	}
	if rec := serve(f, stdhttp.MethodGet, "/dunning/recommendations?as_of=30.06.2025", ""); rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("bad as_of %d", rec.Code)
	}
}

func TestReminders(t *testing.T) {
	f := &fakeDunning{}
	rec := serve(f, stdhttp.MethodPost, "/dunning/reminders", `{"selections":[{"invoice_id":4,"level":1},{"invoice_id":5,"level":0}]}`)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status %d %s", rec.Code, rec.Body)
	}
	if len(f.sels) != 2 || f.sels[0].Level != dunning.Level(1) || f.sels[1].InvoiceID != 5 {
		t.Fatalf("sels %+v", f.sels)
	}

	for _, body := range []string{`{"selections":[]}`, `{"selections":[{"invoice_id":0,"level":0}]}`, `{"selections":[{"invoice_id":1,"level":3}]}`} {
		if rec := serve(f, stdhttp.MethodPost, "/dunning/reminders", body); rec.Code != stdhttp.StatusBadRequest {
			t.Fatalf("%s: %d", body, rec.Code)
		}
	}
}

func TestDispatchAndCarrier(t *testing.T) {
	f := &fakeDunning{}
	if rec := serve(f, stdhttp.MethodPost, "/dunning/dispatch", `{"mode":"simplex","registered":"r1"}`); rec.Code != stdhttp.StatusOK {
		t.Fatalf("dispatch %d", rec.Code)
	}
	if f.spec.Mode != "simplex" || f.spec.Registered != "r1" {
		t.Fatalf("spec %+v", f.spec)
	}
	if rec := serve(f, stdhttp.MethodPost, "/dunning/dispatch", `{"shipping":"moon"}`); rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("bad spec %d", rec.Code)
	}

	rec := serve(f, stdhttp.MethodPost, "/dunning/carrier/price", `{"pages":3}`)
	if rec.Code != stdhttp.StatusOK || !strings.Contains(rec.Body.String(), `"price_cents":255`) {
		t.Fatalf("price %d %s", rec.Code, rec.Body)
	}
	if rec := serve(f, stdhttp.MethodPost, "/dunning/carrier/price", `{"pages":0}`); rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("zero pages %d", rec.Code)
	}

	if rec := serve(f, stdhttp.MethodGet, "/dunning/carrier/balance", ""); !strings.Contains(rec.Body.String(), `"cents":2500`) {
		t.Fatalf("balance %s", rec.Body)
	}
	f.noCarr = true
	if rec := serve(f, stdhttp.MethodGet, "/dunning/carrier/balance", ""); rec.Code != stdhttp.StatusServiceUnavailable {
		t.Fatalf("no carrier %d", rec.Code)
	}
}
