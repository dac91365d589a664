//go:build integration_pg

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/go-chi/chi/v5"

	"arledger/internal/adapters/artifacts"
	"arledger/internal/adapters/records"
	"arledger/internal/modkit"
	"arledger/internal/modkit/module"
	"arledger/internal/platform/config"
	"arledger/internal/platform/logger"
	"arledger/internal/platform/migrate/pgtest"
	phttp "arledger/internal/platform/net/http"
	ddom "arledger/internal/services/dunning/domain"
	hdom "arledger/internal/services/history/domain"
	identitymod "arledger/internal/services/identity/module"
	ldom "arledger/internal/services/ledger/domain"
	ledgermod "arledger/internal/services/ledger/module"
)

type pdfRenderer struct{}

func (pdfRenderer) Render(_ context.Context, req ddom.LetterRequest) ([]byte, error) {
	return []byte(fmt.Sprintf("%%PDF-1.4 %d items", len(req.Items))), nil
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
}

func call(t *testing.T, h http.Handler, method, path string, body any) envelope {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s %s: status %d body %s", method, path, rec.Code, rec.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode: %v", method, path, err)
	}
	return env
}

func TestLedgerLifecycle(t *testing.T) {
	t.Setenv("CORE_API_JWT_SECRET", "")
	st := pgtest.Start(t)
	ctx := context.Background()

	deps := modkit.Deps{Log: *logger.Get(), Cfg: config.New(), PG: st.PG}
	lm := ledgermod.New(deps)
	lp := module.MustPortsOf[ledgermod.Ports](lm)
	identitymod.New(deps, lp)

	// R-1 disappears in February, the March folder completes February
	fsys := fstest.MapFS{
		"2025-01 Januar/R-1.json":  {Data: []byte(`{"invoice_number":"R-1","date":"03.01.2025","customer_name":"Anna Berg","street":"Hauptstr. 1","city":"55232 Alzey","amount":"120,00"}`)},
		"2025-01 Januar/R-2.json":  {Data: []byte(`{"invoice_number":"R-2","date":"05.01.2025","customer_name":"Karl Weber","street":"Ringweg 4","city":"55116 Mainz","amount_cents":5000}`)},
		"2025-02 Februar/R-2.json": {Data: []byte(`{"invoice_number":"R-2","date":"05.01.2025","customer_name":"Karl Weber","street":"Ringweg 4","city":"55116 Mainz","amount_cents":5000}`)},
		"2025-03 März/R-2.json":    {Data: []byte(`{"invoice_number":"R-2","date":"05.01.2025","customer_name":"Karl Weber","street":"Ringweg 4","city":"55116 Mainz","amount_cents":5000}`)},
	}
	rep, err := lp.Sweep.Sweep(ctx, records.NewFS(fsys))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(rep.Periods) != 3 {
		t.Fatalf("want 3 periods, got %+v", rep.Periods)
	}
	if !rep.Periods[0].Completed || !rep.Periods[1].Completed || rep.Periods[2].Completed {
		t.Fatalf("completion %+v", rep.Periods)
	}
	if rep.Periods[1].Payments != 1 {
		t.Fatalf("february payments %d", rep.Periods[1].Payments)
	}

	store, err := artifacts.NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	mux := chi.NewRouter()
	if err := Mount(phttp.AdaptChi(mux), Options{
		Config:    config.New(),
		Store:     st,
		Renderer:  pdfRenderer{},
		Artifacts: store,
	}); err != nil {
		t.Fatalf("mount: %v", err)
	}

	env := call(t, mux, http.MethodGet, "/api/v1/ledger/invoices?status=paid", nil)
	var paid ldom.Page
	if err := json.Unmarshal(env.Data, &paid); err != nil {
		t.Fatal(err)
	}
	if paid.Total != 1 || paid.Items[0].Number != "R-1" || paid.Items[0].Status != ldom.Paid {
		t.Fatalf("paid page %+v", paid)
	}

	env = call(t, mux, http.MethodGet, "/api/v1/ledger/invoices?status=open", nil)
	var open ldom.Page
	if err := json.Unmarshal(env.Data, &open); err != nil {
		t.Fatal(err)
	}
	if open.Total != 1 || open.Items[0].Number != "R-2" {
		t.Fatalf("open page %+v", open)
	}
	r2 := open.Items[0].ID

	env = call(t, mux, http.MethodGet, fmt.Sprintf("/api/v1/ledger/invoices/%d/history", paid.Items[0].ID), nil)
	var evs []hdom.Event
	if err := json.Unmarshal(env.Data, &evs); err != nil {
		t.Fatal(err)
	}
	if !hasEvent(evs, hdom.Import) || !hasEvent(evs, hdom.PaymentReceived) {
		t.Fatalf("R-1 history %+v", evs)
	}

	env = call(t, mux, http.MethodGet, "/api/v1/dunning/recommendations?as_of=2025-04-15", nil)
	var recs []ddom.Recommendation
	if err := json.Unmarshal(env.Data, &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].InvoiceID != r2 || recs[0].Recommended == nil {
		t.Fatalf("recommendations %+v", recs)
	}

	env = call(t, mux, http.MethodPost, "/api/v1/dunning/reminders", map[string]any{
		"selections": []map[string]any{{"invoice_id": r2, "level": int(*recs[0].Recommended)}},
	})
	var created ddom.CreateReport
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.Counts["ok"] != 1 || len(created.Groups) != 1 || created.Groups[0].ArtifactRef == "" {
		t.Fatalf("create report %+v", created)
	}

	env = call(t, mux, http.MethodGet, fmt.Sprintf("/api/v1/ledger/invoices/%d/history", r2), nil)
	evs = nil
	if err := json.Unmarshal(env.Data, &evs); err != nil {
		t.Fatal(err)
	}
	if !hasEvent(evs, hdom.ReminderCreated) {
		t.Fatalf("R-2 history %+v", evs)
	}

	env = call(t, mux, http.MethodPost, fmt.Sprintf("/api/v1/ledger/invoices/%d/uncollectible", r2), map[string]string{"reason": "moved abroad"})
	var inv ldom.Invoice
	if err := json.Unmarshal(env.Data, &inv); err != nil {
		t.Fatal(err)
	}
	if !inv.Uncollectible {
		t.Fatalf("invoice %+v", inv)
	}
}

func hasEvent(evs []hdom.Event, typ hdom.EventType) bool {
	for _, e := range evs {
		if e.Type == typ {
			return true
		}
	}
	return false
}
