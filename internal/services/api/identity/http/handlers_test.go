package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	perr "arledger/internal/platform/errors"
	phttp "arledger/internal/platform/net/http"
	"arledger/internal/services/identity/domain"
)

type fakeIdentity struct {
	domain.IdentityPort

	resolved map[uuid.UUID]domain.ResolveArgs
	query    domain.CandidateQuery
}

func (f *fakeIdentity) ListPending(context.Context) ([]domain.Review, error) {
	return []domain.Review{{ID: uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e"), Status: domain.StatusPending}}, nil
}

func (f *fakeIdentity) GetPending(_ context.Context, id uuid.UUID) (domain.Review, error) {
	return domain.Review{}, perr.NotFoundf("review %s not found", id)
}

func (f *fakeIdentity) ResolvePending(_ context.Context, id uuid.UUID, a domain.ResolveArgs) (domain.Resolution, error) {
	if _, done := f.resolved[id]; done {
		return domain.Resolution{}, domain.ErrReviewResolved
	}
	f.resolved[id] = a
	return domain.Resolution{ReviewID: id, Action: a.Action, Profile: a.ChosenName}, nil
}

func (f *fakeIdentity) FindCandidates(_ context.Context, q domain.CandidateQuery) ([]domain.Candidate, error) {
	f.query = q
	return []domain.Candidate{{Name: "Jon Müller", Score: 91.5}}, nil
}

func serve(f *fakeIdentity, method, target, body string) *httptest.ResponseRecorder {
	m := chi.NewRouter()
	phttp.AdaptChi(m).Route("/identity", func(r phttp.Router) { Register(r, f) })
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestReviews(t *testing.T) {
	f := &fakeIdentity{resolved: map[uuid.UUID]domain.ResolveArgs{}}

	rec := serve(f, stdhttp.MethodGet, "/identity/reviews", "")
	if rec.Code != stdhttp.StatusOK || !strings.Contains(rec.Body.String(), "0f8fad5b") {
		t.Fatalf("list %d %s", rec.Code, rec.Body)
	}
	if rec := serve(f, stdhttp.MethodGet, "/identity/reviews/not-a-uuid", ""); rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("bad id %d", rec.Code)
	}
	if rec := serve(f, stdhttp.MethodGet, "/identity/reviews/"+uuid.NewString(), ""); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("missing %d", rec.Code)
	}
}

func TestResolve(t *testing.T) {
	f := &fakeIdentity{resolved: map[uuid.UUID]domain.ResolveArgs{}}
	id := uuid.NewString()
	path := "/identity/reviews/" + id + "/resolve"

	if rec := serve(f, stdhttp.MethodPost, path, `{"action":"merge"}`); rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("bad action %d", rec.Code)
	}
	if rec := serve(f, stdhttp.MethodPost, path, `{"action":"mergeWithExisting"}`); rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("merge without name %d", rec.Code)
	}

	rec := serve(f, stdhttp.MethodPost, path, `{"action":"mergeWithExisting","chosen_name":"Jon Müller","prefer_new_data":true}`)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("resolve %d %s", rec.Code, rec.Body)
	}
	got := f.resolved[uuid.MustParse(id)]
	if got.ChosenName != "Jon Müller" || !got.PreferNewData {
		t.Fatalf("args %+v", got)
	}

	if rec := serve(f, stdhttp.MethodPost, path, `{"action":"createNew"}`); rec.Code != stdhttp.StatusConflict {
		t.Fatalf("second resolve %d", rec.Code)
	}
}

func TestCandidates(t *testing.T) {
	f := &fakeIdentity{}
	rec := serve(f, stdhttp.MethodPost, "/identity/candidates", `{"name":"Jon Mueller","city":"Alzey","threshold":85}`)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status %d %s", rec.Code, rec.Body)
	}
	if f.query.Name != "Jon Mueller" || f.query.Threshold != 85 {
		t.Fatalf("query %+v", f.query)
	}
	var env struct {
		Data []domain.Candidate `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil || len(env.Data) != 1 || env.Data[0].Score != 91.5 {
		t.Fatalf("body %s err=%v", rec.Body, err)
	}

	if rec := serve(f, stdhttp.MethodPost, "/identity/candidates", `{"city":"Alzey"}`); rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("missing name %d", rec.Code)
	}
}
