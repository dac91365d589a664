// Package http provides http transport for the identity review queue
package http

import (
	stdhttp "net/http"

	"github.com/google/uuid"

	"arledger/internal/modkit/httpkit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/services/identity/domain"
)

// Register mounts identity endpoints on the given router
func Register(r httpkit.Router, p domain.IdentityPort) {
	h := &handlers{port: p}

	httpkit.Get(r, "/reviews", h.list)
	httpkit.Get(r, "/reviews/{id}", h.get)
	httpkit.PostJSON[domain.ResolveArgs](r, "/reviews/{id}/resolve", h.resolve)
	httpkit.PostJSON[domain.CandidateQuery](r, "/candidates", h.candidates)
}

type handlers struct{ port domain.IdentityPort }

func reviewID(r *stdhttp.Request) (uuid.UUID, error) {
	raw, err := httpkit.PathString(r, "id")
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, perr.WithField(perr.InvalidArgf("id must be a uuid"), "id")
	}
	return id, nil
}

// swagger:route GET /identity/reviews Identity identityReviews
// @Summary Pending reviews oldest first
// @Tags Identity
// @Produce json
// @Success 200 {array} domain.Review "ok"
// @Router /identity/reviews [get]
func (h *handlers) list(r *stdhttp.Request) (any, error) {
	return h.port.ListPending(r.Context())
}

// swagger:route GET /identity/reviews/{id} Identity identityReview
// @Summary One review with its candidates
// @Tags Identity
// @Produce json
// @Param id path string true "review id"
// @Success 200 {object} domain.Review "ok"
// @Router /identity/reviews/{id} [get]
func (h *handlers) get(r *stdhttp.Request) (any, error) {
	id, err := reviewID(r)
	if err != nil {
		return nil, err
	}
	return h.port.GetPending(r.Context(), id)
}

// swagger:route POST /identity/reviews/{id}/resolve Identity identityResolve
// @Summary Resolve a review by creating a new identity or merging into an existing one
// @Tags Identity
// @Accept json
// @Produce json
// @Param id path string true "review id"
// @Param payload body domain.ResolveArgs true "Decision"
// @Success 200 {object} domain.Resolution "ok"
// @Router /identity/reviews/{id}/resolve [post]
func (h *handlers) resolve(r *stdhttp.Request, in domain.ResolveArgs) (any, error) {
	id, err := reviewID(r)
	if err != nil {
		return nil, err
	}
	if in.Action == domain.MergeWithExisting && in.ChosenName == "" {
		return nil, perr.WithField(perr.InvalidArgf("chosen_name is required to merge"), "chosen_name")
	}
	return h.port.ResolvePending(r.Context(), id, in)
}

// swagger:route POST /identity/candidates Identity identityCandidates
// @Summary Existing identities resembling a name and address
// @Tags Identity
// @Accept json
// @Produce json
// @Param payload body domain.CandidateQuery true "Query"
// @Success 200 {array} domain.Candidate "ok"
// @Router /identity/candidates [post]
func (h *handlers) candidates(r *stdhttp.Request, in domain.CandidateQuery) (any, error) {
	return h.port.FindCandidates(r.Context(), in)
}
