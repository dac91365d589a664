// Package http provides http transport for customer profiles
package http

import (
	stdhttp "net/http"
	"net/url"

	"arledger/internal/core/outcome"
	"arledger/internal/modkit/httpkit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/net/http/bind"
	"arledger/internal/services/customers/domain"
)

// ListResponse is one page of profiles
type ListResponse struct {
	Items  []domain.Profile `json:"items"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// SalutationsResponse reports one outcome per looked up profile
type SalutationsResponse struct {
	Results []outcome.Outcome `json:"results"`
	Counts  map[string]int    `json:"counts"`
}

// Register mounts customer endpoints on the given router
func Register(r httpkit.Router, p domain.CustomersPort) {
	h := &handlers{port: p}

	httpkit.Get(r, "/", h.list)
	httpkit.Post(r, "/salutations", h.salutations)
	httpkit.Get(r, "/{name}", h.get)
	httpkit.PutJSON[domain.Update](r, "/{name}", h.update)
}

type handlers struct{ port domain.CustomersPort }

// customer names are free text, chi hands back the escaped form when the path needed escaping
func nameParam(r *stdhttp.Request) (string, error) {
	raw, err := httpkit.PathString(r, "name")
	if err != nil {
		return "", err
	}
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", perr.WithField(perr.InvalidArgf("malformed name"), "name")
	}
	return name, nil
}

// swagger:route GET /customers Customers customersList
// @Summary List customer profiles
// @Tags Customers
// @Produce json
// @Param search query string false "name substring"
// @Success 200 {object} ListResponse "ok"
// @Router /customers [get]
func (h *handlers) list(r *stdhttp.Request) (any, error) {
	q := domain.ListQuery{Search: httpkit.QueryString(r, "search")}
	var err error
	if q.Limit, err = httpkit.QueryInt(r, "limit", 0); err != nil {
		return nil, err
	}
	if q.Offset, err = httpkit.QueryInt(r, "offset", 0); err != nil {
		return nil, err
	}
	if err := bind.Validate(q); err != nil {
		return nil, err
	}
	items, total, err := h.port.List(r.Context(), q)
	if err != nil {
		return nil, err
	}
	return ListResponse{Items: items, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}

// swagger:route GET /customers/{name} Customers customersGet
// @Summary One customer profile
// @Tags Customers
// @Produce json
// @Param name path string true "customer name"
// @Success 200 {object} domain.Profile "ok"
// @Router /customers/{name} [get]
func (h *handlers) get(r *stdhttp.Request) (any, error) {
	name, err := nameParam(r)
	if err != nil {
		return nil, err
	}
	return h.port.Get(r.Context(), name)
}

// swagger:route PUT /customers/{name} Customers customersUpdate
// @Summary Change profile settings
// @Tags Customers
// @Accept json
// @Produce json
// @Param name path string true "customer name"
// @Param payload body domain.Update true "Fields to change"
// @Success 200 {object} domain.Profile "ok"
// @Router /customers/{name} [put]
func (h *handlers) update(r *stdhttp.Request, in domain.Update) (any, error) {
	name, err := nameParam(r)
	if err != nil {
		return nil, err
	}
	return h.port.Update(r.Context(), name, in)
}

// swagger:route POST /customers/salutations Customers customersSalutations
// @Summary Fill in missing salutations from first names
// @Tags Customers
// @Produce json
// @Success 200 {object} SalutationsResponse "ok"
// @Router /customers/salutations [post]
func (h *handlers) salutations(r *stdhttp.Request) (any, error) {
	outs, err := h.port.DetermineSalutations(r.Context())
	if err != nil {
		return nil, err
	}
	return SalutationsResponse{Results: outs, Counts: outcome.Count(outs)}, nil
}
