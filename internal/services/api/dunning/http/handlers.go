// Package http provides http transport for reminders and the postal carrier
package http

import (
	stdhttp "net/http"
	"time"

	"arledger/internal/modkit/httpkit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/services/dunning/domain"
)

// RemindersInput selects invoices and levels for new reminders
type RemindersInput struct {
	Selections []domain.Selection `json:"selections" validate:"required,min=1,max=500,dive"`
}

// PriceResponse is a carrier quote
type PriceResponse struct {
	Pages      int   `json:"pages"`
	PriceCents int64 `json:"price_cents"`
}

// Register mounts dunning endpoints on the given router
func Register(r httpkit.Router, p domain.DunningPort) {
	h := &handlers{port: p}

	httpkit.Get(r, "/recommendations", h.recommendations)
	httpkit.PostJSON[RemindersInput](r, "/reminders", h.reminders)
	httpkit.PostJSON[domain.PrintSpec](r, "/dispatch", h.dispatch)
	httpkit.Get(r, "/carrier/balance", h.balance)
	httpkit.PostJSON[domain.PriceQuery](r, "/carrier/price", h.price)
}

type handlers struct{ port domain.DunningPort }

// swagger:route GET /dunning/recommendations Dunning dunningRecommendations
// @Summary Open invoices with their recommended reminder level
// @Tags Dunning
// @Produce json
// @Param as_of query string false "reference date YYYY-MM-DD, defaults to today"
// @Success 200 {array} domain.Recommendation "ok"
// @Router /dunning/recommendations [get]
func (h *handlers) recommendations(r *stdhttp.Request) (any, error) {
	var asOf time.Time
	if raw := httpkit.QueryString(r, "as_of"); raw != "" {
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, perr.WithField(perr.InvalidArgf("as_of must be YYYY-MM-DD"), "as_of")
		}
		asOf = t
	}
	return h.port.Recommendations(r.Context(), asOf)
}

// swagger:route POST /dunning/reminders Dunning dunningReminders
// @Summary Create reminders, one letter per customer and level
// @Tags Dunning
// @Accept json
// @Produce json
// @Param payload body RemindersInput true "Selections"
// @Success 200 {object} domain.CreateReport "ok"
// @Router /dunning/reminders [post]
func (h *handlers) reminders(r *stdhttp.Request, in RemindersInput) (any, error) {
	return h.port.CreateReminders(r.Context(), in.Selections)
}

// swagger:route POST /dunning/dispatch Dunning dunningDispatch
// @Summary Submit pending letters to the postal carrier
// @Tags Dunning
// @Accept json
// @Produce json
// @Param payload body domain.PrintSpec true "Print options, empty fields use defaults"
// @Success 200 {object} domain.DispatchReport "ok"
// @Router /dunning/dispatch [post]
func (h *handlers) dispatch(r *stdhttp.Request, in domain.PrintSpec) (any, error) {
	return h.port.Dispatch(r.Context(), in)
}

// swagger:route GET /dunning/carrier/balance Dunning dunningBalance
// @Summary Prepaid carrier balance
// @Tags Dunning
// @Produce json
// @Success 200 {object} domain.Balance "ok"
// @Router /dunning/carrier/balance [get]
func (h *handlers) balance(r *stdhttp.Request) (any, error) {
	return h.port.CarrierBalance(r.Context())
}

// swagger:route POST /dunning/carrier/price Dunning dunningPrice
// @Summary Quote one letter
// @Tags Dunning
// @Accept json
// @Produce json
// @Param payload body domain.PriceQuery true "Pages and print options"
// @Success 200 {object} PriceResponse "ok"
// @Router /dunning/carrier/price [post]
func (h *handlers) price(r *stdhttp.Request, in domain.PriceQuery) (any, error) {
	cents, err := h.port.CarrierPrice(r.Context(), in)
	if err != nil {
		return nil, err
	}
	return PriceResponse{Pages: in.Pages, PriceCents: cents}, nil
}
