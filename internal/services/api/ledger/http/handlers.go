// Package http provides http transport for the invoice ledger
package http

import (
	stdhttp "net/http"

	"arledger/internal/modkit/httpkit"
	"arledger/internal/platform/net/http/bind"
	hdom "arledger/internal/services/history/domain"
	ldom "arledger/internal/services/ledger/domain"
)

// UncollectibleInput is the body of the uncollectible override
type UncollectibleInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Register mounts ledger endpoints on the given router
func Register(r httpkit.Router, ledger ldom.LedgerPort, history hdom.HistoryPort) {
	h := &handlers{ledger: ledger, history: history}

	httpkit.Get(r, "/invoices", h.list)
	httpkit.Get(r, "/invoices/{id}", h.get)
	httpkit.Get(r, "/invoices/{id}/history", h.events)
	httpkit.PostJSON[UncollectibleInput](r, "/invoices/{id}/uncollectible", h.uncollectible)
	httpkit.Get(r, "/snapshots", h.snapshots)
}

type handlers struct {
	ledger  ldom.LedgerPort
	history hdom.HistoryPort
}

// filterFrom reads the listing filter from the query string
func filterFrom(r *stdhttp.Request) (ldom.Filter, error) {
	f := ldom.Filter{
		Search:    httpkit.QueryString(r, "search"),
		Status:    httpkit.QueryString(r, "status"),
		Period:    httpkit.QueryString(r, "period"),
		Customer:  httpkit.QueryString(r, "customer"),
		Sort:      httpkit.QueryString(r, "sort"),
		Direction: httpkit.QueryString(r, "direction"),
	}
	var err error
	if f.Uncollectible, err = httpkit.QueryBool(r, "uncollectible"); err != nil {
		return f, err
	}
	if f.Limit, err = httpkit.QueryInt(r, "limit", 0); err != nil {
		return f, err
	}
	if f.Offset, err = httpkit.QueryInt(r, "offset", 0); err != nil {
		return f, err
	}
	return f, bind.Validate(f)
}

// swagger:route GET /ledger/invoices Ledger ledgerInvoices
// @Summary List invoices with derived status
// @Tags Ledger
// @Produce json
// @Param status query string false "open, paid or all"
// @Param search query string false "number or customer substring"
// @Param period query string false "YYYY-MM"
// @Success 200 {object} ldom.Page "ok"
// @Router /ledger/invoices [get]
func (h *handlers) list(r *stdhttp.Request) (any, error) {
	f, err := filterFrom(r)
	if err != nil {
		return nil, err
	}
	return h.ledger.ListInvoices(r.Context(), f)
}

// swagger:route GET /ledger/invoices/{id} Ledger ledgerInvoice
// @Summary Get one invoice
// @Tags Ledger
// @Produce json
// @Param id path int true "invoice id"
// @Success 200 {object} ldom.Invoice "ok"
// @Router /ledger/invoices/{id} [get]
func (h *handlers) get(r *stdhttp.Request) (any, error) {
	id, err := httpkit.PathInt64(r, "id")
	if err != nil {
		return nil, err
	}
	return h.ledger.GetInvoice(r.Context(), id)
}

// swagger:route GET /ledger/invoices/{id}/history Ledger ledgerHistory
// @Summary Event history of one invoice, oldest first
// @Tags Ledger
// @Produce json
// @Param id path int true "invoice id"
// @Success 200 {array} hdom.Event "ok"
// @Router /ledger/invoices/{id}/history [get]
func (h *handlers) events(r *stdhttp.Request) (any, error) {
	id, err := httpkit.PathInt64(r, "id")
	if err != nil {
		return nil, err
	}
	// 404 for unknown invoices rather than an empty list
	if _, err := h.ledger.GetInvoice(r.Context(), id); err != nil {
		return nil, err
	}
	return h.history.ListForInvoice(r.Context(), id)
}

// swagger:route POST /ledger/invoices/{id}/uncollectible Ledger ledgerUncollectible
// @Summary Mark an invoice uncollectible
// @Tags Ledger
// @Accept json
// @Produce json
// @Param id path int true "invoice id"
// @Param payload body UncollectibleInput true "Reason"
// @Success 200 {object} ldom.Invoice "ok"
// @Router /ledger/invoices/{id}/uncollectible [post]
func (h *handlers) uncollectible(r *stdhttp.Request, in UncollectibleInput) (any, error) {
	id, err := httpkit.PathInt64(r, "id")
	if err != nil {
		return nil, err
	}
	if err := h.ledger.MarkUncollectible(r.Context(), id, in.Reason); err != nil {
		return nil, err
	}
	return h.ledger.GetInvoice(r.Context(), id)
}

// swagger:route GET /ledger/snapshots Ledger ledgerSnapshots
// @Summary List snapshots newest first
// @Tags Ledger
// @Produce json
// @Success 200 {array} ldom.Snapshot "ok"
// @Router /ledger/snapshots [get]
func (h *handlers) snapshots(r *stdhttp.Request) (any, error) {
	return h.ledger.ListSnapshots(r.Context())
}
