// Package http serves liveness, readiness, build info and metrics
package http

import (
	"context"
	"net/http"
	"time"

	"arledger/internal/core/version"
	"arledger/internal/modkit/httpkit"
)

// Pinger is a dependency readiness can probe
type Pinger interface {
	Ping(context.Context) error
}

// Deps feed the meta routes, PG and CH are probed when they implement Pinger
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	PG          any
	CH          any

	// Metrics serves the prometheus exposition when set
	Metrics http.Handler

	// Modules lists the composed modules
	Modules func() []string
}

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}
	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/ready", h.ready)
	httpkit.Get(r, "/version", h.version)
	if d.Modules != nil {
		httpkit.Get(r, "/modules", h.modules)
	}
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
}

type handlers struct{ deps Deps }

// HealthResponse is the liveness payload
type HealthResponse struct {
	Service string `json:"service" example:"arledger-api"`
	Started string `json:"started" example:"2025-09-03T13:00:00Z"`
	Uptime  int64  `json:"uptime_seconds" example:"300"`
}

// ReadyCheck is one dependency probe, status is ok, fail, skipped or unknown
type ReadyCheck struct {
	Name   string `json:"name" example:"pg"`
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty"`
}

// ReadyResponse is ok, degraded or fail overall
type ReadyResponse struct {
	Status string       `json:"status" example:"ok"`
	Checks []ReadyCheck `json:"checks"`
}

// swagger:route GET /meta/health Meta metaHealth
// @Summary Liveness and uptime
// @Tags Meta
// @Produce json
// @Success 200 {object} HealthResponse "ok"
// @Router /meta/health [get]
func (h *handlers) health(_ *http.Request) (any, error) {
	return HealthResponse{
		Service: h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(time.Since(h.deps.StartedAt) / time.Second),
	}, nil
}

// swagger:route GET /meta/ready Meta metaReady
// @Summary Readiness with dependency probes, ClickHouse never fails it
// @Tags Meta
// @Produce json
// @Success 200 {object} ReadyResponse "ok"
// @Router /meta/ready [get]
func (h *handlers) ready(r *http.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	pg := probe(ctx, "pg", h.deps.PG)
	ch := probe(ctx, "ch", h.deps.CH)

	status := "ok"
	switch {
	case pg.Status == "fail":
		status = "fail"
	case pg.Status != "ok", ch.Status == "fail", ch.Status == "unknown":
		status = "degraded"
	}
	return ReadyResponse{Status: status, Checks: []ReadyCheck{pg, ch}}, nil
}

func probe(ctx context.Context, name string, dep any) ReadyCheck {
	if dep == nil {
		return ReadyCheck{Name: name, Status: "skipped"}
	}
	p, ok := dep.(Pinger)
	if !ok {
		return ReadyCheck{Name: name, Status: "unknown"}
	}
	if err := p.Ping(ctx); err != nil {
		return ReadyCheck{Name: name, Status: "fail", Error: err.Error()}
	}
	return ReadyCheck{Name: name, Status: "ok"}
}

// swagger:route GET /meta/version Meta metaVersion
// @Summary Build information
// @Tags Meta
// @Produce json
// @Success 200 {object} version.BuildInfo "ok"
// @Router /meta/version [get]
func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(h.deps.ServiceName), nil
}

// swagger:route GET /meta/modules Meta metaModules
// @Summary Names of the composed modules
// @Tags Meta
// @Produce json
// @Success 200 {array} string "ok"
// @Router /meta/modules [get]
func (h *handlers) modules(_ *http.Request) (any, error) { return h.deps.Modules(), nil }
