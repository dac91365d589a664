// Package module mounts the meta routes, they stay outside bearer auth
package module

import (
	"time"

	"arledger/internal/modkit"
	"arledger/internal/modkit/httpkit"
	"arledger/internal/modkit/module"
	"arledger/internal/platform/metrics"
	metahttp "arledger/internal/services/api/meta/http"
)

// Module implements modkit.Module
type Module struct {
	modkit.Mounted
}

// New probes deps.PG and deps.CH for readiness
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("meta"), modkit.WithPrefix("/meta")}, opts...)...)
	d := metahttp.Deps{
		ServiceName: "arledger-api",
		StartedAt:   time.Now(),
		PG:          deps.PG,
		CH:          deps.CH,
		Metrics:     metrics.Handler(),
		Modules:     module.Names,
	}
	return &Module{Mounted: modkit.Mount(b, func(r httpkit.Router) { metahttp.Register(r, d) })}
}

// Ports is nil, meta exposes nothing to other modules
func (m *Module) Ports() any { return nil }
