// Package module mounts the dunning and carrier routes using modkit
package module

import (
	modkit "arledger/internal/modkit"
	"arledger/internal/modkit/httpkit"
	dunninghttp "arledger/internal/services/api/dunning/http"
	"arledger/internal/services/dunning/domain"
)

// Ports declares the service port this API module requires
type Ports struct {
	Dunning domain.DunningPort
}

// Module implements the modkit.Module interface
type Module struct {
	modkit.Mounted
	ports Ports
}

// New constructs the dunning API module, Ports must be injected with modkit.WithPorts
func New(_ modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("dunning-api"), modkit.WithPrefix("/dunning")}, opts...)...)

	p, ok := b.Ports.(Ports)
	if !ok || p.Dunning == nil {
		panic("dunning API module requires the Dunning port")
	}
	return &Module{
		Mounted: modkit.Mount(b, func(r httpkit.Router) { dunninghttp.Register(r, p.Dunning) }),
		ports:   p,
	}
}

// Ports returns the injected ports
func (m *Module) Ports() any { return m.ports }
