// Package module mounts the identity review routes using modkit
package module

import (
	modkit "arledger/internal/modkit"
	"arledger/internal/modkit/httpkit"
	identityhttp "arledger/internal/services/api/identity/http"
	"arledger/internal/services/identity/domain"
)

// Ports declares the service port this API module requires
type Ports struct {
	Identity domain.IdentityPort
}

// Module implements the modkit.Module interface
type Module struct {
	modkit.Mounted
	ports Ports
}

// New constructs the identity API module, Ports must be injected with modkit.WithPorts
func New(_ modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("identity-api"), modkit.WithPrefix("/identity")}, opts...)...)

	p, ok := b.Ports.(Ports)
	if !ok || p.Identity == nil {
		panic("identity API module requires the Identity port")
	}
	return &Module{
		Mounted: modkit.Mount(b, func(r httpkit.Router) { identityhttp.Register(r, p.Identity) }),
		ports:   p,
	}
}

// Ports returns the injected ports
func (m *Module) Ports() any { return m.ports }
