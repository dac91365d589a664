// Package module mounts the customer profile routes using modkit
package module

import (
	modkit "arledger/internal/modkit"
	"arledger/internal/modkit/httpkit"
	customershttp "arledger/internal/services/api/customers/http"
	"arledger/internal/services/customers/domain"
)

// Ports declares the service port this API module requires
type Ports struct {
	Customers domain.CustomersPort
}

// Module implements the modkit.Module interface
type Module struct {
	modkit.Mounted
	ports Ports
}

// New constructs the customers API module, Ports must be injected with modkit.WithPorts
func New(_ modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("customers-api"), modkit.WithPrefix("/customers")}, opts...)...)

	p, ok := b.Ports.(Ports)
	if !ok || p.Customers == nil {
		panic("customers API module requires the Customers port")
	}
	return &Module{
		Mounted: modkit.Mount(b, func(r httpkit.Router) { customershttp.Register(r, p.Customers) }),
		ports:   p,
	}
}

// Ports returns the injected ports
func (m *Module) Ports() any { return m.ports }
