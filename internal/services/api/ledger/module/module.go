// Package module mounts the ledger read and override routes using modkit
package module

import (
	modkit "arledger/internal/modkit"
	"arledger/internal/modkit/httpkit"
	ledgerhttp "arledger/internal/services/api/ledger/http"
	hdom "arledger/internal/services/history/domain"
	ldom "arledger/internal/services/ledger/domain"
)

// Ports declares the service ports this API module requires
type Ports struct {
	Ledger  ldom.LedgerPort
	History hdom.HistoryPort
}

// Module implements the modkit.Module interface
type Module struct {
	modkit.Mounted
	ports Ports
}

// New constructs the ledger API module, Ports must be injected with modkit.WithPorts
func New(_ modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("ledger-api"), modkit.WithPrefix("/ledger")}, opts...)...)

	p, ok := b.Ports.(Ports)
	if !ok || p.Ledger == nil || p.History == nil {
		panic("ledger API module requires Ledger and History ports")
	}
	return &Module{
		Mounted: modkit.Mount(b, func(r httpkit.Router) { ledgerhttp.Register(r, p.Ledger, p.History) }),
		ports:   p,
	}
}

// Ports returns the injected ports
func (m *Module) Ports() any { return m.ports }
