// Package module wires the customers service and exposes its ports
package module

import (
	"time"

	"arledger/internal/modkit"
	"arledger/internal/modkit/httpkit"
	"arledger/internal/platform/config"
	"arledger/internal/services/customers/domain"
	"arledger/internal/services/customers/service"
)

// Options controls listing and gender lookups
type Options struct {
	DefaultLimit  int
	LookupTimeout time.Duration
}

// FromConfig reads CUSTOMERS_ prefixed settings
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CUSTOMERS_")
	return Options{
		DefaultLimit:  c.MayInt("DEFAULT_LIMIT", 100),
		LookupTimeout: c.MayDuration("LOOKUP_TIMEOUT", 20*time.Second),
	}
}

// Ports holds the ports exposed by the customers module
type Ports struct {
	Customers domain.CustomersPort
}

// Module is the customers module
type Module struct {
	ports Ports
}

// New constructs the module, lookup may be nil
func New(deps modkit.Deps, lookup domain.GenderLookup) *Module {
	opts := FromConfig(deps.Cfg)
	svc := service.New(deps, service.Config{DefaultLimit: opts.DefaultLimit, LookupTimeout: opts.LookupTimeout}, lookup)
	return &Module{ports: Ports{Customers: svc}}
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "customers" }

// MountRoutes returns no HTTP routes, see services/api/customers
func (m *Module) MountRoutes(_ httpkit.Router) {}
