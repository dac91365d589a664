// Package module wires the identity resolver in front of the ledger
package module

import (
	"arledger/internal/core/similarity"
	"arledger/internal/modkit"
	"arledger/internal/modkit/httpkit"
	"arledger/internal/platform/config"
	"arledger/internal/services/identity/domain"
	"arledger/internal/services/identity/service"
	lmod "arledger/internal/services/ledger/module"
)

// Options controls candidate search
type Options struct {
	Threshold float64
}

// FromConfig reads IDENTITY_ prefixed settings
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("IDENTITY_")
	return Options{Threshold: c.MayFloat64("THRESHOLD", similarity.DefaultThreshold)}
}

// Ports holds the ports exposed by the identity module
type Ports struct {
	Identity domain.IdentityPort
}

// Module is the identity module
type Module struct {
	ports Ports
}

// New constructs the resolver and installs it as the ledger's sweep router
func New(deps modkit.Deps, ledger lmod.Ports) *Module {
	opts := FromConfig(deps.Cfg)
	svc := service.New(deps, service.Config{Threshold: opts.Threshold}, ledger.Ingest)
	if ledger.Svc != nil {
		ledger.Svc.UseRouter(svc)
	}
	return &Module{ports: Ports{Identity: svc}}
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "identity" }

// MountRoutes returns no HTTP routes, see services/api/identity
func (m *Module) MountRoutes(_ httpkit.Router) {}
