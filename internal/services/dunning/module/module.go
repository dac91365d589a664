// Package module wires the dunning service and exposes its ports
package module

import (
	"arledger/internal/modkit"
	"arledger/internal/modkit/httpkit"
	"arledger/internal/platform/config"
	"arledger/internal/services/dunning/domain"
	"arledger/internal/services/dunning/service"
)

// Options controls rendering and dispatch defaults
type Options struct {
	RenderParallel int
	ArtifactPrefix string
	CarrierMode    string
	Defaults       domain.PrintSpec
}

// FromConfig reads DUNNING_ prefixed settings and the carrier mode
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("DUNNING_")
	return Options{
		RenderParallel: c.MayInt("RENDER_PARALLEL", 4),
		ArtifactPrefix: c.MayString("ARTIFACT_PREFIX", "reminders"),
		CarrierMode:    cfg.Prefix("CARRIER_").MayEnum("MODE", "test", "test", "live"),
		Defaults: domain.PrintSpec{
			Color:      c.MayEnum("COLOR", "1", "1", "4"),
			Mode:       c.MayEnum("PRINT_MODE", "duplex", "simplex", "duplex"),
			Shipping:   c.MayEnum("SHIPPING", "national", "national", "international"),
			Registered: c.MayEnum("REGISTERED", "", "r1", "r2"),
		},
	}
}

// Ports holds the ports exposed by the dunning module
type Ports struct {
	Dunning domain.DunningPort
}

// Module is the dunning module
type Module struct {
	ports Ports
}

// New constructs the module, carrier may be nil when dispatch is disabled
func New(deps modkit.Deps, r domain.Renderer, a domain.ArtifactStore, c domain.Carrier) *Module {
	opts := FromConfig(deps.Cfg)
	svc := service.New(deps, service.Config{
		RenderParallel: opts.RenderParallel,
		ArtifactPrefix: opts.ArtifactPrefix,
		CarrierMode:    opts.CarrierMode,
		Defaults:       opts.Defaults,
	}, r, a, c)
	return &Module{ports: Ports{Dunning: svc}}
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "dunning" }

// MountRoutes returns no HTTP routes, see services/api/dunning
func (m *Module) MountRoutes(_ httpkit.Router) {}
