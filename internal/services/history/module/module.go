// Package module wires the history service and exposes its ports
package module

import (
	"arledger/internal/modkit"
	"arledger/internal/modkit/httpkit"
	"arledger/internal/platform/config"
	"arledger/internal/services/history/domain"
	"arledger/internal/services/history/service"
)

// Options controls the relay
type Options struct {
	Batch int
}

// FromConfig reads HISTORY_ prefixed settings
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("HISTORY_")
	return Options{Batch: c.MayInt("RELAY_BATCH", 500)}
}

// Ports holds the ports exposed by the history module
type Ports struct {
	History domain.HistoryPort
	Relay   *service.Svc
}

// Module is the history worker module
type Module struct {
	ports Ports
}

// New constructs the module with the given relay sinks
func New(deps modkit.Deps, sinks ...domain.Sink) *Module {
	opts := FromConfig(deps.Cfg)
	svc := service.New(deps, service.Config{Batch: opts.Batch}, sinks...)
	return &Module{ports: Ports{History: svc, Relay: svc}}
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "history" }

// MountRoutes returns no HTTP routes, the ledger API serves history reads
func (m *Module) MountRoutes(_ httpkit.Router) {}
