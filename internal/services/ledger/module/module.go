// Package module wires the ledger service and exposes its ports
package module

import (
	"arledger/internal/modkit"
	"arledger/internal/modkit/httpkit"
	"arledger/internal/modkit/repokit"
	"arledger/internal/services/ledger/domain"
	"arledger/internal/services/ledger/guardrails"
	"arledger/internal/services/ledger/service"
)

// Ports holds the ports exposed by the ledger module
type Ports struct {
	Ingest    domain.IngestPort
	Reconcile domain.ReconcilePort
	Sweep     domain.SweepPort
	Ledger    domain.LedgerPort

	// Svc is exposed so the identity module can install itself as the sweep router
	Svc *service.Svc
}

// Module is the ledger module
type Module struct {
	ports Ports
}

// New constructs the ledger module from config
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)
	if opts.StatementTimeout > 0 {
		deps.PG = repokit.WithBeginHooks(deps.PG, repokit.StatementTimeout(opts.StatementTimeout))
	}
	var lease guardrails.Lease
	if opts.EnableLeases {
		lease = guardrails.MakeLease(deps.PG, opts.LeaseHolder, opts.LeaseTTL)
	}
	svc := service.New(deps, service.Config{
		SourceLabel:  opts.SourceLabel,
		DefaultLimit: opts.DefaultLimit,
		MaxRetries:   opts.MaxRetries,
		RetryBase:    opts.RetryBase,
		Timeouts: guardrails.Timeouts{
			Period: opts.PeriodTimeout,
			Record: opts.RecordTimeout,
			DB:     opts.DBTimeout,
		},
	}, lease)
	return &Module{ports: Ports{Ingest: svc, Reconcile: svc, Sweep: svc, Ledger: svc, Svc: svc}}
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "ledger" }

// MountRoutes returns no HTTP routes, see services/api/ledger
func (m *Module) MountRoutes(_ httpkit.Router) {}
