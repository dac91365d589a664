// Package api provides the HTTP API for the ledger
package api

import (
	"arledger/internal/platform/config"
	"arledger/internal/platform/logger"
	"arledger/internal/platform/metrics"
	phttp "arledger/internal/platform/net/http"
	"arledger/internal/platform/store"

	"arledger/internal/modkit"
	"arledger/internal/modkit/httpkit"
	"arledger/internal/modkit/module"
	"arledger/internal/modkit/swaggerkit"

	customersapi "arledger/internal/services/api/customers/module"
	dunningapi "arledger/internal/services/api/dunning/module"
	identityapi "arledger/internal/services/api/identity/module"
	ledgerapi "arledger/internal/services/api/ledger/module"
	metamod "arledger/internal/services/api/meta/module"

	cdom "arledger/internal/services/customers/domain"
	customersmod "arledger/internal/services/customers/module"
	ddom "arledger/internal/services/dunning/domain"
	dunningmod "arledger/internal/services/dunning/module"
	historymod "arledger/internal/services/history/module"
	identitymod "arledger/internal/services/identity/module"
	ledgermod "arledger/internal/services/ledger/module"
)

// Options are the API options
type Options struct {
	// Config is the root config, modules read their own prefixes and the API reads CORE_API_
	Config  config.Conf
	Store   *store.Store
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	// dunning and customer collaborators, Carrier and Lookup may be nil
	Renderer  ddom.Renderer
	Artifacts ddom.ArtifactStore
	Carrier   ddom.Carrier
	Lookup    cdom.GenderLookup

	EnableSwagger  bool
	EnableProfiler bool
}

// Mount wires the service modules and mounts the API onto the given router
// every route except meta sits behind bearer auth when CORE_API_JWT_SECRET is set
func Mount(r phttp.Router, opt Options) error {
	deps := modkit.Deps{
		Log:     *logger.Get(),
		Cfg:     opt.Config,
		PG:      opt.Store.PG,
		CH:      opt.Store.CH,
		Metrics: opt.Metrics,
	}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}

	// service modules first, the API modules consume their ports
	ledger := ledgermod.New(deps)
	lp := module.MustPortsOf[ledgermod.Ports](ledger)
	identity := identitymod.New(deps, lp)
	history := historymod.New(deps)
	dunning := dunningmod.New(deps, opt.Renderer, opt.Artifacts, opt.Carrier)
	customers := customersmod.New(deps, opt.Lookup)

	services := []module.Module{ledger, identity, history, dunning, customers}

	public := []module.Module{metamod.New(deps)}
	guarded := []module.Module{
		ledgerapi.New(deps, modkit.WithPorts(ledgerapi.Ports{
			Ledger:  lp.Ledger,
			History: module.MustPortsOf[historymod.Ports](history).History,
		})),
		identityapi.New(deps, modkit.WithPorts(identityapi.Ports{
			Identity: module.MustPortsOf[identitymod.Ports](identity).Identity,
		})),
		dunningapi.New(deps, modkit.WithPorts(dunningapi.Ports{
			Dunning: module.MustPortsOf[dunningmod.Ports](dunning).Dunning,
		})),
		customersapi.New(deps, modkit.WithPorts(customersapi.Ports{
			Customers: module.MustPortsOf[customersmod.Ports](customers).Customers,
		})),
	}

	auth, err := authFromConfig(opt.Config.Prefix("CORE_API_"))
	if err != nil {
		return err
	}
	if auth == nil {
		deps.Log.Warn().Msg("api: CORE_API_JWT_SECRET not set, routes are unauthenticated")
	}

	r.Use(httpkit.Heartbeat("/health"))
	httpkit.MountAPIV1(r, httpkit.CommonStack(opt.Config.Prefix("CORE_API_")), func(api httpkit.Router) {
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range services {
			module.Register(m.Name(), m.Ports())
		}
		for _, m := range public {
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}

		mount := func(gr httpkit.Router) {
			for _, m := range guarded {
				module.Register(m.Name(), m.Ports())
				m.MountRoutes(gr)
			}
		}
		if auth == nil {
			mount(api)
			return
		}
		httpkit.Protected(api, auth.Port(), mount)
	})
	return nil
}

// authFromConfig returns nil when no secret is configured
func authFromConfig(c config.Conf) (*httpkit.HS256, error) {
	secret := c.MayString("JWT_SECRET", "")
	if secret == "" {
		return nil, nil
	}
	return httpkit.NewHS256(secret, c.MayString("JWT_ISSUER", "arledger"))
}
