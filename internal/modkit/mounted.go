package modkit

import (
	"net/http"
	"strings"

	"arledger/internal/modkit/httpkit"
)

// Mounted is the routing half of an API module, embed it and add Ports
type Mounted struct {
	name     string
	prefix   string
	mws      []func(http.Handler) http.Handler
	register func(httpkit.Router)
}

// Mount panics on a missing name or prefix, both are wiring mistakes
func Mount(b Built, register func(httpkit.Router)) Mounted {
	prefix := "/" + strings.Trim(strings.TrimSpace(b.Prefix), "/")
	if strings.TrimSpace(b.Name) == "" || prefix == "/" {
		panic("modkit: module needs a name and a prefix")
	}
	return Mounted{name: b.Name, prefix: prefix, mws: b.Mw, register: register}
}

// MountRoutes registers the module under its prefix behind its middleware
func (m Mounted) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		rr.Use(m.mws...)
		m.register(rr)
	})
}

// Name is the registry name
func (m Mounted) Name() string { return m.name }

// Prefix is the normalized mount path
func (m Mounted) Prefix() string { return m.prefix }
