package modkit

import "net/http"

// Option adjusts how an API module is built
type Option func(*Built)

// Built is the result of applying options
type Built struct {
	Name   string
	Prefix string
	Mw     []func(http.Handler) http.Handler
	Ports  any
}

// WithName names the module in the registry
func WithName(name string) Option { return func(b *Built) { b.Name = name } }

// WithPrefix mounts the module under prefix
func WithPrefix(prefix string) Option { return func(b *Built) { b.Prefix = prefix } }

// WithMiddlewares appends per module middleware, run in order
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(b *Built) { b.Mw = append(b.Mw, mw...) }
}

// WithPorts injects the service ports an API module consumes, the module asserts the type
func WithPorts[T any](p T) Option { return func(b *Built) { b.Ports = p } }

// Build applies opts in order, later options win
func Build(opts ...Option) Built {
	var b Built
	for _, o := range opts {
		o(&b)
	}
	return b
}
