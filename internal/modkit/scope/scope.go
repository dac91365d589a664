// Package scope carries request attributes such as the acting user across module boundaries
package scope

import "context"

// Actor is the key under which the authenticated subject travels
const Actor = "actor"

// Scope holds cross boundary attributes
type Scope struct {
	Values map[string]string
}

type key struct{}

// With returns a child ctx whose scope is the parent's merged with kv
// the parent scope is never mutated
func With(ctx context.Context, kv map[string]string) context.Context {
	parent := From(ctx)
	next := make(map[string]string, len(parent.Values)+len(kv))
	for k, v := range parent.Values {
		next[k] = v
	}
	for k, v := range kv {
		next[k] = v
	}
	return context.WithValue(ctx, key{}, Scope{Values: next})
}

// WithActor is With for the Actor key
func WithActor(ctx context.Context, actor string) context.Context {
	return With(ctx, map[string]string{Actor: actor})
}

// Get returns a value and a boolean
func Get(ctx context.Context, k string) (string, bool) {
	v, ok := From(ctx).Values[k]
	return v, ok
}

// From returns scope on ctx or an empty one
func From(ctx context.Context) Scope {
	s, _ := ctx.Value(key{}).(Scope)
	if s.Values == nil {
		s.Values = map[string]string{}
	}
	return s
}
