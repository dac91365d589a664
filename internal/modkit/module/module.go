// Package module is the contract between modules and the code that composes them
package module

import (
	"reflect"

	phttp "arledger/internal/platform/net/http"
)

// Module mounts routes and exposes ports, service modules mount nothing
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}

// PortsOf finds a T in m.Ports(), either the bundle itself or one of its exported fields
func PortsOf[T any](m Module) (T, bool) {
	var zero T
	p := m.Ports()
	if p == nil {
		return zero, false
	}
	if v, ok := p.(T); ok {
		return v, true
	}
	rv := reflect.ValueOf(p)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return zero, false
	}
	for i := range rv.NumField() {
		if f := rv.Field(i); f.CanInterface() {
			if v, ok := f.Interface().(T); ok {
				return v, true
			}
		}
	}
	return zero, false
}

// MustPortsOf panics naming the module when T is missing
func MustPortsOf[T any](m Module) T {
	v, ok := PortsOf[T](m)
	if !ok {
		panic("module: " + m.Name() + " has no port of type " + reflect.TypeFor[T]().String())
	}
	return v
}
