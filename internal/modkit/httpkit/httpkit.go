// Package httpkit is what API modules import to mount routes, they never touch chi or the platform http package
package httpkit

import (
	"net/http"

	phttp "arledger/internal/platform/net/http"
)

type (
	// Router is the platform routing seam
	Router = phttp.Router

	// Handler is the platform handler shape
	Handler = phttp.Handler
)

// Get mounts a handler that reads only path and query
func Get(r Router, path string, h func(*http.Request) (any, error)) { r.Get(path, phttp.Call(h)) }

// Post mounts a body less command
func Post(r Router, path string, h func(*http.Request) (any, error)) { r.Post(path, phttp.Call(h)) }

// PostJSON mounts a handler for a validated T body
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, phttp.JSONHandler(h))
}

// PutJSON mounts a handler for a validated T body
func PutJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Put(path, phttp.JSONHandler(h))
}
