// Package http adapts chi routing and writes every response in the shared envelope
package http

import (
	"encoding/json"
	"net/http"

	pnet "arledger/internal/platform/net"
)

// Envelope is the body of every JSON response
type Envelope = pnet.Wire

// JSON writes v with status, it matches the writer the auth middleware expects
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Response is what return style handlers produce, an error Body decides the status itself
type Response struct {
	Status int
	Body   any
	Header http.Header
}

// OK is a 200 with data
func OK(data any) Response { return Response{Status: http.StatusOK, Body: data} }

// NoContent is a bare 204
func NoContent() Response { return Response{Status: http.StatusNoContent} }

// Error maps err to its status and code
func Error(err error) Response { return Response{Body: err} }

// Handle adapts a Response returning function to a Handler
func Handle(fn func(*http.Request) Response) Handler {
	return func(w http.ResponseWriter, r *http.Request) { fn(r).write(w, r) }
}

func (resp Response) write(w http.ResponseWriter, r *http.Request) {
	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	reqID := pnet.RequestID(r.Context())
	if err, ok := resp.Body.(error); ok {
		env := pnet.Fail(err, reqID)
		JSON(w, env.StatusCode, env)
		return
	}
	if resp.Status == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	env := pnet.Reply(resp.Status, resp.Body, reqID)
	JSON(w, env.StatusCode, env)
}
