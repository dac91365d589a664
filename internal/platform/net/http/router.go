package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler is the shape every route is mounted with
type Handler = func(http.ResponseWriter, *http.Request)

// Router is the routing surface modules mount against, chi stays behind it
type Router interface {
	Get(path string, h Handler)
	Post(path string, h Handler)
	Put(path string, h Handler)
	Delete(path string, h Handler)

	Handle(path string, h http.Handler)
	Use(mw ...func(http.Handler) http.Handler)
	Group(fn func(Router))
	Route(pattern string, fn func(Router))

	Mux() http.Handler
}

// AdaptChi wraps a chi mux or any of its sub routers
func AdaptChi(r chi.Router) Router { return chiRouter{r} }

type chiRouter struct{ r chi.Router }

func (c chiRouter) Get(p string, h Handler)    { c.r.MethodFunc(http.MethodGet, p, h) }
func (c chiRouter) Post(p string, h Handler)   { c.r.MethodFunc(http.MethodPost, p, h) }
func (c chiRouter) Put(p string, h Handler)    { c.r.MethodFunc(http.MethodPut, p, h) }
func (c chiRouter) Delete(p string, h Handler) { c.r.MethodFunc(http.MethodDelete, p, h) }

func (c chiRouter) Handle(p string, h http.Handler)           { c.r.Handle(p, h) }
func (c chiRouter) Use(mw ...func(http.Handler) http.Handler) { c.r.Use(mw...) }
func (c chiRouter) Mux() http.Handler                         { return c.r }

func (c chiRouter) Group(fn func(Router)) {
	c.r.Group(func(sub chi.Router) { fn(chiRouter{sub}) })
}

func (c chiRouter) Route(pattern string, fn func(Router)) {
	c.r.Route(pattern, func(sub chi.Router) { fn(chiRouter{sub}) })
}
