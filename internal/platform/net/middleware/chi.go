// Package middleware holds the http middlewares the API stacks, chi's where they suffice and ours where they do not
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RequestID honours an incoming X-Request-Id or mints one
func RequestID() func(http.Handler) http.Handler { return chimw.RequestID }

// RealIP trusts X-Forwarded-For and X-Real-IP
func RealIP() func(http.Handler) http.Handler { return chimw.RealIP }

// NoCache forbids client and proxy caching
func NoCache() func(http.Handler) http.Handler { return chimw.NoCache }

// StripSlashes routes /foo/ as /foo
func StripSlashes() func(http.Handler) http.Handler { return chimw.StripSlashes }

// Timeout cancels the request context after d
func Timeout(d time.Duration) func(http.Handler) http.Handler { return chimw.Timeout(d) }

// Heartbeat answers GET path with 200 before routing
func Heartbeat(path string) func(http.Handler) http.Handler { return chimw.Heartbeat(path) }

// Compress negotiates gzip or deflate at level
func Compress(level int) func(http.Handler) http.Handler { return chimw.Compress(level) }

// CORSOptions is the part of go-chi/cors the API configures
type CORSOptions struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           int
}

// CORS allows the methods and headers the API uses
func CORS(o CORSOptions) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   o.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: o.AllowCredentials,
		MaxAge:           o.MaxAge,
	})
}
