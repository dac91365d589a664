package httpkit

import (
	"net/http"
	"strings"

	"arledger/internal/modkit/scope"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	pnet "arledger/internal/platform/net"
	phttp "arledger/internal/platform/net/http"
	"arledger/internal/platform/net/middleware"
)

// TokenFunc verifies a raw bearer token and returns its subject
type TokenFunc func(token string) (string, error)

// Port reads the Authorization header and hands the token to a TokenFunc
type Port struct{ parse TokenFunc }

// NewPortFunc builds a Port around fn
func NewPortFunc(fn TokenFunc) *Port { return &Port{parse: fn} }

// Parse implements middleware.AuthPort, every failure is a 401 without detail
func (p *Port) Parse(r *http.Request) (string, error) {
	scheme, token, _ := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	token = strings.TrimSpace(token)
	if !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", perr.Unauthorizedf("missing bearer token")
	}
	if p.parse == nil {
		return "", perr.Unauthorizedf("invalid bearer token")
	}
	sub, err := p.parse(token)
	if err != nil {
		return "", perr.Unauthorizedf("invalid bearer token")
	}
	return sub, nil
}

// Auth is middleware.Auth writing through the envelope writer
func Auth(p middleware.AuthPort) func(http.Handler) http.Handler {
	return middleware.Auth(p, phttp.JSON)
}

// ActorScope copies the authenticated subject into scope and the request logger
// so history entries and log lines name who acted
func ActorScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid := pnet.UserID(r.Context()); uid != "" {
			ctx := scope.WithActor(r.Context(), uid)
			r = r.WithContext(logger.With(ctx, "actor", uid))
		}
		next.ServeHTTP(w, r)
	})
}

// Protected mounts fn's routes behind bearer auth
func Protected(r Router, p middleware.AuthPort, fn func(Router)) {
	r.Group(func(gr Router) {
		gr.Use(Auth(p), ActorScope)
		fn(gr)
	})
}
