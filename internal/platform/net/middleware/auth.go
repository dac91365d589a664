package middleware

import (
	"net/http"

	pnet "arledger/internal/platform/net"
)

// AuthPort resolves the authenticated subject of a request
type AuthPort interface {
	Parse(r *http.Request) (subject string, err error)
}

// Auth rejects requests p cannot authenticate, write renders the error envelope
// a nil port lets everything through
func Auth(p AuthPort, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if p == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, err := p.Parse(r)
			if err != nil {
				env := pnet.Fail(err, pnet.RequestID(r.Context()))
				write(w, env.StatusCode, env)
				return
			}
			next.ServeHTTP(w, r.WithContext(pnet.WithUser(r.Context(), sub)))
		})
	}
}
