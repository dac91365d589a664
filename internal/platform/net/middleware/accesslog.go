package middleware

import (
	"net/http"
	"time"

	"arledger/internal/platform/logger"
	pnet "arledger/internal/platform/net"
)

type recorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *recorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// AccessLog tags the request logger with its id and logs one line per request
// requests slower than slow log at warn, zero disables that
func AccessLog(slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.With(r.Context(), "request_id", pnet.RequestID(r.Context()))
			rw := &recorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rw, r.WithContext(ctx))

			took := time.Since(start)
			log := logger.C(ctx)
			evt := log.Info()
			switch {
			case rw.status >= http.StatusInternalServerError:
				evt = log.Error()
			case slow > 0 && took >= slow:
				evt = log.Warn()
			}
			evt.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.status).
				Int("bytes", rw.bytes).
				Dur("took", took).
				Msg("request")
		})
	}
}
