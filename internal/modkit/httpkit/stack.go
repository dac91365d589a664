package httpkit

import (
	"compress/flate"
	"net/http"
	"strings"
	"time"

	"arledger/internal/platform/config"
	"arledger/internal/platform/net/middleware"
)

// CommonStack is the middleware every API route runs behind
// cfg supplies CORS_ORIGINS, SLOW_REQUEST and REQUEST_TIMEOUT
func CommonStack(cfg config.Conf) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.AccessLog(cfg.MayDuration("SLOW_REQUEST", 500*time.Millisecond)),
		middleware.RecoverJSON,
		middleware.NoCache(),
		middleware.CORS(middleware.CORSOptions{AllowedOrigins: cfg.MayCSV("CORS_ORIGINS", nil)}),
		middleware.Compress(flate.BestSpeed),
		middleware.StripSlashes(),
		middleware.Timeout(cfg.MayDuration("REQUEST_TIMEOUT", 30*time.Second)),
	}
}

// Heartbeat answers GET path with 200 before any routing, for load balancers
func Heartbeat(path string) func(http.Handler) http.Handler { return middleware.Heartbeat(path) }

// MountAPI mounts /api/{version} behind mw and hands the scoped router to mount
func MountAPI(r Router, version string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	r.Route("/api/"+strings.Trim(version, "/"), func(api Router) {
		api.Use(mw...)
		mount(api)
	})
}

// MountAPIV1 is MountAPI for v1
func MountAPIV1(r Router, mw []func(http.Handler) http.Handler, mount func(Router)) {
	MountAPI(r, "v1", mw, mount)
}
