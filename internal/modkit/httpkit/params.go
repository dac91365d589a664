package httpkit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	perr "arledger/internal/platform/errors"
)

// PathString returns a non-empty path parameter
func PathString(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		return "", perr.WithField(perr.InvalidArgf("missing %s", name), name)
	}
	return v, nil
}

// PathInt64 returns a positive integer path parameter
func PathInt64(r *http.Request, name string) (int64, error) {
	raw, err := PathString(r, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, perr.WithField(perr.InvalidArgf("%s must be a positive integer", name), name)
	}
	return n, nil
}

// QueryInt reads an optional integer query parameter
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, perr.WithField(perr.InvalidArgf("%s must be an integer", name), name)
	}
	return n, nil
}

// QueryBool reads an optional boolean query parameter, nil when absent
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, perr.WithField(perr.InvalidArgf("%s must be a boolean", name), name)
	}
	return &b, nil
}

// QueryString reads an optional trimmed query parameter
func QueryString(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}
