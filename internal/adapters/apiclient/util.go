package apiclient

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	perr "arledger/internal/platform/errors"
)

// StatusError wraps a non 2xx response that was not retried
type StatusError struct {
	Status int
	Body   string
	Err    error
}

// Error interface
func (e *StatusError) Error() string { return e.Err.Error() }

// Unwrap interface
func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus interface
func (e *StatusError) HTTPStatus() int { return e.Status }

// StatusOf returns the remote status carried by err, 0 when none
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

func codeFor(status int) perr.ErrorCode {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return perr.ErrorCodeInvalidArgument
	case http.StatusUnauthorized:
		return perr.ErrorCodeUnauthorized
	case http.StatusForbidden:
		return perr.ErrorCodeForbidden
	case http.StatusNotFound:
		return perr.ErrorCodeNotFound
	case http.StatusConflict:
		return perr.ErrorCodeConflict
	default:
		return perr.ErrorCodeUnavailable
	}
}

func isTransient(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter reads a Retry-After header given in seconds
func retryAfter(h http.Header) time.Duration {
	s := h.Get("Retry-After")
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}
