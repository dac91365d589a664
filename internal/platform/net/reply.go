package net

import (
	"net/http"

	perr "arledger/internal/platform/errors"
)

// Wire is the JSON body every endpoint answers with
type Wire struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

// Reply wraps data under status, zero means 200
func Reply(status int, data any, reqID string) Wire {
	if status == 0 {
		status = http.StatusOK
	}
	return Wire{
		StatusCode: status,
		Status:     http.StatusText(status),
		RequestID:  reqID,
		Data:       data,
	}
}

// Fail maps err onto its status and wire code, a nil err is a plain 200
func Fail(err error, reqID string) Wire {
	if err == nil {
		return Reply(http.StatusOK, nil, reqID)
	}
	status := perr.HTTPStatus(err)
	wr := perr.WireFrom(err)
	w := Reply(status, nil, reqID)
	w.Code, w.Error = wr.Code, wr.Message
	return w
}
