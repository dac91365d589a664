package render

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"arledger/internal/adapters/apiclient"
	perr "arledger/internal/platform/errors"
	"arledger/internal/services/dunning/domain"
)

const maxDocument = 32 << 20

// RemoteOptions configures a document service that renders the letter and appends the invoice documents
type RemoteOptions struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	Sender     Sender
}

// Remote posts the letter request plus the prepared cover HTML and receives the merged PDF
type Remote struct {
	api    *apiclient.Client
	sender Sender
}

var _ domain.Renderer = (*Remote)(nil)

// NewRemote requires a base url
func NewRemote(o RemoteOptions) (*Remote, error) {
	if o.BaseURL == "" {
		return nil, perr.InvalidArgf("render: base url is required")
	}
	h := http.Header{"Accept": {"application/pdf"}}
	if o.Token != "" {
		h.Set("Authorization", "Bearer "+o.Token)
	}
	return &Remote{
		api: apiclient.New(apiclient.Options{
			Name:       "render",
			BaseURL:    o.BaseURL,
			Timeout:    o.Timeout,
			MaxRetries: o.MaxRetries,
			Header:     h,
		}),
		sender: o.Sender,
	}, nil
}

type remoteRequest struct {
	domain.LetterRequest
	CoverHTML string `json:"cover_html"`
}

// Render is safe to retry since rendering has no side effects
func (r *Remote) Render(ctx context.Context, req domain.LetterRequest) ([]byte, error) {
	html, err := HTML(r.sender, req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(remoteRequest{LetterRequest: req, CoverHTML: html})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "render: encode request")
	}
	pdf, err := r.api.Bytes(ctx, apiclient.Request{Method: http.MethodPost, Path: "/letters", Body: body}, maxDocument)
	if err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, perr.Unavailablef("render: empty document")
	}
	return pdf, nil
}
