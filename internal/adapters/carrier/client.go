// Package carrier submits rendered letters to the LetterXpress print and mail API
package carrier

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"arledger/internal/adapters/apiclient"
	"arledger/internal/core/money"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	"arledger/internal/services/dunning/domain"
)

const (
	baseURLDefault = "https://api.letterxpress.de/v3"

	// ModeTest accepts jobs without printing or charging
	ModeTest = "test"
	// ModeLive prints and ships
	ModeLive = "live"
)

// Options configures the Client
type Options struct {
	BaseURL    string
	Username   string
	APIKey     string
	Mode       string
	Timeout    time.Duration
	MaxRetries int
	RetryBase  time.Duration
}

// Client implements domain.Carrier
type Client struct {
	api  *apiclient.Client
	opts Options
	log  *logger.Logger
}

var _ domain.Carrier = (*Client)(nil)

// New creates a Client, credentials are required
func New(o Options) (*Client, error) {
	if o.Username == "" || o.APIKey == "" {
		return nil, perr.InvalidArgf("carrier: username and api key are required")
	}
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	switch o.Mode {
	case "":
		o.Mode = ModeTest
	case ModeTest, ModeLive:
	default:
		return nil, perr.InvalidArgf("carrier: mode %q, want test or live", o.Mode)
	}
	return &Client{
		api: apiclient.New(apiclient.Options{
			Name:       "carrier",
			BaseURL:    o.BaseURL,
			UserAgent:  "arledger-dunning",
			Timeout:    o.Timeout,
			MaxRetries: o.MaxRetries,
			RetryBase:  o.RetryBase,
		}),
		opts: o,
		log:  logger.Named("carrier"),
	}, nil
}

// Mode reports whether jobs are test or live
func (c *Client) Mode() string { return c.opts.Mode }

type auth struct {
	Username string `json:"username"`
	APIKey   string `json:"apikey"`
	Mode     string `json:"mode"`
}

type specification struct {
	Pages    int    `json:"pages,omitempty"`
	Color    string `json:"color"`
	Mode     string `json:"mode"`
	Shipping string `json:"shipping"`
}

type letter struct {
	Base64File     string        `json:"base64_file,omitempty"`
	Checksum       string        `json:"base64_file_checksum,omitempty"`
	Specification  specification `json:"specification"`
	Registered     string        `json:"registered,omitempty"`
	Notice         string        `json:"notice,omitempty"`
	FilenameOrigin string        `json:"filename_original,omitempty"`
}

type request struct {
	Auth   auth    `json:"auth"`
	Letter *letter `json:"letter,omitempty"`
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Balance returns the prepaid account balance
func (c *Client) Balance(ctx context.Context) (domain.Balance, error) {
	var data struct {
		Balance  float64 `json:"balance"`
		Currency string  `json:"currency"`
	}
	if err := c.call(ctx, apiclient.Request{Method: http.MethodGet, Path: "/balance"}, nil, &data); err != nil {
		return domain.Balance{}, err
	}
	cur := data.Currency
	if cur == "" {
		cur = "EUR"
	}
	return domain.Balance{Cents: int64(money.FromFloat(data.Balance)), Currency: cur}, nil
}

// Price quotes one letter in cents
func (c *Client) Price(ctx context.Context, q domain.PriceQuery) (int64, error) {
	if q.Pages <= 0 {
		return 0, perr.WithField(perr.InvalidArgf("pages must be positive"), "pages")
	}
	l := &letter{Specification: specOf(q.PrintSpec, q.Pages), Registered: q.Registered}
	var data struct {
		Price float64 `json:"price"`
	}
	if err := c.call(ctx, apiclient.Request{Method: http.MethodGet, Path: "/price"}, l, &data); err != nil {
		return 0, err
	}
	return int64(money.FromFloat(data.Price)), nil
}

// Submit uploads one letter for printing, the request is never retried after the server saw it
func (c *Client) Submit(ctx context.Context, in domain.Letter) (domain.Job, error) {
	if len(in.PDF) == 0 {
		return domain.Job{}, perr.InvalidArgf("carrier: empty document")
	}
	b64 := base64.StdEncoding.EncodeToString(in.PDF)
	sum := md5.Sum([]byte(b64))
	l := &letter{
		Base64File:     b64,
		Checksum:       hex.EncodeToString(sum[:]),
		Specification:  specOf(in.Spec, 0),
		Registered:     in.Spec.Registered,
		Notice:         in.Notice,
		FilenameOrigin: in.Filename,
	}
	var data struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
		Price  float64     `json:"price"`
	}
	req := apiclient.Request{Method: http.MethodPost, Path: "/printjobs", NoRetry: true}
	if err := c.call(ctx, req, l, &data); err != nil {
		return domain.Job{}, err
	}
	if data.ID == "" {
		return domain.Job{}, perr.Unavailablef("carrier: submission accepted without job id")
	}
	job := domain.Job{
		ID:         data.ID.String(),
		Status:     data.Status,
		PriceCents: int64(money.FromFloat(data.Price)),
		Mode:       c.opts.Mode,
	}
	c.log.Info().
		Str("job_id", job.ID).
		Str("file", in.Filename).
		Int64("price_cents", job.PriceCents).
		Str("mode", job.Mode).
		Msg("letter submitted")
	return job, nil
}

// call wraps the auth block around l and unwraps the status envelope into out
func (c *Client) call(ctx context.Context, r apiclient.Request, l *letter, out any) error {
	body := request{
		Auth:   auth{Username: c.opts.Username, APIKey: c.opts.APIKey, Mode: c.opts.Mode},
		Letter: l,
	}
	var env envelope
	if err := c.api.JSON(ctx, r, body, &env); err != nil {
		return err
	}
	if env.Status != http.StatusOK {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", env.Status)
		}
		return perr.Newf(perr.ErrorCodeUnavailable, "carrier %s: %s", r.Path, msg)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "carrier %s: decode data", r.Path)
	}
	return nil
}

func specOf(s domain.PrintSpec, pages int) specification {
	return specification{Pages: pages, Color: s.Color, Mode: s.Mode, Shipping: s.Shipping}
}
