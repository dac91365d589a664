// Package apiclient is the retrying JSON over HTTP client shared by the outbound adapters
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUA        = "arledger"
	defaultMaxRetry  = 3
	defaultRetryBase = 500 * time.Millisecond
	maxBackoff       = 30 * time.Second
)

// Options configures the Client
type Options struct {
	// Name labels log lines and errors eg "carrier"
	Name      string
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Header is sent with every request, eg an Authorization bearer
	Header http.Header

	MaxRetries int
	RetryBase  time.Duration
}

// Request is one call, NoRetry marks non idempotent writes that are only retried on 429
type Request struct {
	Method  string
	Path    string
	Body    []byte
	Header  http.Header
	NoRetry bool
}

// Client issues requests with retries for transient and rate limited responses
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a Client with sane defaults
func New(o Options) *Client {
	if o.Name == "" {
		o.Name = "http"
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named(o.Name),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Do sends r and returns the successful response, the caller closes the body
func (c *Client) Do(ctx context.Context, r Request) (*http.Response, error) {
	url := c.opts.BaseURL + r.Path
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, r.Method, url, bytes.NewReader(r.Body))
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "%s new request", c.opts.Name)
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")
		if len(r.Body) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		copyHeader(req.Header, c.opts.Header)
		copyHeader(req.Header, r.Header)

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if r.NoRetry || !c.shouldRetry(attempts) {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s %s %s failed", c.opts.Name, r.Method, r.Path)
			}
			back := c.backoff(attempts)
			c.log.Warn().Err(err).Dur("retry_in", back).Int("attempt", attempts).Msg("transport error retrying")
			c.sleep(back)
			attempts++
			continue
		}

		c.log.Debug().
			Str("method", r.Method).
			Str("path", r.Path).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("http response")

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp.Header)
			if wait <= 0 {
				wait = c.backoff(attempts)
			}
			_ = drainAndClose(resp.Body)
			if !c.shouldRetry(attempts) {
				return nil, perr.Newf(perr.ErrorCodeTooManyRequests, "%s rate limited", c.opts.Name)
			}
			c.log.Warn().Dur("sleep", wait).Msg("rate limited backing off")
			c.sleep(wait)
			attempts++
			continue
		case isTransient(resp.StatusCode) && !r.NoRetry:
			_ = drainAndClose(resp.Body)
			if !c.shouldRetry(attempts) {
				return nil, perr.Newf(perr.ErrorCodeUnavailable, "%s transient server error %d", c.opts.Name, resp.StatusCode)
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Int("status", resp.StatusCode).Msg("transient error retrying")
			c.sleep(back)
			attempts++
			continue
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return nil, &StatusError{
				Status: resp.StatusCode,
				Body:   string(body),
				Err:    perr.Newf(codeFor(resp.StatusCode), "%s unexpected status %d", c.opts.Name, resp.StatusCode),
			}
		}
	}
}

// JSON sends in as the JSON body and decodes a successful response into out
// in and out may be nil
func (c *Client) JSON(ctx context.Context, r Request, in, out any) error {
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeJSON, "%s encode request", c.opts.Name)
		}
		r.Body = b
	}
	resp, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	defer func() { _ = drainAndClose(resp.Body) }()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "%s decode response", c.opts.Name)
	}
	return nil
}

// Bytes returns the successful response body, capped at limit bytes
func (c *Client) Bytes(ctx context.Context, r Request, limit int64) ([]byte, error) {
	resp, err := c.Do(ctx, r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s read body", c.opts.Name)
	}
	if int64(len(b)) > limit {
		return nil, perr.Newf(perr.ErrorCodeUnavailable, "%s response exceeds %d bytes", c.opts.Name, limit)
	}
	return b, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase << uint(attempt)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.opts.MaxRetries
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Set(k, v)
		}
	}
}
