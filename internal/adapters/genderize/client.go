// Package genderize asks an OpenAI compatible chat completion endpoint whether a first name is male or female
package genderize

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"arledger/internal/adapters/apiclient"
	perr "arledger/internal/platform/errors"
	"arledger/internal/services/customers/domain"
)

const (
	baseURLDefault = "https://api.studio.nebius.com/v1"
	modelDefault   = "meta-llama/Llama-3.3-70B-Instruct"
)

// Options configures the Client
type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client implements domain.GenderLookup
type Client struct {
	api   *apiclient.Client
	model string
}

var _ domain.GenderLookup = (*Client)(nil)

// New creates a Client, the api key is required
func New(o Options) (*Client, error) {
	if o.APIKey == "" {
		return nil, perr.InvalidArgf("genderize: api key is required")
	}
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.Model == "" {
		o.Model = modelDefault
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	return &Client{
		api: apiclient.New(apiclient.Options{
			Name:       "genderize",
			BaseURL:    strings.TrimSuffix(o.BaseURL, "/"),
			Timeout:    o.Timeout,
			MaxRetries: o.MaxRetries,
			Header:     http.Header{"Authorization": {"Bearer " + o.APIKey}},
		}),
		model: o.Model,
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Gender returns the model's short answer lower cased, eg "männlich", "weiblich" or "unbekannt"
func (c *Client) Gender(ctx context.Context, firstName string) (string, error) {
	firstName = strings.TrimSpace(firstName)
	if firstName == "" {
		return "", perr.InvalidArgf("genderize: empty first name")
	}
	req := completionRequest{
		Model:       c.model,
		Messages:    []message{{Role: "user", Content: prompt(firstName)}},
		Temperature: 0.1,
		MaxTokens:   10,
	}
	var resp completionResponse
	if err := c.api.JSON(ctx, apiclient.Request{Method: http.MethodPost, Path: "/chat/completions"}, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", perr.Unavailablef("genderize: empty completion for %q", firstName)
	}
	return strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content)), nil
}

func prompt(firstName string) string {
	return fmt.Sprintf(`Bestimme das Geschlecht des Vornamens "%s".
Antworte NUR mit einem dieser Wörter:
- "männlich" wenn der Name typischerweise männlich ist
- "weiblich" wenn der Name typischerweise weiblich ist
- "unbekannt" wenn du dir nicht sicher bist

Antwort:`, firstName)
}
