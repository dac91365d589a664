package render

import (
	"time"

	"arledger/internal/platform/config"
	"arledger/internal/services/dunning/domain"
)

// Closer is implemented by renderers holding a browser
type Closer interface {
	Close() error
}

// FromConfig builds the remote renderer when RENDER_URL is set, else the headless browser renderer
func FromConfig(cfg config.Conf) (domain.Renderer, error) {
	c := cfg.Prefix("RENDER_")
	sender := Sender{
		Name:  c.MayString("SENDER_NAME", ""),
		Lines: c.MayCSV("SENDER_LINES", nil),
		Place: c.MayString("SENDER_PLACE", ""),
	}
	timeout := c.MayDuration("TIMEOUT", 30*time.Second)
	if url := c.MayString("URL", ""); url != "" {
		return NewRemote(RemoteOptions{
			BaseURL:    url,
			Token:      c.MayString("TOKEN", ""),
			Timeout:    timeout,
			MaxRetries: c.MayInt("MAX_RETRIES", 3),
			Sender:     sender,
		})
	}
	return NewChrome(ChromeOptions{
		RemoteURL: c.MayString("CHROME_URL", ""),
		NoSandbox: c.MayBool("CHROME_NO_SANDBOX", false),
		Timeout:   timeout,
		Sender:    sender,
	}), nil
}
