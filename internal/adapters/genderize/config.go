package genderize

import (
	"time"

	"arledger/internal/platform/config"
	"arledger/internal/services/customers/domain"
)

// FromConfig reads GENDERIZE_ settings, nil when no api key is set
func FromConfig(cfg config.Conf) (domain.GenderLookup, error) {
	c := cfg.Prefix("GENDERIZE_")
	key := c.MayString("API_KEY", "")
	if key == "" {
		return nil, nil
	}
	cl, err := New(Options{
		BaseURL:    c.MayString("BASE_URL", baseURLDefault),
		APIKey:     key,
		Model:      c.MayString("MODEL", modelDefault),
		Timeout:    c.MayDuration("TIMEOUT", 10*time.Second),
		MaxRetries: c.MayInt("MAX_RETRIES", 2),
	})
	if err != nil {
		return nil, err
	}
	return cl, nil
}
