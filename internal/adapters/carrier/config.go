package carrier

import (
	"time"

	"arledger/internal/platform/config"
	"arledger/internal/services/dunning/domain"
)

// FromConfig reads CARRIER_ settings, a nil carrier means dispatch is disabled
func FromConfig(cfg config.Conf) (domain.Carrier, error) {
	c := cfg.Prefix("CARRIER_")
	user := c.MayString("USERNAME", "")
	if user == "" {
		return nil, nil
	}
	cl, err := New(Options{
		BaseURL:    c.MayString("BASE_URL", baseURLDefault),
		Username:   user,
		APIKey:     c.MustString("APIKEY"),
		Mode:       c.MayEnum("MODE", ModeTest, ModeTest, ModeLive),
		Timeout:    c.MayDuration("TIMEOUT", 30*time.Second),
		MaxRetries: c.MayInt("MAX_RETRIES", 3),
		RetryBase:  c.MayDuration("RETRY_BASE", 500*time.Millisecond),
	})
	if err != nil {
		return nil, err
	}
	return cl, nil
}
