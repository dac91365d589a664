package module

import (
	"os"
	"time"

	"arledger/internal/platform/config"
)

// Options controls ingestion, sweeps and listing
type Options struct {
	SourceLabel   string
	DefaultLimit  int
	MaxRetries    int
	RetryBase     time.Duration
	PeriodTimeout time.Duration
	RecordTimeout time.Duration
	DBTimeout     time.Duration
	// StatementTimeout is set with SET LOCAL on every ledger transaction, zero leaves the server default
	StatementTimeout time.Duration
	EnableLeases     bool
	LeaseTTL         time.Duration
	LeaseHolder      string
}

// FromConfig reads LEDGER_ prefixed settings
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("LEDGER_")
	host, _ := os.Hostname()
	return Options{
		SourceLabel:      c.MayString("SOURCE_LABEL", "invoices"),
		DefaultLimit:     c.MayInt("DEFAULT_LIMIT", 50),
		MaxRetries:       c.MayInt("MAX_RETRIES", 3),
		RetryBase:        c.MayDuration("RETRY_BASE", 500*time.Millisecond),
		PeriodTimeout:    c.MayDuration("PERIOD_TIMEOUT", 30*time.Minute),
		RecordTimeout:    c.MayDuration("RECORD_TIMEOUT", 30*time.Second),
		DBTimeout:        c.MayDuration("DB_TIMEOUT", 10*time.Second),
		StatementTimeout: c.MayDuration("STATEMENT_TIMEOUT", 0),
		EnableLeases:     c.MayBool("ENABLE_LEASES", true),
		LeaseTTL:         c.MayDuration("LEASE_TTL", 30*time.Minute),
		LeaseHolder:      c.MayString("LEASE_HOLDER", host),
	}
}
