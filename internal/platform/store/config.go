package store

import (
	"time"

	"arledger/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// boot guard: ping attempts with exponential backoff, zero picks defaults
	ConnectRetries int
	PingTimeout    time.Duration
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled    bool
	URL        string
	ClientRole string
	ClientTag  string
}

// FromConfig reads SERVICE_PGSQL_ and SERVICE_CLICKHOUSE_ settings
// clickhouse stays disabled unless SERVICE_CLICKHOUSE_DBURL is set
func FromConfig(root config.Conf, role string) Config {
	pg := root.Prefix("SERVICE_PGSQL_")
	ch := root.Prefix("SERVICE_CLICKHOUSE_")
	chURL := ch.MayString("DBURL", "")
	return Config{
		AppName: "arledger-" + role,
		PG: PGConfig{
			Enabled:        true,
			URL:            pg.MustString("DBURL"),
			MaxConns:       int32(pg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs:    pg.MayInt("SLOW_MS", 500),
			LogSQL:         pg.MayBool("LOG_SQL", false),
			ConnectRetries: pg.MayInt("CONNECT_RETRIES", 0),
			PingTimeout:    pg.MayDuration("PING_TIMEOUT", 0),
		},
		CH: CHConfig{
			Enabled:    chURL != "",
			URL:        chURL,
			ClientRole: role,
			ClientTag:  ch.MayString("CLIENT_TAG", "arledger"),
		},
	}
}
