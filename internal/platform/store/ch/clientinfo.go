package ch

import (
	"os"
	"runtime"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"

	"arledger/internal/core/version"
)

// BuildClientInfo shows up in system.query_log so queries can be traced to a binary
// role is the binary, "api", "sweep" or "dunning", tag defaults to the release version
func BuildClientInfo(role, tag string) clickhouse.ClientInfo {
	host, _ := os.Hostname()
	if tag = strings.TrimSpace(tag); tag == "" {
		tag = version.Version()
	}
	return clickhouse.ClientInfo{Products: []struct{ Name, Version string }{
		{Name: "arledger", Version: tag},
		{Name: "role", Version: strings.TrimSpace(role)},
		{Name: "commit", Version: version.Commit()},
		{Name: "go", Version: runtime.Version()},
		{Name: "host", Version: host},
	}}
}
