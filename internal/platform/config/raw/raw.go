// Package raw reads the environment without logging so the logger can configure itself
package raw

import (
	"os"
	"strings"
)

// Conf reads variables under a prefix
type Conf struct{ prefix string }

// New reads unprefixed variables
func New() Conf { return Conf{} }

// Prefix narrows to prefix+name
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

// Get is the trimmed value or def when unset or blank
func (c Conf) Get(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(c.prefix + key)); v != "" {
		return v
	}
	return def
}

// GetBool accepts 1, true and yes in any case
func (c Conf) GetBool(key string, def bool) bool {
	switch strings.ToLower(c.Get(key, "")) {
	case "":
		return def
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
