// Package period derives sortable snapshot keys from source locations
package period

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

// Key is a sortable period identifier in YYYY-MM form
type Key string

var keyRe = regexp.MustCompile(`^(\d{4})-(\d{2})`)

// Parse validates s and returns its Key, only the leading YYYY-MM is kept
func Parse(s string) (Key, error) {
	m := keyRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", fmt.Errorf("period %q: want YYYY-MM", s)
	}
	k := Key(m[1] + "-" + m[2])
	if _, err := k.Start(); err != nil {
		return "", fmt.Errorf("period %q: %w", s, err)
	}
	return k, nil
}

// FromPath derives the period from the first segment of a slash separated source location
// eg "2025-01 Januar/INV-1.pdf" -> 2025-01
func FromPath(p string) (Key, string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	first, _, _ := strings.Cut(clean, "/")
	k, err := Parse(first)
	if err != nil {
		return "", "", fmt.Errorf("source %q is not inside a month folder", p)
	}
	return k, first, nil
}

// Start returns the first instant of the period in UTC
func (k Key) Start() (time.Time, error) {
	t, err := time.Parse("2006-01", string(k))
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// Prev returns the calendar month before k, used for display only
// reconciliation always asks the store for the stored predecessor
func (k Key) Prev() Key {
	t, err := k.Start()
	if err != nil {
		return ""
	}
	return Key(t.AddDate(0, -1, 0).Format("2006-01"))
}

// String implements fmt.Stringer
func (k Key) String() string { return string(k) }

// Less orders keys chronologically, the format sorts lexically
func Less(a, b Key) bool { return a < b }
