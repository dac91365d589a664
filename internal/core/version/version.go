// Package version reports the build stamped into the binaries
package version

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// BuildInfo is served by the meta version route
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

// set with -ldflags "-X arledger/internal/core/version.version=v1.2.0 -X arledger/internal/core/version.commit=abc123"
var (
	version = "dev"
	commit  = ""
	date    = "unknown"
)

// Version is the release tag or "dev"
func Version() string { return version }

// Commit is the ldflags commit, else the short vcs revision go build embedded, else "unknown"
var Commit = sync.OnceValue(func() string {
	if commit != "" {
		return commit
	}
	return revision(debug.ReadBuildInfo())
})

func revision(bi *debug.BuildInfo, ok bool) string {
	if ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return "unknown"
}

// Info describes the running binary
func Info(service string) BuildInfo {
	return BuildInfo{Service: service, Version: version, Commit: Commit(), Date: date, Go: runtime.Version()}
}
