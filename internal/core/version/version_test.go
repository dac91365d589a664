package version

import (
	"runtime/debug"
	"testing"
)

func TestRevision(t *testing.T) {
	bi := &debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}}}
	if got := revision(bi, true); got != "0123456" {
		t.Fatalf("got %q", got)
	}
	if got := revision(&debug.BuildInfo{}, true); got != "unknown" {
		t.Fatalf("no setting %q", got)
	}
	if got := revision(nil, false); got != "unknown" {
		t.Fatalf("no build info %q", got)
	}
}

func TestInfo(t *testing.T) {
	info := Info("arledger-api")
	if info.Service != "arledger-api" || info.Version != Version() || info.Commit == "" || info.Go == "" {
		t.Fatalf("info %+v", info)
	}
}
