package config

import (
	"slices"
	"testing"
	"time"

	kit "arledger/internal/platform/testkit"
)

func TestPrefix(t *testing.T) {
	c := New().Prefix("DUNNING_").Prefix("PRINT_")
	if got := c.key("MODE"); got != "DUNNING_PRINT_MODE" {
		t.Fatalf("key %q", got)
	}
}

func TestMustString(t *testing.T) {
	t.Setenv("CORE_API_JWT_SECRET", "  s3cret ")
	c := New().Prefix("CORE_API_")
	if got := c.MustString("JWT_SECRET"); got != "s3cret" {
		t.Fatalf("got %q", got)
	}
	kit.MustPanic(t, func() { c.MustString("MISSING") })
}

func TestTypedReads(t *testing.T) {
	t.Setenv("L_WORKERS", "8")
	t.Setenv("L_BAD_INT", "eight")
	t.Setenv("L_STRICT", "true")
	t.Setenv("L_GRACE", "90s")
	t.Setenv("L_RATIO", "0.85")
	t.Setenv("L_DIRS", " a, ,b ,")
	t.Setenv("L_EMPTY_CSV", " , ")
	c := New().Prefix("L_")

	if got := c.MayInt("WORKERS", 1); got != 8 {
		t.Errorf("MayInt %d", got)
	}
	if got := c.MayInt("BAD_INT", 3); got != 3 {
		t.Errorf("bad int should fall back, got %d", got)
	}
	if !c.MayBool("STRICT", false) || c.MayBool("UNSET", false) {
		t.Error("MayBool")
	}
	if got := c.MayDuration("GRACE", time.Second); got != 90*time.Second {
		t.Errorf("MayDuration %v", got)
	}
	if got := c.MayFloat64("RATIO", 0); got != 0.85 {
		t.Errorf("MayFloat64 %v", got)
	}
	if got := c.MayString("UNSET", "x"); got != "x" {
		t.Errorf("MayString %q", got)
	}
	if got := c.MayCSV("DIRS", nil); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("MayCSV %v", got)
	}
	if got := c.MayCSV("EMPTY_CSV", []string{"d"}); !slices.Equal(got, []string{"d"}) {
		t.Errorf("MayCSV default %v", got)
	}
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("CARRIER_")
	if got := c.MayEnum("MODE", "test", "test", "live"); got != "test" {
		t.Fatalf("default %q", got)
	}
	t.Setenv("CARRIER_MODE", "LIVE")
	if got := c.MayEnum("MODE", "test", "test", "live"); got != "live" {
		t.Fatalf("canonical %q", got)
	}
	if got := c.MayEnum("REGISTERED", "", "r1", "r2"); got != "" {
		t.Fatalf("empty default %q", got)
	}
	t.Setenv("CARRIER_MODE", "sandbox")
	kit.MustPanic(t, func() { c.MayEnum("MODE", "test", "test", "live") })
}
