package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	perrs "arledger/internal/platform/errors"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestHS256_RoundTrip(t *testing.T) {
	t.Parallel()

	h, err := NewHS256(testSecret, "arledger")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	tok, err := h.Issue("ops@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	uid, err := h.Port().Parse(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if uid != "ops@example.com" {
		t.Fatalf("got uid=%q", uid)
	}
}

func TestHS256_Rejects(t *testing.T) {
	t.Parallel()

	if _, err := NewHS256("short", ""); !perrs.IsCode(err, perrs.ErrorCodeInvalidArgument) {
		t.Fatalf("short secret: %v", err)
	}

	h, _ := NewHS256(testSecret, "arledger")
	other, _ := NewHS256(testSecret+"x", "arledger")
	foreign, _ := NewHS256(testSecret, "someone-else")

	fixed := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }
	expired, _ := h.Issue("a", time.Minute)
	h.now = func() time.Time { return fixed.Add(time.Hour) }

	badSig, _ := other.Issue("a", time.Hour)
	badIss, _ := foreign.Issue("a", time.Hour)
	noSub, _ := h.Issue("", 2*time.Hour)

	cases := map[string]string{
		"expired":   expired,
		"signature": badSig,
		"issuer":    badIss,
		"subject":   noSub,
		"garbage":   "not.a.token",
	}
	for name, tok := range cases {
		if _, err := h.Parse(tok); !perrs.IsCode(err, perrs.ErrorCodeUnauthorized) {
			t.Fatalf("%s: want unauthorized, got %v", name, err)
		}
	}
}
