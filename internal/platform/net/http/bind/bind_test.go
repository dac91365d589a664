package bind

import (
	"net/http/httptest"
	"strings"
	"testing"

	perr "arledger/internal/platform/errors"
)

type override struct {
	Reason string `json:"reason" validate:"required,min=3,max=20"`
	Period string `json:"period,omitempty" validate:"omitempty,period"`
	Secret string `json:"-" validate:"max=2"`
}

func TestParseJSON(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		code  perr.ErrorCode
		field string
		msg   string
	}{
		{name: "ok", body: `{"reason":"moved abroad","period":"2025-02"}`},
		{name: "empty", body: ``, code: perr.ErrorCodeJSON, msg: "empty body"},
		{name: "broken", body: `{"reason":`, code: perr.ErrorCodeJSON},
		{name: "unknown field", body: `{"reason":"abc","level":2}`, code: perr.ErrorCodeJSON},
		{name: "trailing", body: `{"reason":"abc"} {"reason":"def"}`, code: perr.ErrorCodeJSON, msg: "unexpected trailing data"},
		{name: "required", body: `{}`, code: perr.ErrorCodeValidation, field: "reason"},
		{name: "short", body: `{"reason":"ab"}`, code: perr.ErrorCodeValidation, field: "reason", msg: "reason must be at least 3"},
		{name: "long", body: `{"reason":"` + strings.Repeat("x", 21) + `"}`, code: perr.ErrorCodeValidation, msg: "reason must be at most 20"},
		{name: "bad period", body: `{"reason":"abc","period":"2025-13"}`, code: perr.ErrorCodeValidation, field: "period", msg: "period must be a month as YYYY-MM"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tc.body))
			got, err := ParseJSON[override](req)
			if tc.code == perr.ErrorCodeUnknown {
				if err != nil || got.Reason != "moved abroad" || got.Period != "2025-02" {
					t.Fatalf("got %+v, %v", got, err)
				}
				return
			}
			if perr.CodeOf(err) != tc.code {
				t.Fatalf("code %v want %v (%v)", perr.CodeOf(err), tc.code, err)
			}
			w := perr.WireFrom(err)
			if tc.field != "" && w.Field != tc.field {
				t.Fatalf("field %q want %q", w.Field, tc.field)
			}
			if tc.msg != "" && w.Message != tc.msg {
				t.Fatalf("message %q want %q", w.Message, tc.msg)
			}
		})
	}
}

func TestParseJSONBodyCap(t *testing.T) {
	body := `{"reason":"` + strings.Repeat("x", MaxBody) + `"}`
	_, err := ParseJSON[override](httptest.NewRequest("POST", "/", strings.NewReader(body)))
	if perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("oversized body: %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(override{Reason: "fine"}); err != nil {
		t.Fatalf("valid struct: %v", err)
	}
	err := Validate(override{Reason: "fine", Secret: "toolong"})
	if w := perr.WireFrom(err); w.Field != "Secret" {
		t.Fatalf("untagged json name should fall back to the Go name, got %+v", w)
	}
	if perr.CodeOf(Validate(42)) != perr.ErrorCodeValidation {
		t.Fatal("non struct input should map to a validation error")
	}
}
