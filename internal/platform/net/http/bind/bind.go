// Package bind decodes request bodies and runs struct validation with readable messages
package bind

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"

	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
)

// MaxBody caps how much of a request body ParseJSON reads
const MaxBody = 1 << 20

var period = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// messages replace the stock english text for these tags
var messages = map[string]string{
	"min":    "{0} must be at least {1}",
	"max":    "{0} must be at most {1}",
	"period": "{0} must be a month as YYYY-MM",
}

type engine struct {
	v     *validator.Validate
	trans ut.Translator
}

var get = sync.OnceValue(func() engine {
	loc := en.New()
	trans, _ := ut.New(loc, loc).GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		return period.MatchString(fl.Field().String())
	})
	_ = entrans.RegisterDefaultTranslations(v, trans)
	for tag, text := range messages {
		_ = v.RegisterTranslation(tag, trans,
			func(t ut.Translator) error { return t.Add(tag, text, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(fe.Tag(), fe.Field(), fe.Param())
				return msg
			},
		)
	}
	return engine{v: v, trans: trans}
})

// ParseJSON decodes one strict JSON object into T and validates it
func ParseJSON[T any](r *http.Request) (T, error) {
	var zero, dst T
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dst); err != nil {
		if errors.Is(err, io.EOF) {
			return zero, perr.JSONErrf("empty body")
		}
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}
	if dec.More() {
		return zero, perr.JSONErrf("unexpected trailing data")
	}
	if err := Validate(dst); err != nil {
		return zero, err
	}
	return dst, nil
}

// Validate runs struct tags on v, the first failing field names the error
func Validate(v any) error {
	err := get().v.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		logger.Named("bind").Error().Err(err).Msg("validator misuse")
		return perr.New(perr.ErrorCodeValidation, "validation error")
	}
	fe := verrs[0]
	return perr.WithField(perr.New(perr.ErrorCodeValidation, fe.Translate(get().trans)), fe.Field())
}
