// Package validation checks request payloads with go-playground/validator
// struct tags and reports failures as invalid-input errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var std = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		return IsDate(fl.Field().String())
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := NormalizeClock(fl.Field().String())
		return err == nil
	})
	return v
}

// Struct validates s against its `validate` tags.
func Struct(s interface{}) error {
	err := std.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(err, apperr.KindInvalidInput, "invalid request")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return apperr.InvalidInput("validation failed: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "date":
		return fe.Field() + " must be a date (YYYY-MM-DD)"
	case "clock":
		return fe.Field() + " must be a time (HH:MM)"
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// Echo adapts the validator to echo.Validator.
type Echo struct{}

func (Echo) Validate(i interface{}) error { return Struct(i) }

// Bind decodes the request body into dst. Malformed bodies are invalid input.
func Bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		// Field decoders may report their own invalid-input error.
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return ae
		}
		return apperr.Wrap(err, apperr.KindInvalidInput, "invalid request body")
	}
	return nil
}

// IsDate reports whether s is a calendar date in YYYY-MM-DD form.
func IsDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// NormalizeClock accepts HH:MM or HH:MM:SS and returns HH:MM.
func NormalizeClock(s string) (string, error) {
	for _, layout := range []string{ClockLayout, "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ClockLayout), nil
		}
	}
	return "", apperr.InvalidInput("invalid time %q, expected HH:MM", s)
}
