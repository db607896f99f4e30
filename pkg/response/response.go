// Package response writes the {success, message, data} envelope used by every
// endpoint and translates errors into it.
package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
)

// Envelope is the body shape of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Kind    apperr.Kind `json:"kind,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

func Message(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func Fail(c echo.Context, status int, kind apperr.Kind, message string) error {
	return c.JSON(status, Envelope{Success: false, Kind: kind, Message: message})
}

// ErrorHandler returns an echo.HTTPErrorHandler that renders errors as
// envelopes. Internal errors are logged and replaced by a generic message.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, kind, msg := classify(err)
		if status == http.StatusInternalServerError {
			logger.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("request failed")
			msg = "internal server error"
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = Fail(c, status, kind, msg)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}

func classify(err error) (int, apperr.Kind, string) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return apperr.HTTPStatus(ae.Kind), ae.Kind, ae.Message
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, kindForStatus(he.Code), msg
	}

	return http.StatusInternalServerError, apperr.KindInternal, ""
}

func kindForStatus(status int) apperr.Kind {
	switch status {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperr.KindNotFound
	case http.StatusForbidden:
		return apperr.KindForbidden
	case http.StatusUnauthorized:
		return apperr.KindUnauthenticated
	case http.StatusConflict:
		return apperr.KindConflict
	case http.StatusUnprocessableEntity:
		return apperr.KindInvalidState
	}
	if status >= 400 && status < 500 {
		return apperr.KindInvalidInput
	}
	return apperr.KindInternal
}
