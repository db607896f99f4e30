package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
	"github.com/mediconnect/mediconnect/internal/platform/auth"
)

const stackSize = 4 << 10

// Recovery turns a handler panic into an internal apperr so the error
// handler answers with the standard failure envelope. http.ErrAbortHandler
// is re-raised for net/http to handle.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if e, ok := r.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(r)
				}
				stack := make([]byte, stackSize)
				stack = stack[:runtime.Stack(stack, false)]

				cause, ok := r.(error)
				if !ok {
					cause = fmt.Errorf("%v", r)
				}
				rid, _ := c.Get("request_id").(string)
				logger.Error().
					Err(cause).
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Str("user_id", auth.UserIDFromContext(c.Request().Context())).
					Bytes("stack", stack).
					Msg("panic recovered")

				err = apperr.Wrap(cause, apperr.KindInternal, "panic in "+c.Request().Method+" "+c.Path())
			}()
			return next(c)
		}
	}
}
