package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
)

// ErrInactiveUser is returned by a PrincipalResolver for deactivated accounts.
var ErrInactiveUser = errors.New("account is deactivated")

// PrincipalResolver loads the current state of a user and its profile ids.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, userID uuid.UUID) (Principal, error)
}

// JWTMiddleware validates the bearer token and re-loads the user on every
// request so deactivation and role changes take effect immediately.
func JWTMiddleware(tokens *TokenIssuer, resolver PrincipalResolver, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			userID, _, err := tokens.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()
			principal, err := resolver.ResolvePrincipal(ctx, userID)
			switch {
			case errors.Is(err, ErrInactiveUser):
				return echo.NewHTTPError(http.StatusUnauthorized, "account is deactivated")
			case apperr.KindOf(err) == apperr.KindNotFound:
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			case err != nil:
				// Store failures reach the error handler as internal errors.
				return fmt.Errorf("resolve principal: %w", err)
			}

			c.Set("user_id", principal.UserID.String())
			c.Set("role", string(principal.Role))
			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, principal)))

			return next(c)
		}
	}
}

// MustPrincipal returns the principal or a 401 when the route was not
// behind JWTMiddleware.
func MustPrincipal(c echo.Context) (Principal, error) {
	p, ok := PrincipalFromContext(c.Request().Context())
	if !ok {
		return Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}
