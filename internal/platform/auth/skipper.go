package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication.
var publicPaths = map[string]bool{
	"/health":            true,
	"/health/db":         true,
	"/metrics":           true,
	"/api/auth/login":    true,
	"/api/auth/register": true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether the route pattern path is served without a token.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
