package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// OperatorKeyHeader carries the platform operator's API key.
const OperatorKeyHeader = "X-Operator-Key"

// RequireOperatorKey admits only requests presenting the platform operator
// key.  Hall accounts never hold it, so routes behind it cannot be driven by
// the hall they act on.  An empty key closes the route entirely.
func RequireOperatorKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(OperatorKeyHeader)
			if key == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "operator key required"})
			}
			return next(c)
		}
	}
}
