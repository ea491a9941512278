package middleware

// identity.go holds the accessors for the identity JWTAuth stores in the
// Echo context.  Handlers use them instead of type-asserting c.Get values.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user id, or "" when there is none.
func UserID(c echo.Context) string {
	s, _ := c.Get(CtxUserID).(string)
	return s
}

// HallID returns the hall of the authenticated account.
func HallID(c echo.Context) (int64, bool) {
	id, ok := c.Get(CtxHallID).(int64)
	return id, ok && id > 0
}

func Role(c echo.Context) string {
	s, _ := c.Get(CtxRole).(string)
	return s
}

// PathHallID parses the :hallId route parameter.
func PathHallID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("hallId"), 10, 64)
	return id, err == nil && id > 0
}

// userID is the rate limiter's view of the caller: "guest" when
// unauthenticated.
func userID(c echo.Context) string {
	if s := UserID(c); s != "" {
		return s
	}
	return "guest"
}

func hallKey(c echo.Context) string {
	if id, ok := PathHallID(c); ok {
		return strconv.FormatInt(id, 10)
	}
	if id, ok := HallID(c); ok {
		return strconv.FormatInt(id, 10)
	}
	return "none"
}
