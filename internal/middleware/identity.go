package middleware

// identity.go defines helpers shared across middleware files and handlers
// for reading the authenticated user out of the Echo context.  JWTAuth
// stores the subject under "user_id" as a uint64.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// ContextUserID is the echo.Context key holding the authenticated user id.
const ContextUserID = "user_id"

// ContextRole is the echo.Context key holding the role claim.
const ContextRole = "role"

// UserIDFrom returns the authenticated user id, if any.
func UserIDFrom(c echo.Context) (uint64, bool) {
	switch t := c.Get(ContextUserID).(type) {
	case uint64:
		return t, t != 0
	case float64:
		return uint64(t), t > 0
	case int64:
		return uint64(t), t > 0
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, n != 0
		}
	}
	return 0, false
}

// currentUserID returns the user id as a string for cache and rate limit
// keys, or "anon" for unauthenticated requests.
func currentUserID(c echo.Context) string {
	if id, ok := UserIDFrom(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
