package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// AdminLookup reports whether a user is an administrator according to
// the stored user record.
type AdminLookup func(ctx context.Context, userID uint64) (bool, error)

// RequireAdmin returns a middleware that lets the request through only
// when the authenticated user is an admin.  The role claim in the token
// is not trusted; isAdmin is consulted on every request so that revoking
// the flag takes effect immediately.  It assumes JWTAuth ran before it.
func RequireAdmin(isAdmin AdminLookup, log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := UserIDFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing user"})
			}
			admin, err := isAdmin(c.Request().Context(), uid)
			if err != nil {
				log.WithError(err).WithField("user_id", uid).Error("admin lookup failed")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal error"})
			}
			if !admin {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "admin only"})
			}
			return next(c)
		}
	}
}
