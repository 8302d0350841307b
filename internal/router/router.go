package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/handler"
)

// Guards bundles the middleware chains routes pick from.  Any nil entry is
// treated as a pass-through so tests can register routes without Redis.
type Guards struct {
	Auth       echo.MiddlewareFunc // JWTAuth: valid bearer required
	Optional   echo.MiddlewareFunc // OptionalJWT: bearer read if present
	Admin      echo.MiddlewareFunc // RequireAdmin, after Auth
	RateLimit  echo.MiddlewareFunc // token bucket for auth and mutations
	Cache      echo.MiddlewareFunc // response cache for catalog reads
	Invalidate echo.MiddlewareFunc // purges the cache after successful writes
}

func (g Guards) chain(ms ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(ms))
	for _, m := range ms {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// RegisterRoutes registers the health endpoints, which need no
// authentication.  /healthz is liveness; /api/health also pings the
// database.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/api/health", handler.Readiness(db))
}

// RegisterAuth registers identity routes under /api/auth.  Register,
// login, refresh and logout are open (logout reads a bearer if sent); the
// rest need a token, and listing users needs an admin.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Guards) {
	grp := e.Group("/api/auth")
	grp.POST("/register", a.Register, g.chain(g.RateLimit)...)
	grp.POST("/login", a.Login, g.chain(g.RateLimit)...)
	grp.POST("/refresh", a.Refresh, g.chain(g.RateLimit)...)
	grp.POST("/logout", a.Logout, g.chain(g.Optional)...)
	grp.GET("/me", a.Me, g.chain(g.Auth)...)

	admin := g.chain(g.Auth, g.Admin)
	grp.GET("", a.ListUsers, admin...)
	grp.GET("/users", a.ListUsers, admin...)
}
