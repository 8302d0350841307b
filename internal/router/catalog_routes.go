package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/handler"
)

// RegisterCatalog registers the class catalog under /api/classes.  Reads
// are public and cached; writes require an admin and purge the cache.
func RegisterCatalog(e *echo.Echo, h *handler.ClassHandler, g Guards) {
	grp := e.Group("/api/classes")
	grp.GET("", h.List, g.chain(g.Cache)...)
	grp.GET("/:id", h.Get, g.chain(g.Cache)...)

	write := g.chain(g.Auth, g.Admin, g.RateLimit, g.Invalidate)
	grp.POST("", h.Create, write...)
	grp.PUT("/:id", h.Update, write...)
	grp.PATCH("/:id", h.Update, write...) // alias for clients that use PATCH
	grp.DELETE("/:id", h.Delete, write...)
}
