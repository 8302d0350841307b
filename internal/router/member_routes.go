package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/handler"
)

// RegisterMember registers the routes of signed-in members: bookings,
// the token ledger and token purchases.  Admin-only listings sit in the
// same groups behind RequireAdmin.
func RegisterMember(e *echo.Echo, b *handler.BookingHandler, t *handler.TokenHandler, p *handler.PaymentHandler, g Guards) {
	// ---- Bookings ----
	bk := e.Group("/api/bookings", g.chain(g.Auth)...)
	// Bookings change seat counts, so cached class listings are purged.
	bk.POST("", b.Create, g.chain(g.RateLimit, g.Invalidate)...)
	bk.GET("/me", b.Mine)
	bk.DELETE("/:id", b.Cancel, g.chain(g.RateLimit, g.Invalidate)...)
	bk.GET("", b.All, g.chain(g.Admin)...)
	bk.GET("/all", b.All, g.chain(g.Admin)...)

	// ---- Tokens ----
	tk := e.Group("/api/tokens", g.chain(g.Auth)...)
	tk.GET("/me", t.Mine)
	tk.GET("/all", t.All, g.chain(g.Admin)...)
	tk.POST("/use", t.Use, g.chain(g.RateLimit)...)
	tk.POST("/buy", p.CreateSession, g.chain(g.RateLimit)...)

	// ---- Payments ----
	pay := e.Group("/api/payment")
	member := g.chain(g.Auth, g.RateLimit)
	pay.POST("/create-session", p.CreateSession, member...)
	pay.POST("/createsession", p.CreateSession, member...)
	pay.GET("/sessions/:id", p.Session, g.chain(g.Auth)...)
	// The provider authenticates with a signature, not a bearer.
	pay.POST("/webhook", p.Webhook)
}
