// Package app wires repositories, services, handlers and routes into one
// echo instance.  main supplies the infrastructure; tests supply a SQLite
// database and leave Redis and RabbitMQ out.
package app

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/handler"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/payment"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/router"
	"github.com/iliyamo/studio-booking/internal/service"
)

// Options are the dependencies of New.  Redis, Events and Provider are
// optional.
type Options struct {
	Config    config.Config
	DB        *sql.DB
	Dialect   database.Dialect
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Events    service.Publisher
	Provider  payment.Provider // nil picks one from Config
	Log       logrus.FieldLogger
}

// Server is the assembled application.
type Server struct {
	Echo     *echo.Echo
	Auth     *service.AuthService
	Bookings *service.BookingService
	Ledger   *service.LedgerService
	Catalog  *service.CatalogService
	Payments *service.PaymentService
}

// New builds the services and registers every route.
func New(o Options) (*Server, error) {
	cfg := o.Config
	if o.Events == nil {
		o.Events = service.NopPublisher{}
	}
	price, err := decimal.NewFromString(strings.TrimSpace(cfg.TokenPrice))
	if err != nil || !price.IsPositive() {
		return nil, fmt.Errorf("invalid TOKEN_PRICE %q", cfg.TokenPrice)
	}
	provider := o.Provider
	if provider == nil {
		provider = newProvider(cfg, o.Log)
	}

	users := repository.NewUserRepo(o.DB, o.Dialect)
	tokens := repository.NewTokenRepo(o.DB)
	classes := repository.NewClassRepo(o.DB, o.Dialect)
	bookings := repository.NewBookingRepo(o.DB, o.Dialect)
	ledger := repository.NewLedgerRepo(o.DB)
	payments := repository.NewPaymentRepo(o.DB)

	locks := service.NewKeyLocker()
	s := &Server{
		Auth: service.NewAuthService(users, tokens, service.AuthConfig{
			JWTSecret:        cfg.JWTSecret,
			AccessTTLMin:     cfg.AccessTTLMin,
			RefreshTTLDays:   cfg.RefreshTTLDays,
			BcryptCost:       cfg.BcryptCost,
			AllowAdminSignup: cfg.AllowAdminSignup,
		}, o.Log),
		Bookings: service.NewBookingService(o.DB, users, classes, bookings, ledger, locks, o.Events, o.Log),
		Ledger:   service.NewLedgerService(o.DB, users, ledger, locks, o.Events, o.Log),
		Catalog:  service.NewCatalogService(o.DB, classes, bookings, ledger, locks, o.Events, o.Log),
		Payments: service.NewPaymentService(o.DB, users, ledger, payments, provider, locks, o.Events, o.Log,
			service.PaymentConfig{
				TokenPrice:       price,
				Currency:         cfg.PaymentCurrency,
				MaxTokens:        cfg.MaxTokensPerPurchase,
				FrontendURL:      cfg.FrontendURL,
				WebhookSecret:    cfg.PaymentWebhookSecret,
				WebhookTolerance: time.Duration(cfg.WebhookToleranceSec) * time.Second,
			}),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = middleware.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(o.Log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.HeaderRequestID},
	}))

	guards := router.Guards{
		Auth:       middleware.JWTAuth(cfg.JWTSecret),
		Optional:   middleware.OptionalJWT(cfg.JWTSecret),
		Admin:      middleware.RequireAdmin(s.Auth.IsAdmin, o.Log),
		RateLimit:  middleware.NewTokenBucket(o.RateLimit, o.Redis, o.Log),
		Cache:      middleware.NewRedisCache(o.Cache, o.Redis),
		Invalidate: middleware.InvalidateOnSuccess(o.Cache, o.Redis, o.Log),
	}
	router.RegisterRoutes(e, o.DB)
	router.RegisterAuth(e, handler.NewAuthHandler(s.Auth, o.Log), guards)
	router.RegisterCatalog(e, handler.NewClassHandler(s.Catalog, o.Log), guards)
	router.RegisterMember(e,
		handler.NewBookingHandler(s.Bookings, o.Log),
		handler.NewTokenHandler(s.Ledger, o.Log),
		handler.NewPaymentHandler(s.Payments, o.Log),
		guards)
	s.Echo = e
	return s, nil
}

// newProvider returns the Stripe client when a secret key is configured,
// otherwise the offline provider that redirects straight to the frontend.
func newProvider(cfg config.Config, log logrus.FieldLogger) payment.Provider {
	if cfg.PaymentSecretKey == "" {
		log.Warn("PAYMENT_SECRET_KEY not set; using offline checkout provider")
		return payment.Offline{BaseURL: cfg.FrontendURL}
	}
	return payment.NewClient(cfg.PaymentAPIURL, cfg.PaymentSecretKey,
		time.Duration(cfg.PaymentTimeoutSec)*time.Second, log)
}
