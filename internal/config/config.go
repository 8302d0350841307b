package config // package config loads application configuration from environment variables

import (
	"fmt"     // fmt wraps configuration errors
	"strings" // strings normalizes enum-like values

	"github.com/joho/godotenv"              // godotenv loads an optional .env file
	"github.com/kelseyhightower/envconfig" // envconfig maps env vars onto the struct below
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable named in its envconfig tag.  Secrets have no
// default and must be supplied by the environment.
type Config struct {
	Env  string `envconfig:"APP_ENV" default:"dev"`   // application environment (e.g. "dev", "prod")
	Port string `envconfig:"APP_PORT" default:"8080"` // HTTP port to listen on

	DBDriver   string `envconfig:"DB_DRIVER" default:"mysql"`             // mysql | sqlite
	DBUser     string `envconfig:"DB_USER" default:"root"`                // database username
	DBPass     string `envconfig:"DB_PASS"`                               // database password (optional)
	DBHost     string `envconfig:"DB_HOST" default:"127.0.0.1"`           // database host address
	DBPort     string `envconfig:"DB_PORT" default:"3306"`                // database port number
	DBName     string `envconfig:"DB_NAME" default:"studio"`              // database name
	SQLitePath string `envconfig:"SQLITE_PATH" default:"data/studio.db"` // database file when DB_DRIVER=sqlite

	JWTSecret        string `envconfig:"JWT_SECRET" required:"true"`           // secret used to sign JWTs
	AccessTTLMin     int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"60"`    // access token time-to-live in minutes
	RefreshTTLDays   int    `envconfig:"REFRESH_TOKEN_TTL_DAYS" default:"7"`   // refresh token time-to-live in days
	BcryptCost       int    `envconfig:"BCRYPT_COST" default:"10"`             // bcrypt cost for password hashing
	AllowAdminSignup bool   `envconfig:"ALLOW_ADMIN_SIGNUP" default:"false"`   // whether /register may create admins

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`  // logrus level name
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"` // text | json

	RabbitURL      string `envconfig:"RABBITMQ_URL"`                                // empty disables event publishing
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"studio.events"`     // topic exchange for domain events
	AuditQueue     string `envconfig:"AUDIT_QUEUE" default:"studio.audit"`          // queue bound by the audit consumer
	AuditLogPath   string `envconfig:"AUDIT_LOG_PATH" default:"logs/events.log"`    // file the audit consumer appends to

	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"` // used for CORS and checkout redirects

	PaymentAPIURL        string `envconfig:"PAYMENT_API_URL" default:"https://api.stripe.com"` // provider base URL
	PaymentSecretKey     string `envconfig:"PAYMENT_SECRET_KEY"`                               // provider API key
	PaymentWebhookSecret string `envconfig:"PAYMENT_WEBHOOK_SECRET"`                           // shared secret for webhook signatures
	PaymentCurrency      string `envconfig:"PAYMENT_CURRENCY" default:"eur"`                   // ISO currency for checkout
	TokenPrice           string `envconfig:"TOKEN_PRICE" default:"1.00"`                       // price of one token in major units
	MaxTokensPerPurchase int    `envconfig:"MAX_TOKENS_PER_PURCHASE" default:"100"`            // upper bound for a single checkout
	PaymentTimeoutSec    int    `envconfig:"PAYMENT_TIMEOUT_SEC" default:"10"`                 // bound on one provider call
	WebhookToleranceSec  int    `envconfig:"WEBHOOK_TOLERANCE_SEC" default:"300"`              // accepted signature age
}

// Load reads an optional .env file and then the process environment into a
// Config.  Missing required variables and malformed values are returned as
// errors so that main can decide how to fail.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional; real environment wins over file values

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, fmt.Errorf("load config: JWT_SECRET must not be empty")
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch cfg.DBDriver {
	case "mysql", "sqlite":
	default:
		return Config{}, fmt.Errorf("load config: unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.BcryptCost < 4 {
		cfg.BcryptCost = 10
	}
	if cfg.AccessTTLMin <= 0 {
		cfg.AccessTTLMin = 60
	}
	if cfg.RefreshTTLDays <= 0 {
		cfg.RefreshTTLDays = 7
	}
	if cfg.MaxTokensPerPurchase <= 0 {
		cfg.MaxTokensPerPurchase = 100
	}
	return cfg, nil
}
