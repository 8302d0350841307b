package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/logging"
	"github.com/iliyamo/studio-booking/internal/payment"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/testfixtures"
)

const testWebhookSecret = "whsec_test"

// recorder is a Publisher that keeps routing keys and events.
type recorder struct {
	mu     sync.Mutex
	keys   []string
	events []any
}

func (r *recorder) Publish(_ context.Context, key string, ev any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, k := range r.keys {
		if k == key {
			n++
		}
	}
	return n
}

// fakeProvider hands out predictable session ids.
type fakeProvider struct {
	mu   sync.Mutex
	n    int
	err  error
	reqs []payment.CheckoutRequest
}

func (f *fakeProvider) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return payment.CheckoutSession{}, f.err
	}
	f.n++
	f.reqs = append(f.reqs, req)
	id := "cs_test_" + itoa(uint64(f.n))
	return payment.CheckoutSession{ID: id, URL: "https://pay.example/" + id}, nil
}

type harness struct {
	db       *sql.DB
	events   *recorder
	provider *fakeProvider
	users    *repository.UserRepo
	auth     *AuthService
	bookings *BookingService
	ledger   *LedgerService
	catalog  *CatalogService
	payments *PaymentService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testfixtures.DB(t)
	log := logging.Discard()
	events := &recorder{}
	provider := &fakeProvider{}

	users := repository.NewUserRepo(db, database.SQLite)
	classes := repository.NewClassRepo(db, database.SQLite)
	bookings := repository.NewBookingRepo(db, database.SQLite)
	ledger := repository.NewLedgerRepo(db)
	payments := repository.NewPaymentRepo(db)
	locks := NewKeyLocker()

	return &harness{
		db:       db,
		events:   events,
		provider: provider,
		users:    users,
		auth: NewAuthService(users, repository.NewTokenRepo(db), AuthConfig{
			JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 1, BcryptCost: 4,
		}, log),
		bookings: NewBookingService(db, users, classes, bookings, ledger, locks, events, log),
		ledger:   NewLedgerService(db, users, ledger, locks, events, log),
		catalog:  NewCatalogService(db, classes, bookings, ledger, locks, events, log),
		payments: NewPaymentService(db, users, ledger, payments, provider, locks, events, log, PaymentConfig{
			TokenPrice:       decimal.RequireFromString("2.50"),
			Currency:         "eur",
			MaxTokens:        50,
			FrontendURL:      "http://front.example",
			WebhookSecret:    testWebhookSecret,
			WebhookTolerance: 5 * time.Minute,
		}),
	}
}
