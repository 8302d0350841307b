package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/payment"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// PaymentConfig holds the purchase settings of PaymentService.
type PaymentConfig struct {
	TokenPrice       decimal.Decimal // price of one token in major currency units
	Currency         string
	MaxTokens        int
	FrontendURL      string
	WebhookSecret    string
	WebhookTolerance time.Duration
}

// PaymentService turns provider payments into ledger purchases.  Each
// external payment id is credited at most once: the processed_payments
// row and the purchase entry are committed together.
type PaymentService struct {
	db       *sql.DB
	users    *repository.UserRepo
	ledger   *repository.LedgerRepo
	payments *repository.PaymentRepo
	provider payment.Provider
	locks    *KeyLocker
	events   Publisher
	log      logrus.FieldLogger
	cfg      PaymentConfig
	now      func() time.Time
}

func NewPaymentService(db *sql.DB, users *repository.UserRepo, ledger *repository.LedgerRepo,
	payments *repository.PaymentRepo, provider payment.Provider, locks *KeyLocker,
	events Publisher, log logrus.FieldLogger, cfg PaymentConfig) *PaymentService {
	if events == nil {
		events = NopPublisher{}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 100
	}
	return &PaymentService{db: db, users: users, ledger: ledger, payments: payments,
		provider: provider, locks: locks, events: events, log: log, cfg: cfg, now: time.Now}
}

// Checkout is returned to the client that starts a purchase.
type Checkout struct {
	SessionID   string `json:"session_id"`
	URL         string `json:"url"`
	Tokens      int    `json:"tokens"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// WebhookResult says what a webhook delivery did.
type WebhookResult struct {
	Applied   bool   `json:"applied"`
	Duplicate bool   `json:"duplicate"`
	Ignored   bool   `json:"ignored"`
	PaymentID string `json:"payment_id,omitempty"`
}

func toCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Price returns the total in cents for tokens.
func (s *PaymentService) Price(tokens int) int64 {
	return toCents(s.cfg.TokenPrice.Mul(decimal.NewFromInt(int64(tokens))))
}

// CreateCheckout opens a provider checkout for tokens and records it as a
// pending session.
func (s *PaymentService) CreateCheckout(ctx context.Context, userID uint64, tokens int) (Checkout, error) {
	if tokens < 1 || tokens > s.cfg.MaxTokens {
		return Checkout{}, fmt.Errorf("%w: tokens must be between 1 and %d", ErrInvalidInput, s.cfg.MaxTokens)
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkout{}, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return Checkout{}, err
	}

	base := strings.TrimRight(s.cfg.FrontendURL, "/")
	req := payment.CheckoutRequest{
		Reference:       uuid.NewString(),
		UserID:          userID,
		Email:           user.Email,
		Tokens:          tokens,
		UnitAmountCents: toCents(s.cfg.TokenPrice),
		Currency:        s.cfg.Currency,
		SuccessURL:      base + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:       base + "/payment/cancel",
	}
	cs, err := s.provider.CreateCheckout(ctx, req)
	if err != nil {
		if errors.Is(err, payment.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			return Checkout{}, errors.Join(ErrProviderUnavailable, err)
		}
		return Checkout{}, fmt.Errorf("create checkout: %w", err)
	}

	sess := model.PaymentSession{
		ID: cs.ID, UserID: userID, TokenCount: tokens,
		AmountCents: s.Price(tokens), Currency: s.cfg.Currency,
	}
	if err := s.payments.CreateSession(ctx, &sess); err != nil {
		return Checkout{}, err
	}
	s.log.WithFields(logrus.Fields{"session_id": cs.ID, "user_id": userID, "tokens": tokens, "reference": req.Reference}).
		Info("checkout created")
	return Checkout{SessionID: cs.ID, URL: cs.URL, Tokens: tokens, AmountCents: sess.AmountCents, Currency: sess.Currency}, nil
}

var errAlreadyProcessed = errors.New("payment already processed")

// HandleWebhook verifies and applies one webhook delivery.  Deliveries
// with a bad signature change nothing.  Events other than a paid
// checkout.session.completed are acknowledged and ignored.  Redelivery of
// a payment already credited reports Duplicate and changes nothing.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	if err := payment.VerifySignature(payload, signature, s.cfg.WebhookSecret, s.cfg.WebhookTolerance, s.now()); err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	ev, err := payment.ParseEvent(payload)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	obj := ev.Data.Object
	if ev.Type != payment.EventCheckoutCompleted || !obj.Paid() {
		s.log.WithFields(logrus.Fields{"event_id": ev.ID, "type": ev.Type}).Debug("webhook ignored")
		return WebhookResult{Ignored: true}, nil
	}
	if obj.ID == "" {
		return WebhookResult{}, fmt.Errorf("%w: checkout session without id", ErrInvalidInput)
	}

	userID, tokens, err := s.purchaseOf(ctx, obj)
	if err != nil {
		return WebhookResult{}, err
	}

	unlock := s.locks.Lock(userKey(userID))
	defer unlock()

	var bal int64
	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.users.LockTx(ctx, tx, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: user %d", ErrNotFound, userID)
			}
			return err
		}
		ref := obj.ID
		entry := model.LedgerEntry{UserID: userID, Amount: int64(tokens), Kind: model.KindPurchase, PaymentRef: &ref}
		if err := s.ledger.AppendTx(ctx, tx, &entry); err != nil {
			return err
		}
		err := s.payments.InsertProcessedTx(ctx, tx, &model.ProcessedPayment{
			PaymentID: obj.ID, UserID: userID, TokenCount: tokens, LedgerEntryID: entry.ID,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return errAlreadyProcessed
		}
		if err != nil {
			return err
		}
		if err := s.payments.CompleteSessionTx(ctx, tx, obj.ID); err != nil {
			return err
		}
		bal, err = s.ledger.BalanceTx(ctx, tx, userID)
		return err
	})
	if errors.Is(err, errAlreadyProcessed) {
		s.log.WithField("payment_id", obj.ID).Info("duplicate webhook delivery ignored")
		return WebhookResult{Duplicate: true, PaymentID: obj.ID}, nil
	}
	if err != nil {
		return WebhookResult{}, err
	}

	s.log.WithFields(logrus.Fields{"payment_id": obj.ID, "user_id": userID, "tokens": tokens}).Info("tokens purchased")
	publish(ctx, s.events, s.log, queue.RoutingTokensPurchased, queue.TokensEvent{
		UserID: userID, Amount: int64(tokens), Balance: bal, PaymentRef: obj.ID, OccurredAt: occurredAt(),
	})
	return WebhookResult{Applied: true, PaymentID: obj.ID}, nil
}

// purchaseOf resolves who paid for how many tokens.  The stored session is
// authoritative; metadata is used for sessions this instance did not
// record.
func (s *PaymentService) purchaseOf(ctx context.Context, obj payment.CheckoutObject) (uint64, int, error) {
	sess, err := s.payments.GetSession(ctx, obj.ID)
	if err == nil {
		return sess.UserID, sess.TokenCount, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, err
	}
	userID, err := obj.UserID()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	tokens, err := obj.Tokens()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return userID, tokens, nil
}

// GetSession returns a session owned by userID.
func (s *PaymentService) GetSession(ctx context.Context, sessionID string, userID uint64) (model.PaymentSession, error) {
	sess, err := s.payments.GetSession(ctx, sessionID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && sess.UserID != userID) {
		return model.PaymentSession{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	return sess, err
}
