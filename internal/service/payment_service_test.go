package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/studio-booking/internal/payment"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/testfixtures"
)

func completedEvent(t *testing.T, sessionID, status string, meta map[string]string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":   "evt_" + sessionID,
		"type": payment.EventCheckoutCompleted,
		"data": map[string]any{"object": map[string]any{
			"id":             sessionID,
			"payment_status": status,
			"metadata":       meta,
		}},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return body
}

func sign(body []byte) string {
	return payment.Sign(body, testWebhookSecret, time.Now())
}

func TestPriceUsesDecimalArithmetic(t *testing.T) {
	h := newHarness(t)
	if got := h.payments.Price(3); got != 750 {
		t.Fatalf("3 tokens at 2.50: want 750 cents, got %d", got)
	}
}

func TestCreateCheckoutRecordsPendingSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := testfixtures.User(t, h.db, "ana", false)

	co, err := h.payments.CreateCheckout(ctx, u.ID, 4)
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if co.SessionID == "" || co.URL == "" || co.AmountCents != 1000 || co.Currency != "eur" {
		t.Fatalf("unexpected checkout %+v", co)
	}
	req := h.provider.reqs[0]
	if req.UnitAmountCents != 250 || req.Tokens != 4 || req.Email != u.Email {
		t.Fatalf("unexpected provider request %+v", req)
	}
	sess, err := h.payments.GetSession(ctx, co.SessionID, u.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != "pending" || sess.TokenCount != 4 {
		t.Fatalf("unexpected session %+v", sess)
	}
	other := testfixtures.User(t, h.db, "other", false)
	if _, err := h.payments.GetSession(ctx, co.SessionID, other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign session: expected ErrNotFound, got %v", err)
	}
	if got := testfixtures.Balance(t, h.db, u.ID); got != 0 {
		t.Fatalf("checkout alone must not credit; balance %d", got)
	}
}

func TestCreateCheckoutRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := testfixtures.User(t, h.db, "ana", false)

	for _, n := range []int{0, -1, 51} {
		if _, err := h.payments.CreateCheckout(ctx, u.ID, n); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("tokens=%d: expected ErrInvalidInput, got %v", n, err)
		}
	}
	if _, err := h.payments.CreateCheckout(ctx, 9999, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: expected ErrNotFound, got %v", err)
	}
	h.provider.err = payment.ErrUnavailable
	if _, err := h.payments.CreateCheckout(ctx, u.ID, 1); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("provider down: expected ErrProviderUnavailable, got %v", err)
	}
}

func TestWebhookCreditsOnceOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := testfixtures.User(t, h.db, "ana", false)
	co, err := h.payments.CreateCheckout(ctx, u.ID, 5)
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	body := completedEvent(t, co.SessionID, "paid", nil)

	res, err := h.payments.HandleWebhook(ctx, body, sign(body))
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if !res.Applied || res.Duplicate {
		t.Fatalf("expected applied, got %+v", res)
	}
	for i := 0; i < 3; i++ {
		res, err = h.payments.HandleWebhook(ctx, body, sign(body))
		if err != nil {
			t.Fatalf("redelivery %d: %v", i, err)
		}
		if !res.Duplicate || res.Applied {
			t.Fatalf("redelivery %d: expected duplicate, got %+v", i, res)
		}
	}
	if got := testfixtures.Balance(t, h.db, u.ID); got != 5 {
		t.Fatalf("expected 5 tokens credited once, got %d", got)
	}
	sess, err := h.payments.GetSession(ctx, co.SessionID, u.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != "completed" || sess.CompletedAt == nil {
		t.Fatalf("expected completed session, got %+v", sess)
	}
	if h.events.count(queue.RoutingTokensPurchased) != 1 {
		t.Fatalf("expected one tokens.purchased event, got %v", h.events.keys)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := testfixtures.User(t, h.db, "ana", false)
	co, err := h.payments.CreateCheckout(ctx, u.ID, 5)
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	body := completedEvent(t, co.SessionID, "paid", nil)

	headers := map[string]string{
		"missing":    "",
		"wrong key":  payment.Sign(body, "other-secret", time.Now()),
		"stale":      payment.Sign(body, testWebhookSecret, time.Now().Add(-time.Hour)),
		"other body": sign([]byte(`{"id":"evt_x"}`)),
	}
	for name, header := range headers {
		if _, err := h.payments.HandleWebhook(ctx, body, header); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("%s: expected ErrInvalidSignature, got %v", name, err)
		}
	}
	if got := testfixtures.Balance(t, h.db, u.ID); got != 0 {
		t.Fatalf("rejected webhooks must not credit; balance %d", got)
	}
}

func TestWebhookIgnoresUnpaidAndOtherEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := testfixtures.User(t, h.db, "ana", false)
	co, err := h.payments.CreateCheckout(ctx, u.ID, 2)
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}

	unpaid := completedEvent(t, co.SessionID, "unpaid", nil)
	res, err := h.payments.HandleWebhook(ctx, unpaid, sign(unpaid))
	if err != nil || !res.Ignored {
		t.Fatalf("unpaid: expected ignored, got %+v, %v", res, err)
	}
	other := []byte(`{"id":"evt_1","type":"payment_intent.created","data":{"object":{}}}`)
	res, err = h.payments.HandleWebhook(ctx, other, sign(other))
	if err != nil || !res.Ignored {
		t.Fatalf("other type: expected ignored, got %+v, %v", res, err)
	}
	garbage := []byte(`not json`)
	if _, err := h.payments.HandleWebhook(ctx, garbage, sign(garbage)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("garbage: expected ErrInvalidInput, got %v", err)
	}
	if got := testfixtures.Balance(t, h.db, u.ID); got != 0 {
		t.Fatalf("ignored events must not credit; balance %d", got)
	}
}

func TestWebhookFallsBackToMetadata(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := testfixtures.User(t, h.db, "ana", false)

	body := completedEvent(t, "cs_external_1", "paid", map[string]string{
		"user_id": itoa(u.ID), "tokens": "3",
	})
	res, err := h.payments.HandleWebhook(ctx, body, sign(body))
	if err != nil || !res.Applied {
		t.Fatalf("expected applied, got %+v, %v", res, err)
	}
	if got := testfixtures.Balance(t, h.db, u.ID); got != 3 {
		t.Fatalf("expected 3 tokens, got %d", got)
	}

	noMeta := completedEvent(t, "cs_external_2", "paid", nil)
	if _, err := h.payments.HandleWebhook(ctx, noMeta, sign(noMeta)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("no metadata: expected ErrInvalidInput, got %v", err)
	}
}

// Ten tokens bought, ten classes booked, then the eleventh fails for funds
// and a cancellation gives one token back.
func TestTenTokenRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := testfixtures.User(t, h.db, "ana", false)

	co, err := h.payments.CreateCheckout(ctx, u.ID, 10)
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	body := completedEvent(t, co.SessionID, "paid", nil)
	if _, err := h.payments.HandleWebhook(ctx, body, sign(body)); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}

	var last uint64
	for i := 0; i < 10; i++ {
		c := testfixtures.Class(t, h.db, "c", 2)
		b, err := h.bookings.RequestBooking(ctx, u.ID, c.ID)
		if err != nil {
			t.Fatalf("booking %d: %v", i, err)
		}
		last = b.ID
	}
	extra := testfixtures.Class(t, h.db, "extra", 2)
	if _, err := h.bookings.RequestBooking(ctx, u.ID, extra.ID); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("11th booking: expected ErrInsufficientFunds, got %v", err)
	}
	if err := h.bookings.CancelBooking(ctx, last, u.ID); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	st, err := h.ledger.History(ctx, u.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	// purchase + 10 uses + 1 refund
	if st.Balance != 1 || len(st.Entries) != 12 {
		t.Fatalf("want balance 1 over 12 entries, got %d over %d", st.Balance, len(st.Entries))
	}
}
