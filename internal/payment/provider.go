// Package payment talks to the card payment provider.  Only two things are
// needed from it: creating a hosted checkout page for a token purchase,
// and verifying the webhook it sends once the customer has paid.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrUnavailable is returned when the provider could not be reached or
// kept failing after retries.  The request may be retried later.
var ErrUnavailable = errors.New("payment provider unavailable")

// CheckoutRequest describes one token purchase.
type CheckoutRequest struct {
	Reference       string // our id for the purchase, echoed back by the provider
	UserID          uint64
	Email           string
	Tokens          int
	UnitAmountCents int64
	Currency        string
	SuccessURL      string
	CancelURL       string
}

// CheckoutSession is the provider's answer: its session id and the URL
// the customer is redirected to.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Provider creates checkout sessions.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

// Offline is a Provider that never leaves the process.  It is used when no
// provider key is configured, so the purchase flow can be exercised in
// development by posting a signed webhook by hand.
type Offline struct {
	BaseURL string
}

func (o Offline) CreateCheckout(_ context.Context, req CheckoutRequest) (CheckoutSession, error) {
	id := "cs_offline_" + uuid.NewString()
	return CheckoutSession{
		ID:  id,
		URL: fmt.Sprintf("%s/payment/success?session_id=%s", o.BaseURL, id),
	}, nil
}
