package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EventCheckoutCompleted is the only webhook event type that credits tokens.
const EventCheckoutCompleted = "checkout.session.completed"

// Event is the subset of a webhook event this service reads.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object CheckoutObject `json:"object"`
	} `json:"data"`
}

// CheckoutObject is the checkout session embedded in a completed event.
type CheckoutObject struct {
	ID                string            `json:"id"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	Metadata          map[string]string `json:"metadata"`
}

// Paid reports whether the session was actually paid.
func (o CheckoutObject) Paid() bool { return o.PaymentStatus == "paid" }

// UserID returns metadata.user_id.
func (o CheckoutObject) UserID() (uint64, error) {
	n, err := strconv.ParseUint(o.Metadata["user_id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("metadata user_id: %w", err)
	}
	return n, nil
}

// Tokens returns metadata.tokens.
func (o CheckoutObject) Tokens() (int, error) {
	n, err := strconv.Atoi(o.Metadata["tokens"])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("metadata tokens: invalid value %q", o.Metadata["tokens"])
	}
	return n, nil
}

// ParseEvent decodes a webhook body.
func ParseEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode webhook event: %w", err)
	}
	return ev, nil
}
