// Package queue defines message payloads exchanged over the message broker,
// the publisher that sends them and the audit consumer that records them.
package queue

// Routing keys on the events exchange.
const (
	RoutingBookingConfirmed = "booking.confirmed"
	RoutingBookingCancelled = "booking.cancelled"
	RoutingTokensPurchased  = "tokens.purchased"
	RoutingTokensUsed       = "tokens.used"
	RoutingClassDeleted     = "class.deleted"
)

// BookingEvent is published when a booking is confirmed or cancelled.
// It contains enough information for downstream consumers to log, notify,
// or trigger analytics without querying the primary database.
type BookingEvent struct {
	BookingID  uint64 `json:"booking_id"`
	UserID     uint64 `json:"user_id"`
	ClassID    uint64 `json:"class_id"`
	ClassTitle string `json:"class_title"`
	ClassDate  string `json:"class_date"`
	ClassTime  string `json:"class_time"`
	Balance    int64  `json:"balance"`
	ActorID    uint64 `json:"actor_id,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// TokensEvent is published for purchases and direct debits.
type TokensEvent struct {
	UserID     uint64 `json:"user_id"`
	Amount     int64  `json:"amount"`
	Balance    int64  `json:"balance"`
	PaymentRef string `json:"payment_ref,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// ClassDeletedEvent is published after a class and its bookings are gone.
type ClassDeletedEvent struct {
	ClassID    uint64 `json:"class_id"`
	Title      string `json:"title"`
	Refunded   int    `json:"refunded"`
	OccurredAt string `json:"occurred_at"`
}
