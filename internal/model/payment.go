package model

import "time"

// Payment session states.
const (
	SessionPending   = "pending"
	SessionCompleted = "completed"
)

// PaymentSession tracks a checkout created with the payment provider
// until its webhook arrives.
type PaymentSession struct {
	ID          string     `json:"session_id"`             // payment_sessions.id (provider id)
	UserID      uint64     `json:"user_id"`                // payment_sessions.user_id
	TokenCount  int        `json:"tokens"`                 // payment_sessions.token_count
	AmountCents int64      `json:"amount_cents"`           // payment_sessions.amount_cents
	Currency    string     `json:"currency"`               // payment_sessions.currency
	Status      string     `json:"status"`                 // payment_sessions.status
	CreatedAt   time.Time  `json:"created_at"`             // payment_sessions.created_at
	CompletedAt *time.Time `json:"completed_at,omitempty"` // payment_sessions.completed_at (nullable)
}

// ProcessedPayment marks an external payment id as applied to the ledger.
// Its primary key is what makes webhook delivery idempotent.
type ProcessedPayment struct {
	PaymentID     string    // processed_payments.payment_id
	UserID        uint64    // processed_payments.user_id
	TokenCount    int       // processed_payments.token_count
	LedgerEntryID uint64    // processed_payments.ledger_entry_id
	ProcessedAt   time.Time // processed_payments.processed_at
}
