package model

import "time"

// EntryKind classifies a ledger entry.  The sign of Amount is fixed by
// the kind: purchases and refunds credit, uses debit.
type EntryKind string

const (
	KindPurchase EntryKind = "purchase"
	KindUse      EntryKind = "use"
	KindRefund   EntryKind = "refund"
)

// Valid reports whether k is a known kind.
func (k EntryKind) Valid() bool {
	switch k {
	case KindPurchase, KindUse, KindRefund:
		return true
	}
	return false
}

// SignMatches reports whether amount has the sign required by k.
func (k EntryKind) SignMatches(amount int64) bool {
	if k == KindUse {
		return amount < 0
	}
	return amount > 0
}

// LedgerEntry is one immutable row of the token ledger.  A user's
// balance is the sum of Amount over all of their entries.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – account the entry belongs to.
//  Amount     – signed number of tokens.
//  Kind       – purchase, use or refund.
//  BookingID  – booking that caused a use or refund, if any.
//  PaymentRef – external payment id for purchases, if any.
//  CreatedAt  – when the entry was appended.
type LedgerEntry struct {
	ID         uint64    `json:"id"`                    // ledger_entries.id
	UserID     uint64    `json:"user_id"`               // ledger_entries.user_id
	Amount     int64     `json:"amount"`                // ledger_entries.amount
	Kind       EntryKind `json:"kind"`                  // ledger_entries.kind
	BookingID  *uint64   `json:"booking_id,omitempty"`  // ledger_entries.booking_id (nullable)
	PaymentRef *string   `json:"payment_ref,omitempty"` // ledger_entries.payment_ref (nullable)
	CreatedAt  time.Time `json:"created_at"`            // ledger_entries.created_at
}

// UserBalance is one line of the admin balance overview.
type UserBalance struct {
	UserID  uint64 `json:"user_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Balance int64  `json:"balance"`
}
