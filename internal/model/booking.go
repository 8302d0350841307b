package model

import "time"

// Booking records that a user holds a place in a class.  A pair
// (UserID, ClassID) appears at most once.  Cancelling deletes the row;
// the refund lives on in the ledger.
type Booking struct {
	ID        uint64    `json:"id"`         // bookings.id
	UserID    uint64    `json:"user_id"`    // bookings.user_id
	ClassID   uint64    `json:"class_id"`   // bookings.class_id
	CreatedAt time.Time `json:"created_at"` // bookings.created_at
}

// BookingDetail is a booking joined with its class, and with the user
// for the admin overview.
type BookingDetail struct {
	ID         uint64    `json:"id"`
	ClassID    uint64    `json:"class_id"`
	ClassTitle string    `json:"class_title"`
	ClassDate  string    `json:"class_date"`
	ClassTime  string    `json:"class_time"`
	Location   string    `json:"location"`
	UserID     uint64    `json:"user_id"`
	UserName   string    `json:"user_name,omitempty"`
	UserEmail  string    `json:"user_email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
