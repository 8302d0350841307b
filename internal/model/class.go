package model

import "time"

// Class is a scheduled session in the studio that clients book with
// tokens.  Date and StartTime are kept as the strings the admin entered
// ("YYYY-MM-DD" and "HH:MM"); the studio runs in a single timezone.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – class name shown to clients.
//  Description – free text.
//  Date        – calendar day of the class.
//  StartTime   – local start time.
//  DurationMin – length in minutes, at least 1.
//  Location    – room or address.
//  Capacity    – maximum number of bookings, at least 1.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Class struct {
	ID          uint64    `json:"id"`           // classes.id
	Title       string    `json:"title"`        // classes.title
	Description string    `json:"description"`  // classes.description
	Date        string    `json:"date"`         // classes.class_date
	StartTime   string    `json:"time"`         // classes.start_time
	DurationMin int       `json:"duration_min"` // classes.duration_min
	Location    string    `json:"location"`     // classes.location
	Capacity    int       `json:"capacity"`     // classes.capacity
	CreatedAt   time.Time `json:"created_at"`   // classes.created_at
	UpdatedAt   time.Time `json:"updated_at"`   // classes.updated_at
}

// Class availability states derived from the booking count.
const (
	ClassOpen = "open"
	ClassFull = "full"
)

// ClassSummary is a Class together with its current booking count, as
// returned by the public listing.
type ClassSummary struct {
	Class
	Booked    int    `json:"booked"`
	SeatsLeft int    `json:"seats_left"`
	Status    string `json:"status"`
}

// NewClassSummary derives SeatsLeft and Status from booked.
func NewClassSummary(c Class, booked int) ClassSummary {
	left := c.Capacity - booked
	if left < 0 {
		left = 0
	}
	status := ClassOpen
	if left == 0 {
		status = ClassFull
	}
	return ClassSummary{Class: c, Booked: booked, SeatsLeft: left, Status: status}
}
