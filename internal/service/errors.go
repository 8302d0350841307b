// Package service holds the business rules of the studio: the booking
// engine, the token ledger, the class catalog, payments and identity.
// Handlers call services; services own transactions and translate
// repository errors into the sentinels below.
package service

import "errors"

// Error kinds returned by services.  They are wrapped with %w, so callers
// match them with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyBooked       = errors.New("already booked")
	ErrClassFull           = errors.New("class full")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrConflict            = errors.New("conflict")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)

// Kind returns the stable machine-readable name of err's kind, or
// "internal" when err is not one of the service errors.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyBooked):
		return "already_booked"
	case errors.Is(err, ErrClassFull):
		return "class_full"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	}
	return "internal"
}
