// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services to distinguish between different failure scenarios: a unique
// index hit on insert is reported as ErrDuplicate (or ErrEmailExists for
// users), and missing rows surface as sql.ErrNoRows.
package repository

import (
	"errors"
	"strings"
)

// ErrDuplicate is returned when an insert hits a unique index, such as a
// second booking for the same class or a replayed payment id.
var ErrDuplicate = errors.New("duplicate")

// ErrEmailExists is returned by UserRepo.Create for a taken address.
var ErrEmailExists = errors.New("email already exists")

// isUniqueViolation recognizes duplicate-key errors from both drivers:
// MySQL error 1062 and SQLite's UNIQUE/PRIMARY KEY constraint failures.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "unique constraint failed")
}
