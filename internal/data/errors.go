package data

import (
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrRecordNotFound is returned when a query finds no matching row.
var ErrRecordNotFound = errors.New("record not found")

// ValidationError reports malformed input: a bad format or a missing
// required field. Field names the offending input key.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError reports a uniqueness violation, an illegal state
// transition, or a deletion blocked by a live reference.
type ConflictError struct {
	Message string
	Details string
}

func (e *ConflictError) Error() string { return e.Message }

// NotFoundError reports a referenced id that does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func (e *NotFoundError) Unwrap() error { return ErrRecordNotFound }

// ForbiddenError is returned for every attempt to change history from
// outside the ledger.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

var (
	errBookNotFound    = &NotFoundError{Message: "Book not found"}
	errMemberNotFound  = &NotFoundError{Message: "Member not found"}
	errStaffNotFound   = &NotFoundError{Message: "Staff not found"}
	errAlreadyBorrowed = &ConflictError{Message: "Book already borrowed"}
	errNotBorrowed     = &ConflictError{Message: "Book is not borrowed"}
)

// isUniqueViolation reports whether err is a UNIQUE constraint failure
// from either supported driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
