package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		case "23505", "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a Postgres duplicate-key error,
// optionally limited to a specific constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrListingNotFound      = errors.New("listing not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrAddressNotFound      = errors.New("shipping address not found")
	ErrRoomNotFound         = errors.New("chat room not found")
	ErrVerificationNotFound = errors.New("seller verification not found")

	ErrInsufficientStock = errors.New("insufficient stock")
	ErrListingUnpriced   = errors.New("listing has no price")

	ErrNicknameTaken    = errors.New("nickname already taken")
	ErrAlreadyReviewed  = errors.New("listing already reviewed by this user")
	ErrReviewNotAllowed = errors.New("no confirmed order for this listing")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotParticipant    = errors.New("user is not a room participant")
	ErrRoomMismatch      = errors.New("room does not belong to this listing")
	ErrAddressLimit      = errors.New("address limit reached")
	ErrSellerNotApproved = errors.New("seller verification not approved")

	ErrLockTimeout = errors.New("lock timeout")
)
