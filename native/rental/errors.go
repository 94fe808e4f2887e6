package rental

import (
	"errors"
	"fmt"

	"trustrent/crypto"
)

// The overlap and overdraw messages are matched verbatim by clients.
var (
	ErrOverlapBooking   = errors.New("Overlap booking")
	ErrExceedEscrow     = errors.New("Exceed escrow")
	ErrNothingToRelease = errors.New("rental: nothing to release")
	// ErrInsufficientFunds wraps failures reported by the value ledger when
	// pulling a booking payment.
	ErrInsufficientFunds = errors.New("rental: insufficient funds")

	ErrListingNotFound  = errors.New("rental: listing not found")
	ErrBookingNotFound  = errors.New("rental: booking not found")
	ErrInvalidPrice     = errors.New("rental: price must be positive")
	ErrNegativePrice    = errors.New("rental: price must not be negative")
	ErrInvalidInterval  = errors.New("rental: invalid booking interval")
	ErrInvalidAmount    = errors.New("rental: amount must not be negative")
	ErrMetadataTooLong  = errors.New("rental: metadata uri too long")
	ErrTermsTooLong     = errors.New("rental: terms too long")
	ErrArbiterNotConfig = errors.New("rental: arbiter not configured")

	errNilState  = errors.New("rental engine: state not configured")
	errNilLedger = errors.New("rental engine: value ledger not configured")
	errNilIssuer = errors.New("rental engine: certificate issuer not configured")
)

// Role names the party an operation is restricted to.
type Role string

const (
	RoleHost    Role = "host"
	RoleGuest   Role = "guest"
	RoleArbiter Role = "arbiter"
)

// AuthorizationError is returned when the caller does not hold the role an
// operation requires.
type AuthorizationError struct {
	Action string
	Caller [20]byte
	Role   Role
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("rental: %s requires %s, caller %s", e.Action, e.Role, crypto.FormatAddress(e.Caller))
}

// StateError is returned when an operation is not valid for the booking's
// current status.
type StateError struct {
	Action string
	Status BookingStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("rental: cannot %s booking in status %s", e.Action, e.Status)
}

func unauthorized(action string, caller [20]byte, role Role) error {
	return &AuthorizationError{Action: action, Caller: caller, Role: role}
}

func invalidState(action string, status BookingStatus) error {
	return &StateError{Action: action, Status: status}
}

// IsAuthorizationError reports whether err is an AuthorizationError.
func IsAuthorizationError(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

// IsStateError reports whether err is a StateError.
func IsStateError(err error) bool {
	var target *StateError
	return errors.As(err, &target)
}
