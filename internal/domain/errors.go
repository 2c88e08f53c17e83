package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every specific error below matches exactly one of these
// through errors.Is, which is what the HTTP layer switches on.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrTransient    = errors.New("transient failure")
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}

var (
	ErrUserNotFound         = newKindError(ErrNotFound, "user not found")
	ErrCardNotFound         = newKindError(ErrNotFound, "card not found")
	ErrBlockRequestNotFound = newKindError(ErrNotFound, "block request not found")

	ErrNotCardOwner       = newKindError(ErrForbidden, "card belongs to another user")
	ErrCardBlocked        = newKindError(ErrForbidden, "card is already blocked")
	ErrCardAlreadyExpired = newKindError(ErrForbidden, "card has already expired")

	ErrSameCard            = newKindError(ErrInvalidState, "cannot transfer to the same card")
	ErrInvalidAmount       = newKindError(ErrInvalidState, "amount must be greater than zero")
	ErrAmountPrecision     = newKindError(ErrInvalidState, "amount must have at most two decimal places")
	ErrCardNotActive       = newKindError(ErrInvalidState, "card is not active")
	ErrCardExpired         = newKindError(ErrInvalidState, "card has expired")
	ErrInsufficientFunds   = newKindError(ErrInvalidState, "insufficient funds")
	ErrInvalidStatusChange = newKindError(ErrInvalidState, "card status change not allowed")
	ErrInvalidCardStatus   = newKindError(ErrInvalidState, "invalid card status")
	ErrAdminCard           = newKindError(ErrInvalidState, "cards cannot be issued to administrators")
	ErrInvalidExpiration   = newKindError(ErrInvalidState, "expiration date must be in the future")
	ErrNegativeBalance     = newKindError(ErrInvalidState, "balance cannot be negative")
	ErrBalanceLimit        = newKindError(ErrInvalidState, "balance would exceed the card limit")
	ErrBlockRequestDone    = newKindError(ErrInvalidState, "block request already processed")

	ErrEmailTaken         = newKindError(ErrConflict, "email is already in use")
	ErrBlockRequestExists = newKindError(ErrConflict, "a block request for this card already exists")
	ErrCardHasHistory     = newKindError(ErrConflict, "card has transfer history")
	ErrUserHasHistory     = newKindError(ErrConflict, "user has cards with transfer history")

	ErrTransferAborted = newKindError(ErrTransient, "transfer aborted")

	ErrInvalidCredentials = errors.New("invalid email or password")
)

// AbortError records which step of an atomic unit failed. It matches
// ErrTransferAborted and unwraps to the storage error. Retryable is set when
// the failure came from lock contention or the caller's deadline.
type AbortError struct {
	Step      string
	Cause     error
	Retryable bool
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("transfer aborted during %s: %v", e.Step, e.Cause)
}

func (e *AbortError) Is(target error) bool {
	return target == ErrTransferAborted || target == ErrTransient
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}
