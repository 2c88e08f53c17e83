package repository

import (
	"errors"

	"github.com/lib/pq"
)

type scanner interface {
	Scan(dest ...any) error
}

// Postgres SQLSTATE codes the repositories and the transfer engine react to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pqCode(err) == codeForeignKeyViolation
}

// IsLockFailure reports whether err is Postgres giving up on a row lock:
// lock_timeout expiry, a detected deadlock, a serialization failure or a
// statement cancelled while waiting.
func IsLockFailure(err error) bool {
	switch pqCode(err) {
	case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure, codeQueryCanceled:
		return true
	}
	return false
}

// IsCheckViolation reports whether a CHECK constraint rejected the write,
// which for cards means a balance would have gone negative.
func IsCheckViolation(err error) bool {
	return pqCode(err) == codeCheckViolation
}
