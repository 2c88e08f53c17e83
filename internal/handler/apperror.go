package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"}
	ErrAccessDenied       = &AppError{http.StatusForbidden, "ACCESS_DENIED", "Not allowed for this role"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrUserNotFound         = &AppError{http.StatusNotFound, "USER_NOT_FOUND", "User not found"}
	ErrCardNotFound         = &AppError{http.StatusNotFound, "CARD_NOT_FOUND", "Card not found"}
	ErrBlockRequestNotFound = &AppError{http.StatusNotFound, "BLOCK_REQUEST_NOT_FOUND", "Block request not found"}

	ErrNotCardOwner       = &AppError{http.StatusForbidden, "NOT_CARD_OWNER", "Card belongs to another user"}
	ErrCardBlocked        = &AppError{http.StatusForbidden, "CARD_ALREADY_BLOCKED", "Card is already blocked"}
	ErrCardAlreadyExpired = &AppError{http.StatusForbidden, "CARD_ALREADY_EXPIRED", "Card has already expired"}
	ErrForbidden          = &AppError{http.StatusForbidden, "FORBIDDEN", "Operation not allowed"}

	ErrSameCard            = &AppError{http.StatusBadRequest, "SAME_CARD", "Cannot transfer to the same card"}
	ErrInvalidAmount       = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrAmountPrecision     = &AppError{http.StatusBadRequest, "INVALID_AMOUNT_PRECISION", "Amount must have at most two decimal places"}
	ErrCardNotActive       = &AppError{http.StatusBadRequest, "CARD_NOT_ACTIVE", "Card is not active"}
	ErrCardExpired         = &AppError{http.StatusBadRequest, "CARD_EXPIRED", "Card has expired"}
	ErrInsufficientFunds   = &AppError{http.StatusBadRequest, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrInvalidStatusChange = &AppError{http.StatusBadRequest, "INVALID_STATUS_CHANGE", "Card status change not allowed"}
	ErrInvalidCardStatus   = &AppError{http.StatusBadRequest, "INVALID_CARD_STATUS", "Status must be ACTIVE, BLOCKED or EXPIRED"}
	ErrAdminCard           = &AppError{http.StatusBadRequest, "ADMIN_CARD_NOT_ALLOWED", "Cards cannot be issued to administrators"}
	ErrInvalidExpiration   = &AppError{http.StatusBadRequest, "INVALID_EXPIRATION_DATE", "Expiration date must be in the future"}
	ErrNegativeBalance     = &AppError{http.StatusBadRequest, "NEGATIVE_BALANCE", "Balance cannot be negative"}
	ErrBalanceLimit        = &AppError{http.StatusBadRequest, "BALANCE_LIMIT_EXCEEDED", "Balance would exceed the card limit"}
	ErrBlockRequestDone    = &AppError{http.StatusBadRequest, "BLOCK_REQUEST_PROCESSED", "Block request already processed"}
	ErrInvalidState        = &AppError{http.StatusBadRequest, "INVALID_STATE", "Operation not allowed in the current state"}

	ErrEmailTaken          = &AppError{http.StatusConflict, "EMAIL_TAKEN", "Email is already in use"}
	ErrBlockRequestExists  = &AppError{http.StatusConflict, "BLOCK_REQUEST_EXISTS", "A block request for this card already exists"}
	ErrCardHasHistory      = &AppError{http.StatusConflict, "CARD_HAS_HISTORY", "Card has transfer history"}
	ErrUserHasHistory      = &AppError{http.StatusConflict, "USER_HAS_HISTORY", "User has cards with transfer history"}
	ErrConflict            = &AppError{http.StatusConflict, "CONFLICT", "Request conflicts with the current state"}
	ErrIdempotencyConflict = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}

	ErrIdempotencyInProgress = &AppError{http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "A request with this idempotency key is still in progress"}

	ErrTransferUnavailable = &AppError{http.StatusServiceUnavailable, "TRANSFER_UNAVAILABLE", "Transfer could not be completed, please retry"}
)
