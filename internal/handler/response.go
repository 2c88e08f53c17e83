package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
)

// retryAfterSeconds is sent with 503 responses for aborted transfers.
const retryAfterSeconds = 1

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	var abortErr *domain.AbortError
	if errors.As(err, &abortErr) {
		if abortErr.Retryable {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
			RespondAppError(w, ErrTransferUnavailable, nil)
			return
		}
		slog.Error("transfer aborted", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	RespondAppError(w, appErrorFor(err), nil)
}

// appErrorFor picks the most specific AppError, falling back to the error's
// kind. Anything unrecognised is logged and reported as internal.
func appErrorFor(err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return ErrInvalidCredentials

	case errors.Is(err, domain.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, domain.ErrCardNotFound):
		return ErrCardNotFound
	case errors.Is(err, domain.ErrBlockRequestNotFound):
		return ErrBlockRequestNotFound
	case errors.Is(err, domain.ErrNotFound):
		return ErrResourceNotFound

	case errors.Is(err, domain.ErrNotCardOwner):
		return ErrNotCardOwner
	case errors.Is(err, domain.ErrCardBlocked):
		return ErrCardBlocked
	case errors.Is(err, domain.ErrCardAlreadyExpired):
		return ErrCardAlreadyExpired
	case errors.Is(err, domain.ErrForbidden):
		return ErrForbidden

	case errors.Is(err, domain.ErrSameCard):
		return ErrSameCard
	case errors.Is(err, domain.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, domain.ErrAmountPrecision):
		return ErrAmountPrecision
	case errors.Is(err, domain.ErrCardNotActive):
		return ErrCardNotActive
	case errors.Is(err, domain.ErrCardExpired):
		return ErrCardExpired
	case errors.Is(err, domain.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, domain.ErrInvalidStatusChange):
		return ErrInvalidStatusChange
	case errors.Is(err, domain.ErrInvalidCardStatus):
		return ErrInvalidCardStatus
	case errors.Is(err, domain.ErrAdminCard):
		return ErrAdminCard
	case errors.Is(err, domain.ErrInvalidExpiration):
		return ErrInvalidExpiration
	case errors.Is(err, domain.ErrNegativeBalance):
		return ErrNegativeBalance
	case errors.Is(err, domain.ErrBalanceLimit):
		return ErrBalanceLimit
	case errors.Is(err, domain.ErrBlockRequestDone):
		return ErrBlockRequestDone
	case errors.Is(err, domain.ErrInvalidState):
		return ErrInvalidState

	case errors.Is(err, domain.ErrEmailTaken):
		return ErrEmailTaken
	case errors.Is(err, domain.ErrBlockRequestExists):
		return ErrBlockRequestExists
	case errors.Is(err, domain.ErrCardHasHistory):
		return ErrCardHasHistory
	case errors.Is(err, domain.ErrUserHasHistory):
		return ErrUserHasHistory
	case errors.Is(err, domain.ErrConflict):
		return ErrConflict

	default:
		slog.Error("unhandled domain error", "error", err)
		return ErrInternalError
	}
}
