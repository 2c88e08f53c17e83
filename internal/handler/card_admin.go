package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
	"github.com/josh-kwaku/bankcards-api/internal/logging"
	"github.com/josh-kwaku/bankcards-api/internal/service"
)

type cardService interface {
	Create(ctx context.Context, in service.CreateCardInput) (*domain.Card, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, status domain.CardStatus) (*domain.Card, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page domain.Page) ([]domain.Card, int, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status *domain.CardStatus, page domain.Page) ([]domain.Card, int, error)
	GetOwned(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error)
	Balance(ctx context.Context, userID, cardID uuid.UUID) (decimal.Decimal, error)
}

type historyService interface {
	All(ctx context.Context, page domain.Page) ([]domain.Transfer, int, error)
	ByUser(ctx context.Context, userID uuid.UUID, page domain.Page) ([]domain.Transfer, int, error)
}

type blockRequestService interface {
	Request(ctx context.Context, userID, cardID uuid.UUID) (*domain.BlockRequest, error)
	ListPending(ctx context.Context) ([]domain.BlockRequest, error)
	Process(ctx context.Context, requestID uuid.UUID) (*domain.BlockRequest, error)
}

// CardAdminHandler serves /api/cards/admin.
type CardAdminHandler struct {
	cards    cardService
	history  historyService
	requests blockRequestService
}

func NewCardAdminHandler(cards cardService, history historyService, requests blockRequestService) *CardAdminHandler {
	return &CardAdminHandler{cards: cards, history: history, requests: requests}
}

type createCardRequest struct {
	UserID         uuid.UUID        `json:"user_id"`
	ExpirationDate string           `json:"expiration_date"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

func (r createCardRequest) parse() (service.CreateCardInput, []FieldError) {
	var (
		in   = service.CreateCardInput{UserID: r.UserID}
		errs []FieldError
	)
	if r.UserID == uuid.Nil {
		errs = append(errs, FieldError{Field: "user_id", Message: "required"})
	}
	if r.ExpirationDate == "" {
		errs = append(errs, FieldError{Field: "expiration_date", Message: "required"})
	} else if d, err := time.Parse(time.DateOnly, r.ExpirationDate); err != nil {
		errs = append(errs, FieldError{Field: "expiration_date", Message: "must be a date in YYYY-MM-DD format"})
	} else {
		in.ExpirationDate = d
	}
	if r.InitialBalance != nil {
		in.InitialBalance = *r.InitialBalance
		if in.InitialBalance.IsNegative() {
			errs = append(errs, FieldError{Field: "initial_balance", Message: "must not be negative"})
		}
	}
	return in, errs
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

func (h *CardAdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, fields := req.parse()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	card, err := h.cards.Create(r.Context(), in)
	if err != nil {
		logging.FromContext(r.Context()).Warn("failed to issue card", "user_id", in.UserID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toCardDTO(card))
}

func (h *CardAdminHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, appErr := pathID(r, "id", ErrCardNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req changeStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := domain.ParseCardStatus(req.Status)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "status", Message: "must be ACTIVE, BLOCKED or EXPIRED"}})
		return
	}

	card, err := h.cards.ChangeStatus(r.Context(), id, status)
	if err != nil {
		logging.FromContext(r.Context()).Warn("failed to change card status", "card_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toCardDTO(card))
}

func (h *CardAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, appErr := pathID(r, "id", ErrCardNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	if err := h.cards.Delete(r.Context(), id); err != nil {
		logging.FromContext(r.Context()).Warn("failed to delete card", "card_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CardAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, fields := pageFromQuery(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	cards, total, err := h.cards.List(r.Context(), page)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, newPageDTO(cards, total, page, toCardDTO))
}

func (h *CardAdminHandler) Transfers(w http.ResponseWriter, r *http.Request) {
	page, fields := pageFromQuery(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	records, total, err := h.history.All(r.Context(), page)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, newPageDTO(records, total, page, toTransferDTO))
}

func (h *CardAdminHandler) UserTransfers(w http.ResponseWriter, r *http.Request) {
	userID, appErr := pathID(r, "userId", ErrUserNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	page, fields := pageFromQuery(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	records, total, err := h.history.ByUser(r.Context(), userID, page)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, newPageDTO(records, total, page, toTransferDTO))
}

func (h *CardAdminHandler) PendingBlockRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.requests.ListPending(r.Context())
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]blockRequestDTO, len(requests))
	for i := range requests {
		out[i] = toBlockRequestDTO(&requests[i])
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *CardAdminHandler) ProcessBlockRequest(w http.ResponseWriter, r *http.Request) {
	id, appErr := pathID(r, "id", ErrBlockRequestNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	req, err := h.requests.Process(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("failed to process block request", "block_request_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toBlockRequestDTO(req))
}
