package handler

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
	"github.com/josh-kwaku/bankcards-api/internal/logging"
	"github.com/josh-kwaku/bankcards-api/internal/service/transfer"
)

type transferEngine interface {
	Transfer(ctx context.Context, req transfer.Request) (*domain.Transfer, error)
}

// CardUserHandler serves /api/cards/user. Every operation acts on behalf of
// the authenticated user.
type CardUserHandler struct {
	cards     cardService
	history   historyService
	requests  blockRequestService
	transfers transferEngine
}

func NewCardUserHandler(cards cardService, history historyService, requests blockRequestService, transfers transferEngine) *CardUserHandler {
	return &CardUserHandler{cards: cards, history: history, requests: requests, transfers: transfers}
}

type transferRequest struct {
	FromCardID uuid.UUID        `json:"from_card_id"`
	ToCardID   uuid.UUID        `json:"to_card_id"`
	Amount     *decimal.Decimal `json:"amount"`
}

// UnmarshalJSON also accepts fromCardId and toCardId. The snake_case key
// wins when a body carries both.
func (r *transferRequest) UnmarshalJSON(data []byte) error {
	var wire struct {
		FromCardID      *uuid.UUID       `json:"from_card_id"`
		ToCardID        *uuid.UUID       `json:"to_card_id"`
		FromCardIDCamel *uuid.UUID       `json:"fromCardId"`
		ToCardIDCamel   *uuid.UUID       `json:"toCardId"`
		Amount          *decimal.Decimal `json:"amount"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return err
	}

	*r = transferRequest{Amount: wire.Amount}
	if id := cmp.Or(wire.FromCardID, wire.FromCardIDCamel); id != nil {
		r.FromCardID = *id
	}
	if id := cmp.Or(wire.ToCardID, wire.ToCardIDCamel); id != nil {
		r.ToCardID = *id
	}
	return nil
}

// Validate covers the request shape only. Business preconditions such as
// a positive amount are left to the engine so their order is preserved.
func (r transferRequest) Validate() []FieldError {
	var errs []FieldError
	if r.FromCardID == uuid.Nil {
		errs = append(errs, FieldError{Field: "from_card_id", Message: "required"})
	}
	if r.ToCardID == uuid.Nil {
		errs = append(errs, FieldError{Field: "to_card_id", Message: "required"})
	}
	if r.Amount == nil {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	}
	return errs
}

type balanceResponse struct {
	CardID  uuid.UUID `json:"card_id"`
	Balance string    `json:"balance"`
}

func (h *CardUserHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, appErr := actingUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	page, fields := pageFromQuery(r)

	var status *domain.CardStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s, err := domain.ParseCardStatus(v)
		if err != nil {
			fields = append(fields, FieldError{Field: "status", Message: "must be ACTIVE, BLOCKED or EXPIRED"})
		}
		status = &s
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	cards, total, err := h.cards.ListByUser(r.Context(), userID, status, page)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, newPageDTO(cards, total, page, toCardDTO))
}

func (h *CardUserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, appErr := actingUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	cardID, appErr := pathID(r, "id", ErrCardNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	card, err := h.cards.GetOwned(r.Context(), userID, cardID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toCardDTO(card))
}

func (h *CardUserHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, appErr := actingUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	cardID, appErr := pathID(r, "id", ErrCardNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	balance, err := h.cards.Balance(r.Context(), userID, cardID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, balanceResponse{CardID: cardID, Balance: balance.StringFixed(2)})
}

func (h *CardUserHandler) RequestBlock(w http.ResponseWriter, r *http.Request) {
	userID, appErr := actingUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	cardID, appErr := pathID(r, "id", ErrCardNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	req, err := h.requests.Request(r.Context(), userID, cardID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("block request rejected", "card_id", cardID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toBlockRequestDTO(req))
}

func (h *CardUserHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, appErr := actingUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	record, err := h.transfers.Transfer(r.Context(), transfer.Request{
		ActingUserID: userID,
		FromCardID:   req.FromCardID,
		ToCardID:     req.ToCardID,
		Amount:       *req.Amount,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransferDTO(record))
}

func (h *CardUserHandler) Transfers(w http.ResponseWriter, r *http.Request) {
	userID, appErr := actingUser(r)
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
