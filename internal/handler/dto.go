package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
)

type userDTO struct {
	ID          uuid.UUID `json:"id"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	PhoneNumber *string   `json:"phone_number"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserDTO(u *domain.User) userDTO {
	return userDTO{
		ID:          u.ID,
		FullName:    u.FullName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt,
	}
}

// Money is rendered as a string with exactly two decimals.
type cardDTO struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Number         string    `json:"number"`
	ExpirationDate string    `json:"expiration_date"`
	Status         string    `json:"status"`
	Balance        string    `json:"balance"`
	CreatedAt      time.Time `json:"created_at"`
}

func toCardDTO(c *domain.Card) cardDTO {
	return cardDTO{
		ID:             c.ID,
		UserID:         c.UserID,
		Number:         c.MaskedNumber(),
		ExpirationDate: c.ExpirationDate.Format(time.DateOnly),
		Status:         string(c.Status),
		Balance:        c.Balance.StringFixed(2),
		CreatedAt:      c.CreatedAt,
	}
}

type transferDTO struct {
	ID            uuid.UUID `json:"id"`
	FromCardID    uuid.UUID `json:"from_card_id"`
	ToCardID      uuid.UUID `json:"to_card_id"`
	Amount        string    `json:"amount"`
	TransferredAt time.Time `json:"transferred_at"`
}

func toTransferDTO(t *domain.Transfer) transferDTO {
	return transferDTO{
		ID:            t.ID,
		FromCardID:    t.SenderCardID,
		ToCardID:      t.ReceiverCardID,
		Amount:        t.Amount.StringFixed(2),
		TransferredAt: t.TransferredAt,
	}
}

type blockRequestDTO struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	CardID      uuid.UUID  `json:"card_id"`
	RequestedAt time.Time  `json:"requested_at"`
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at"`
}

func toBlockRequestDTO(b *domain.BlockRequest) blockRequestDTO {
	return blockRequestDTO{
		ID:          b.ID,
		UserID:      b.UserID,
		CardID:      b.CardID,
		RequestedAt: b.RequestedAt,
		Processed:   b.Processed,
		ProcessedAt: b.ProcessedAt,
	}
}

type pageDTO[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func newPageDTO[S any, T any](items []S, total int, page domain.Page, convert func(*S) T) pageDTO[T] {
	out := make([]T, len(items))
	for i := range items {
		out[i] = convert(&items[i])
	}
	return pageDTO[T]{Items: out, Total: total, Limit: page.Limit, Offset: page.Offset}
}
