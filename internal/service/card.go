package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/bankcards-api/internal/cardnumber"
	"github.com/josh-kwaku/bankcards-api/internal/domain"
	"github.com/josh-kwaku/bankcards-api/internal/logging"
)

type CreateCardInput struct {
	UserID         uuid.UUID
	ExpirationDate time.Time
	InitialBalance decimal.Decimal
}

type CardService struct {
	db     *sql.DB
	cards  cardRepository
	users  userRepository
	sealer cardNumberSealer
	now    func() time.Time
}

func NewCardService(db *sql.DB, cards cardRepository, users userRepository, sealer cardNumberSealer) *CardService {
	return &CardService{db: db, cards: cards, users: users, sealer: sealer, now: time.Now}
}

// Create issues a new ACTIVE card with a random number to a non-admin user.
func (s *CardService) Create(ctx context.Context, in CreateCardInput) (*domain.Card, error) {
	owner, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if owner.Role == domain.RoleAdmin {
		return nil, fmt.Errorf("Create: %w", domain.ErrAdminCard)
	}

	expires := dateOnly(in.ExpirationDate)
	if !expires.After(dateOnly(s.now())) {
		return nil, fmt.Errorf("Create: %w", domain.ErrInvalidExpiration)
	}
	if in.InitialBalance.IsNegative() {
		return nil, fmt.Errorf("Create: %w", domain.ErrNegativeBalance)
	}
	if !domain.BalanceFits(in.InitialBalance) {
		return nil, fmt.Errorf("Create: %w", domain.ErrBalanceLimit)
	}
	if !in.InitialBalance.Equal(in.InitialBalance.Truncate(2)) {
		return nil, fmt.Errorf("Create: %w", domain.ErrAmountPrecision)
	}

	number, err := cardnumber.Generate()
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	sealed, err := s.sealer.Seal(number)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	card := &domain.Card{
		ID:              uuid.New(),
		UserID:          owner.ID,
		EncryptedNumber: sealed,
		LastFour:        cardnumber.LastFour(number),
		ExpirationDate:  expires,
		Status:          domain.CardStatusActive,
		Balance:         in.InitialBalance,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.cards.Create(ctx, card); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	logging.FromContext(ctx).Info("card issued",
		"card_id", card.ID,
		"user_id", owner.ID,
		"expiration_date", expires.Format(time.DateOnly),
	)
	return card, nil
}

// ChangeStatus sets a card's status under a row lock. An expired card cannot
// be reactivated, either by status or by date.
func (s *CardService) ChangeStatus(ctx context.Context, id uuid.UUID, status domain.CardStatus) (*domain.Card, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("ChangeStatus: %w", domain.ErrInvalidCardStatus)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ChangeStatus: begin tx: %w", err)
	}
	defer tx.Rollback()

	card, err := s.cards.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("ChangeStatus: %w", err)
	}
	if card.Status == status {
		return card, nil
	}
	if status == domain.CardStatusActive {
		if card.Status == domain.CardStatusExpired {
			return nil, fmt.Errorf("ChangeStatus: %w", domain.ErrInvalidStatusChange)
		}
		if card.ExpiredAt(s.now()) {
			return nil, fmt.Errorf("ChangeStatus: %w", domain.ErrCardExpired)
		}
	}

	if err := s.cards.UpdateStatus(ctx, tx, id, status); err != nil {
		return nil, fmt.Errorf("ChangeStatus: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ChangeStatus: commit: %w", err)
	}

	logging.FromContext(ctx).Info("card status changed",
		"card_id", id,
		"from", card.Status,
		"to", status,
	)
	card.Status = status
	return card, nil
}

func (s *CardService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.cards.Delete(ctx, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	logging.FromContext(ctx).Info("card deleted", "card_id", id)
	return nil
}

func (s *CardService) List(ctx context.Context, page domain.Page) ([]domain.Card, int, error) {
	cards, total, err := s.cards.List(ctx, page.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	return cards, total, nil
}

func (s *CardService) ListByUser(ctx context.Context, userID uuid.UUID, status *domain.CardStatus, page domain.Page) ([]domain.Card, int, error) {
	cards, total, err := s.cards.ListByUser(ctx, userID, status, page.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	return cards, total, nil
}

// GetOwned returns the card only when userID owns it.
func (s *CardService) GetOwned(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("GetOwned: %w", err)
	}
	if card.UserID != userID {
		return nil, fmt.Errorf("GetOwned: %w", domain.ErrNotCardOwner)
	}
	return card, nil
}

func (s *CardService) Balance(ctx context.Context, userID, cardID uuid.UUID) (decimal.Decimal, error) {
	card, err := s.GetOwned(ctx, userID, cardID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}
	return card.Balance, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
