package transfer

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
)

// validateRequest runs the checks that need no stored state.
func validateRequest(req Request) error {
	if req.FromCardID == req.ToCardID {
		return fmt.Errorf("validateRequest: %w", domain.ErrSameCard)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("validateRequest: %w", domain.ErrInvalidAmount)
	}
	if !req.Amount.Equal(req.Amount.Truncate(2)) {
		return fmt.Errorf("validateRequest: %w", domain.ErrAmountPrecision)
	}
	return nil
}

// checkLockedCards validates the cards as read under their row locks.
// A nil card means the id did not resolve.
func checkLockedCards(req Request, from, to *domain.Card, now time.Time) error {
	if from == nil {
		return fmt.Errorf("checkLockedCards: sender card %s: %w", req.FromCardID, domain.ErrCardNotFound)
	}
	if to == nil {
		return fmt.Errorf("checkLockedCards: receiver card %s: %w", req.ToCardID, domain.ErrCardNotFound)
	}

	if from.UserID != req.ActingUserID {
		return fmt.Errorf("checkLockedCards: sender card: %w", domain.ErrNotCardOwner)
	}
	if to.UserID != req.ActingUserID {
		return fmt.Errorf("checkLockedCards: receiver card: %w", domain.ErrNotCardOwner)
	}

	if err := verifyCardUsable(from, now); err != nil {
		return fmt.Errorf("checkLockedCards: sender: %w", err)
	}
	if err := verifyCardUsable(to, now); err != nil {
		return fmt.Errorf("checkLockedCards: receiver: %w", err)
	}

	if from.Balance.LessThan(req.Amount) {
		return fmt.Errorf("checkLockedCards: %w", domain.ErrInsufficientFunds)
	}
	if !domain.BalanceFits(to.Balance.Add(req.Amount)) {
		return fmt.Errorf("checkLockedCards: receiver card %s: %w", to.ID, domain.ErrBalanceLimit)
	}
	return nil
}

func verifyCardUsable(card *domain.Card, now time.Time) error {
	if card.Status != domain.CardStatusActive {
		return fmt.Errorf("card %s is %s: %w", card.ID, card.Status, domain.ErrCardNotActive)
	}
	if card.ExpiredAt(now) {
		return fmt.Errorf("card %s: %w", card.ID, domain.ErrCardExpired)
	}
	return nil
}

// lockOrder sorts ids ascending by their byte value so every transfer over
// the same pair acquires the row locks in the same sequence.
func lockOrder(ids ...uuid.UUID) []uuid.UUID {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})
	return sorted
}
