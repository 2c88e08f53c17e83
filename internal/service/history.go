package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
)

// HistoryService reads the transfer log. It never writes.
type HistoryService struct {
	transfers transferReader
	users     userRepository
}

func NewHistoryService(transfers transferReader, users userRepository) *HistoryService {
	return &HistoryService{transfers: transfers, users: users}
}

func (s *HistoryService) All(ctx context.Context, page domain.Page) ([]domain.Transfer, int, error) {
	records, total, err := s.transfers.List(ctx, page.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("All: %w", err)
	}
	return records, total, nil
}

// ByUser lists transfers touching any card of the user. An unknown user is
// reported as not found rather than as an empty page.
func (s *HistoryService) ByUser(ctx context.Context, userID uuid.UUID, page domain.Page) ([]domain.Transfer, int, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, 0, fmt.Errorf("ByUser: %w", err)
	}
	records, total, err := s.transfers.ListByUser(ctx, userID, page.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("ByUser: %w", err)
	}
	return records, total, nil
}
