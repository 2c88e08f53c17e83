package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
	"github.com/josh-kwaku/bankcards-api/internal/logging"
	"github.com/josh-kwaku/bankcards-api/internal/notify"
)

type BlockRequestService struct {
	db       *sql.DB
	requests blockRequestRepository
	cards    cardRepository
	users    userRepository
	notifier blockNotifier
	metrics  blockRecorder
	now      func() time.Time
}

func NewBlockRequestService(
	db *sql.DB,
	requests blockRequestRepository,
	cards cardRepository,
	users userRepository,
	notifier blockNotifier,
	metrics blockRecorder,
) *BlockRequestService {
	if metrics == nil {
		metrics = nopBlockRecorder{}
	}
	return &BlockRequestService{
		db:       db,
		requests: requests,
		cards:    cards,
		users:    users,
		notifier: notifier,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Request files a block request for a card the user owns. Blocked and
// expired cards cannot be requested; a second pending request conflicts.
func (s *BlockRequestService) Request(ctx context.Context, userID, cardID uuid.UUID) (*domain.BlockRequest, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("Request: %w", err)
	}
	if card.UserID != userID {
		return nil, fmt.Errorf("Request: %w", domain.ErrNotCardOwner)
	}
	switch {
	case card.Status == domain.CardStatusBlocked:
		return nil, fmt.Errorf("Request: %w", domain.ErrCardBlocked)
	case card.Status == domain.CardStatusExpired, card.ExpiredAt(s.now()):
		return nil, fmt.Errorf("Request: %w", domain.ErrCardAlreadyExpired)
	}

	req := &domain.BlockRequest{
		ID:          uuid.New(),
		UserID:      userID,
		CardID:      cardID,
		RequestedAt: s.now().UTC(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("Request: %w", err)
	}

	s.metrics.RecordBlockRequest("created")
	logging.FromContext(ctx).Info("block requested", "block_request_id", req.ID, "card_id", cardID)
	return req, nil
}

func (s *BlockRequestService) ListPending(ctx context.Context) ([]domain.BlockRequest, error) {
	requests, err := s.requests.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListPending: %w", err)
	}
	return requests, nil
}

// Process blocks the card and closes the request in one transaction, then
// notifies the owner. A failed notice is logged and does not undo the block.
func (s *BlockRequestService) Process(ctx context.Context, requestID uuid.UUID) (*domain.BlockRequest, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Process: begin tx: %w", err)
	}
	defer tx.Rollback()

	req, err := s.requests.GetForUpdate(ctx, tx, requestID)
	if err != nil {
		return nil, fmt.Errorf("Process: %w", err)
	}
	if req.Processed {
		return nil, fmt.Errorf("Process: %w", domain.ErrBlockRequestDone)
	}

	card, err := s.cards.GetForUpdate(ctx, tx, req.CardID)
	if err != nil {
		return nil, fmt.Errorf("Process: %w", err)
	}
	if card.Status != domain.CardStatusBlocked {
		if err := s.cards.UpdateStatus(ctx, tx, card.ID, domain.CardStatusBlocked); err != nil {
			return nil, fmt.Errorf("Process: %w", err)
		}
	}

	processedAt := s.now().UTC()
	if err := s.requests.MarkProcessed(ctx, tx, req.ID, processedAt); err != nil {
		return nil, fmt.Errorf("Process: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Process: commit: %w", err)
	}

	req.Processed = true
	req.ProcessedAt = &processedAt
	s.metrics.RecordBlockRequest("processed")
	log.Info("card blocked", "block_request_id", req.ID, "card_id", card.ID)

	s.notifyOwner(ctx, card)
	return req, nil
}

func (s *BlockRequestService) notifyOwner(ctx context.Context, card *domain.Card) {
	log := logging.FromContext(ctx)

	owner, err := s.users.GetByID(ctx, card.UserID)
	if err != nil {
		log.Warn("block notice skipped: owner lookup failed", "card_id", card.ID, "error", err)
		return
	}
	err = s.notifier.CardBlocked(ctx, notify.CardBlocked{
		To:       owner.Email,
		FullName: owner.FullName,
		Masked:   card.MaskedNumber(),
	})
	if err != nil {
		log.Warn("block notice failed", "card_id", card.ID, "error", err)
	}
}
