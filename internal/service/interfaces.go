package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
	"github.com/josh-kwaku/bankcards-api/internal/notify"
)

type userRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type cardRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Card, error)
	Create(ctx context.Context, card *domain.Card) error
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.CardStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page domain.Page) ([]domain.Card, int, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status *domain.CardStatus, page domain.Page) ([]domain.Card, int, error)
}

type transferReader interface {
	List(ctx context.Context, page domain.Page) ([]domain.Transfer, int, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page domain.Page) ([]domain.Transfer, int, error)
}

type blockRequestRepository interface {
	Create(ctx context.Context, req *domain.BlockRequest) error
	ListPending(ctx context.Context) ([]domain.BlockRequest, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.BlockRequest, error)
	MarkProcessed(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error
}

type cardNumberSealer interface {
	Seal(number string) (string, error)
}

type blockNotifier interface {
	CardBlocked(ctx context.Context, n notify.CardBlocked) error
}

type blockRecorder interface {
	RecordBlockRequest(event string)
}

type nopBlockRecorder struct{}

func (nopBlockRecorder) RecordBlockRequest(string) {}
