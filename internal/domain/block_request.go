package domain

import (
	"time"

	"github.com/google/uuid"
)

type BlockRequest struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	CardID      uuid.UUID
	RequestedAt time.Time
	Processed   bool
	ProcessedAt *time.Time
}
