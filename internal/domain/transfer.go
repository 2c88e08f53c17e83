package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is an append-only record of a committed card-to-card transfer.
type Transfer struct {
	ID             uuid.UUID
	SenderCardID   uuid.UUID
	ReceiverCardID uuid.UUID
	Amount         decimal.Decimal
	TransferredAt  time.Time
}

type TransferState string

const (
	TransferStateValidating TransferState = "validating"
	TransferStateLocking    TransferState = "locking"
	TransferStateMutating   TransferState = "mutating"
	TransferStateCommitted  TransferState = "committed"
	TransferStateRejected   TransferState = "rejected"
	TransferStateAborted    TransferState = "aborted"
)
