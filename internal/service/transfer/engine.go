// Package transfer moves money between two cards of the same user.
//
// Both card rows are locked with SELECT ... FOR UPDATE in ascending id order
// before any mutable field is read, so two transfers over the same pair in
// opposite directions serialize instead of deadlocking. Balance changes and
// the history record commit in one database transaction.
package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
	"github.com/josh-kwaku/bankcards-api/internal/logging"
	"github.com/josh-kwaku/bankcards-api/internal/repository"
)

type cardStore interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Card, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal) error
}

type historyLog interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transfer) error
}

type recorder interface {
	RecordTransfer(outcome domain.TransferState, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransfer(domain.TransferState, time.Duration) {}

type Request struct {
	ActingUserID uuid.UUID
	FromCardID   uuid.UUID
	ToCardID     uuid.UUID
	Amount       decimal.Decimal
}

type Engine struct {
	db          *sql.DB
	cards       cardStore
	history     historyLog
	metrics     recorder
	lockTimeout time.Duration
	now         func() time.Time
}

func NewEngine(db *sql.DB, cards cardStore, history historyLog, metrics recorder, lockTimeout time.Duration) *Engine {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Engine{
		db:          db,
		cards:       cards,
		history:     history,
		metrics:     metrics,
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

// Transfer debits req.Amount from the sender card and credits the receiver
// card. Precondition failures match domain.ErrNotFound, domain.ErrForbidden
// or domain.ErrInvalidState and leave no trace. Storage and lock failures
// return a *domain.AbortError after a full rollback. Cancelling ctx ends a
// pending lock wait but not a transfer whose rows are already locked.
func (e *Engine) Transfer(ctx context.Context, req Request) (*domain.Transfer, error) {
	log := logging.FromContext(ctx).With(
		"from_card_id", req.FromCardID,
		"to_card_id", req.ToCardID,
		"amount", req.Amount.String(),
	)
	start := time.Now()

	t, state, err := e.transfer(ctx, req)
	e.metrics.RecordTransfer(state, time.Since(start))

	switch state {
	case domain.TransferStateCommitted:
		log.Info("transfer committed", "transfer_id", t.ID)
		return t, nil
	case domain.TransferStateRejected:
		log.Warn("transfer rejected", "error", err)
	default:
		log.Error("transfer aborted", "error", err)
	}
	return nil, fmt.Errorf("Transfer: %w", err)
}

func (e *Engine) transfer(ctx context.Context, req Request) (*domain.Transfer, domain.TransferState, error) {
	if err := validateRequest(req); err != nil {
		return nil, domain.TransferStateRejected, err
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, domain.TransferStateAborted, abort(ctx, "begin", err)
	}
	defer conn.Close()

	// Only the lock wait follows the caller's context. Once both rows are
	// held the transaction runs to commit or rollback on its own.
	txCtx := context.WithoutCancel(ctx)
	tx, err := conn.BeginTx(txCtx, nil)
	if err != nil {
		return nil, domain.TransferStateAborted, abort(ctx, "begin", err)
	}
	defer tx.Rollback()

	if err := setLockTimeout(ctx, tx, e.lockTimeout); err != nil {
		return nil, domain.TransferStateAborted, abort(ctx, "lock timeout", err)
	}

	locked, err := lockCardsInOrder(ctx, tx, e.cards, req.FromCardID, req.ToCardID)
	if err != nil {
		return nil, domain.TransferStateAborted, abort(ctx, "locking", err)
	}

	from, to := locked[req.FromCardID], locked[req.ToCardID]
	if err := checkLockedCards(req, from, to, e.now()); err != nil {
		return nil, domain.TransferStateRejected, err
	}

	record := &domain.Transfer{
		ID:             uuid.New(),
		SenderCardID:   from.ID,
		ReceiverCardID: to.ID,
		Amount:         req.Amount,
		TransferredAt:  e.now().UTC(),
	}

	if err := e.cards.UpdateBalance(txCtx, tx, from.ID, from.Balance.Sub(req.Amount)); err != nil {
		if repository.IsCheckViolation(err) {
			return nil, domain.TransferStateRejected, fmt.Errorf("debit: %w", domain.ErrInsufficientFunds)
		}
		return nil, domain.TransferStateAborted, abort(txCtx, "debit", err)
	}
	if err := e.cards.UpdateBalance(txCtx, tx, to.ID, to.Balance.Add(req.Amount)); err != nil {
		return nil, domain.TransferStateAborted, abort(txCtx, "credit", err)
	}
	if err := e.history.Create(txCtx, tx, record); err != nil {
		return nil, domain.TransferStateAborted, abort(txCtx, "history", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.TransferStateAborted, abort(txCtx, "commit", err)
	}
	return record, domain.TransferStateCommitted, nil
}

// setLockTimeout bounds how long this transaction waits on a row lock.
func setLockTimeout(ctx context.Context, tx *sql.Tx, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`SELECT set_config('lock_timeout', $1, true)`,
		fmt.Sprintf("%dms", d.Milliseconds()),
	)
	return err
}

// lockCardsInOrder locks every existing card in ascending id order. Missing
// ids are left out of the result; only storage failures are errors.
func lockCardsInOrder(ctx context.Context, tx *sql.Tx, cards cardStore, ids ...uuid.UUID) (map[uuid.UUID]*domain.Card, error) {
	result := make(map[uuid.UUID]*domain.Card, len(ids))
	for _, id := range lockOrder(ids...) {
		card, err := cards.GetForUpdate(ctx, tx, id)
		if errors.Is(err, domain.ErrCardNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lockCardsInOrder: %w", err)
		}
		result[id] = card
	}
	return result, nil
}

func abort(ctx context.Context, step string, err error) error {
	retryable := repository.IsLockFailure(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		ctx.Err() != nil
	return &domain.AbortError{Step: step, Cause: err, Retryable: retryable}
}
