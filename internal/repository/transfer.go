package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
)

const transferColumns = `id, sender_card_id, receiver_card_id, amount, transferred_at`

// TransferRepository is the append-only transfer history. Records are
// written only inside the transaction that moved the money.
type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transfer) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transfer_history (
			id, sender_card_id, receiver_card_id, amount, transferred_at
		) VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.SenderCardID, t.ReceiverCardID, t.Amount, t.TransferredAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransferRepository) List(ctx context.Context, page domain.Page) ([]domain.Transfer, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transfer_history`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("List: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfer_history
		ORDER BY transferred_at DESC, id LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	transfers, err := collectTransfers(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	return transfers, total, nil
}

// ListByUser returns transfers where either side is a card owned by userID.
func (r *TransferRepository) ListByUser(ctx context.Context, userID uuid.UUID, page domain.Page) ([]domain.Transfer, int, error) {
	const where = `WHERE t.sender_card_id IN (SELECT id FROM cards WHERE user_id = $1)
		OR t.receiver_card_id IN (SELECT id FROM cards WHERE user_id = $1)`

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transfer_history t `+where, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.sender_card_id, t.receiver_card_id, t.amount, t.transferred_at
		FROM transfer_history t `+where+`
		ORDER BY t.transferred_at DESC, t.id LIMIT $2 OFFSET $3`,
		userID, page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	transfers, err := collectTransfers(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	return transfers, total, nil
}

func collectTransfers(rows *sql.Rows) ([]domain.Transfer, error) {
	defer rows.Close()

	transfers := []domain.Transfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		transfers = append(transfers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return transfers, nil
}

func scanTransfer(s scanner) (*domain.Transfer, error) {
	var t domain.Transfer
	err := s.Scan(&t.ID, &t.SenderCardID, &t.ReceiverCardID, &t.Amount, &t.TransferredAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
