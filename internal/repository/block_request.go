package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
)

const blockRequestColumns = `id, user_id, card_id, requested_at, processed, processed_at`

type BlockRequestRepository struct {
	db *sql.DB
}

func NewBlockRequestRepository(db *sql.DB) *BlockRequestRepository {
	return &BlockRequestRepository{db: db}
}

// Create fails with ErrBlockRequestExists while another request for the
// same card is still pending.
func (r *BlockRequestRepository) Create(ctx context.Context, req *domain.BlockRequest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO block_requests (id, user_id, card_id, requested_at, processed)
		VALUES ($1, $2, $3, $4, FALSE)`,
		req.ID, req.UserID, req.CardID, req.RequestedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrBlockRequestExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *BlockRequestRepository) ListPending(ctx context.Context) ([]domain.BlockRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+blockRequestColumns+` FROM block_requests
		WHERE NOT processed ORDER BY requested_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("ListPending: %w", err)
	}
	defer rows.Close()

	requests := []domain.BlockRequest{}
	for rows.Next() {
		req, err := scanBlockRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("ListPending: scan: %w", err)
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListPending: rows: %w", err)
	}
	return requests, nil
}

func (r *BlockRequestRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.BlockRequest, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+blockRequestColumns+` FROM block_requests WHERE id = $1 FOR UPDATE`, id,
	)
	req, err := scanBlockRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrBlockRequestNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return req, nil
}

func (r *BlockRequestRepository) MarkProcessed(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE block_requests SET processed = TRUE, processed_at = $1 WHERE id = $2`, at, id,
	)
	if err != nil {
		return fmt.Errorf("MarkProcessed: %w", err)
	}
	return nil
}

func scanBlockRequest(s scanner) (*domain.BlockRequest, error) {
	var req domain.BlockRequest
	err := s.Scan(&req.ID, &req.UserID, &req.CardID, &req.RequestedAt, &req.Processed, &req.ProcessedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
