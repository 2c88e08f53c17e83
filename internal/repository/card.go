package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
)

const cardColumns = `id, user_id, encrypted_number, last_four, expiration_date,
	status, balance, created_at`

type CardRepository struct {
	db *sql.DB
}

func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1`, id,
	)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrCardNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return c, nil
}

// GetForUpdate reads the card and holds its row lock until tx ends.
func (r *CardRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Card, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1 FOR UPDATE`, id,
	)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrCardNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return c, nil
}

func (r *CardRepository) Create(ctx context.Context, card *domain.Card) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cards (
			id, user_id, encrypted_number, last_four, expiration_date,
			status, balance, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		card.ID, card.UserID, card.EncryptedNumber, card.LastFour, card.ExpirationDate,
		card.Status, card.Balance, card.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrUserNotFound)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *CardRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE cards SET balance = $1 WHERE id = $2`, balance, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}
	return expectCardRow(res, "UpdateBalance")
}

func (r *CardRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.CardStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE cards SET status = $1 WHERE id = $2`, status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	return expectCardRow(res, "UpdateStatus")
}

func (r *CardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("Delete: %w", domain.ErrCardHasHistory)
		}
		return fmt.Errorf("Delete: %w", err)
	}
	return expectCardRow(res, "Delete")
}

func (r *CardRepository) List(ctx context.Context, page domain.Page) ([]domain.Card, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("List: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards ORDER BY created_at, id LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	cards, err := collectCards(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	return cards, total, nil
}

// ListByUser returns the user's cards, optionally narrowed to one status.
func (r *CardRepository) ListByUser(ctx context.Context, userID uuid.UUID, status *domain.CardStatus, page domain.Page) ([]domain.Card, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE user_id = $1 AND ($2::text IS NULL OR status = $2::text)`,
		userID, status,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards
		WHERE user_id = $1 AND ($2::text IS NULL OR status = $2::text)
		ORDER BY created_at, id LIMIT $3 OFFSET $4`,
		userID, status, page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	cards, err := collectCards(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	return cards, total, nil
}

// ExpireDue moves every non-expired card whose expiration date is before
// today to EXPIRED and returns how many rows changed.
func (r *CardRepository) ExpireDue(ctx context.Context, today time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cards SET status = $1 WHERE status <> $1 AND expiration_date < $2`,
		domain.CardStatusExpired, today,
	)
	if err != nil {
		return 0, fmt.Errorf("ExpireDue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ExpireDue: rows affected: %w", err)
	}
	return n, nil
}

func collectCards(rows *sql.Rows) ([]domain.Card, error) {
	defer rows.Close()

	cards := []domain.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return cards, nil
}

func expectCardRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrCardNotFound)
	}
	return nil
}

func scanCard(s scanner) (*domain.Card, error) {
	var c domain.Card
	err := s.Scan(
		&c.ID, &c.UserID, &c.EncryptedNumber, &c.LastFour, &c.ExpirationDate,
		&c.Status, &c.Balance, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
