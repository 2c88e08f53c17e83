package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
)

const TestPassword = "password123"

func SeedUser(t *testing.T, db *sql.DB, email string, role domain.Role) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		ID:           uuid.New(),
		FullName:     "Test " + email,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, full_name, email, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.FullName, u.Email, u.PasswordHash, u.Role, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

// SeedCard inserts an ACTIVE card valid for two more years. The stored
// number is a placeholder; tests that decrypt numbers create cards through
// the card service instead.
func SeedCard(t *testing.T, db *sql.DB, userID uuid.UUID, balance string) *domain.Card {
	t.Helper()
	return SeedCardWith(t, db, userID, balance, domain.CardStatusActive, time.Now().UTC().AddDate(2, 0, 0))
}

func SeedCardWith(t *testing.T, db *sql.DB, userID uuid.UUID, balance string, status domain.CardStatus, expires time.Time) *domain.Card {
	t.Helper()

	id := uuid.New()
	c := &domain.Card{
		ID:              id,
		UserID:          userID,
		EncryptedNumber: fmt.Sprintf("seed-%s", id),
		LastFour:        "0000",
		ExpirationDate:  expires,
		Status:          status,
		Balance:         decimal.RequireFromString(balance),
		CreatedAt:       time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO cards (id, user_id, encrypted_number, last_four, expiration_date, status, balance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.EncryptedNumber, c.LastFour, c.ExpirationDate, c.Status, c.Balance, c.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed card for %s: %v", userID, err)
	}
	return c
}

func GetCardBalance(t *testing.T, db *sql.DB, cardID uuid.UUID) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT balance FROM cards WHERE id = $1`, cardID).Scan(&balance)
	if err != nil {
		t.Fatalf("get card balance %s: %v", cardID, err)
	}
	return balance
}

func GetCardStatus(t *testing.T, db *sql.DB, cardID uuid.UUID) domain.CardStatus {
	t.Helper()

	var status domain.CardStatus
	err := db.QueryRow(`SELECT status FROM cards WHERE id = $1`, cardID).Scan(&status)
	if err != nil {
		t.Fatalf("get card status %s: %v", cardID, err)
	}
	return status
}

// CountTransfers counts history rows touching the card on either side.
func CountTransfers(t *testing.T, db *sql.DB, cardID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM transfer_history WHERE sender_card_id = $1 OR receiver_card_id = $1`,
		cardID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count transfers for card %s: %v", cardID, err)
	}
	return count
}

// RequireDecimal fails the test unless got equals want numerically.
func RequireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("decimal mismatch: want %s, got %s", want, got)
	}
}
