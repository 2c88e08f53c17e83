package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusExpired CardStatus = "EXPIRED"
)

func (s CardStatus) IsValid() bool {
	switch s {
	case CardStatusActive, CardStatusBlocked, CardStatusExpired:
		return true
	}
	return false
}

// ParseCardStatus accepts any letter case.
func ParseCardStatus(s string) (CardStatus, error) {
	status := CardStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", ErrInvalidCardStatus
	}
	return status, nil
}

type Card struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	EncryptedNumber string
	LastFour        string
	ExpirationDate  time.Time
	Status          CardStatus
	Balance         decimal.Decimal
	CreatedAt       time.Time
}

// balanceCeiling is the first value a NUMERIC(19,2) balance column cannot hold.
var balanceCeiling = decimal.New(1, 17)

// BalanceFits reports whether b can be stored as a card balance.
func BalanceFits(b decimal.Decimal) bool {
	return b.LessThan(balanceCeiling)
}

// ExpiredAt reports whether the card is past its expiration date on the
// calendar day of now. A card stays usable through its expiration day.
func (c *Card) ExpiredAt(now time.Time) bool {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return c.ExpirationDate.UTC().Before(today)
}

// MaskedNumber renders the card number the way it is shown to clients.
func (c *Card) MaskedNumber() string {
	if c.LastFour == "" {
		return "**** **** **** ????"
	}
	return "**** **** **** " + c.LastFour
}
