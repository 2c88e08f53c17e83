package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

type User struct {
	ID           uuid.UUID
	FullName     string
	Email        string
	PhoneNumber  *string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
