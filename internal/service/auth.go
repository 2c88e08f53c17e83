package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
	"github.com/josh-kwaku/bankcards-api/internal/logging"
)

type tokenIssuer interface {
	Generate(user *domain.User) (string, error)
}

type AuthService struct {
	users  userRepository
	tokens tokenIssuer
	now    func() time.Time
}

func NewAuthService(users userRepository, tokens tokenIssuer) *AuthService {
	return &AuthService{users: users, tokens: tokens, now: time.Now}
}

// Register creates a USER account. The role in the input is ignored.
func (s *AuthService) Register(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	in.Role = domain.RoleUser
	u, err := newUser(in, s.now())
	if err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}

	logging.FromContext(ctx).Info("user registered", "user_id", u.ID)
	return u, nil
}

// Login returns ErrInvalidCredentials for an unknown email and for a wrong
// password alike.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, fmt.Errorf("Login: %w", domain.ErrInvalidCredentials)
		}
		return "", nil, fmt.Errorf("Login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("Login: %w", domain.ErrInvalidCredentials)
	}

	token, err := s.tokens.Generate(u)
	if err != nil {
		return "", nil, fmt.Errorf("Login: %w", err)
	}
	return token, u, nil
}
