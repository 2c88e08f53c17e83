package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
	"github.com/josh-kwaku/bankcards-api/internal/logging"
)

type CreateUserInput struct {
	FullName    string
	Email       string
	PhoneNumber *string
	Password    string
	Role        domain.Role
}

// UpdateUserInput changes only the non-nil fields.
type UpdateUserInput struct {
	FullName    *string
	PhoneNumber *string
	Password    *string
}

type UserService struct {
	users userRepository
	now   func() time.Time
}

func NewUserService(users userRepository) *UserService {
	return &UserService{users: users, now: time.Now}
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	u, err := newUser(in, s.now())
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	logging.FromContext(ctx).Info("user created", "user_id", u.ID, "role", u.Role)
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return users, nil
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	if in.FullName != nil {
		u.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.PhoneNumber != nil {
		u.PhoneNumber = in.PhoneNumber
	}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("Update: %w", err)
		}
		u.PasswordHash = hash
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	logging.FromContext(ctx).Info("user updated", "user_id", u.ID)
	return u, nil
}

// Delete removes the user and, through the schema, their cards. Users whose
// cards appear in transfer history cannot be deleted.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	logging.FromContext(ctx).Info("user deleted", "user_id", id)
	return nil
}

func newUser(in CreateUserInput, now time.Time) (*domain.User, error) {
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	return &domain.User{
		ID:           uuid.New(),
		FullName:     strings.TrimSpace(in.FullName),
		Email:        NormalizeEmail(in.Email),
		PhoneNumber:  in.PhoneNumber,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now.UTC(),
	}, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashPassword: %w", err)
	}
	return string(hash), nil
}
