package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
	"github.com/josh-kwaku/bankcards-api/internal/logging"
	"github.com/josh-kwaku/bankcards-api/internal/service"
)

type userService interface {
	Create(ctx context.Context, in service.CreateUserInput) (*domain.User, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, id uuid.UUID, in service.UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserHandler is the administrators' user management surface.
type UserHandler struct {
	users userService
}

func NewUserHandler(users userService) *UserHandler {
	return &UserHandler{users: users}
}

type createUserRequest struct {
	registerRequest
	Role string `json:"role"`
}

func (r createUserRequest) Validate() []FieldError {
	errs := r.registerRequest.Validate()
	if r.Role != "" && !domain.Role(r.Role).IsValid() {
		errs = append(errs, FieldError{Field: "role", Message: "must be ADMIN or USER"})
	}
	return errs
}

type updateUserRequest struct {
	FullName    *string `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
	Password    *string `json:"password"`
}

func (r updateUserRequest) Validate() []FieldError {
	var errs []FieldError
	if r.FullName == nil && r.PhoneNumber == nil && r.Password == nil {
		return append(errs, FieldError{Field: "body", Message: "at least one field is required"})
	}
	if r.FullName != nil {
		errs = validateFullName(*r.FullName, errs)
	}
	errs = validatePhone(r.PhoneNumber, errs)
	if r.Password != nil {
		errs = validatePassword(*r.Password, errs)
	}
	return errs
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	user, err := h.users.Create(r.Context(), service.CreateUserInput{
		FullName:    req.FullName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		Role:        domain.Role(req.Role),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("failed to create user", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toUserDTO(user))
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list users", "error", err)
		RespondDomainError(w, err)
		return
	}

	out := make([]userDTO, len(users))
	for i := range users {
		out[i] = toUserDTO(&users[i])
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, appErr := pathID(r, "id", ErrUserNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toUserDTO(user))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, appErr := pathID(r, "id", ErrUserNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	user, err := h.users.Update(r.Context(), id, service.UpdateUserInput{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("failed to update user", "user_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toUserDTO(user))
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, appErr := pathID(r, "id", ErrUserNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		logging.FromContext(r.Context()).Warn("failed to delete user", "user_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
