package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
)

type identityKey struct{}

// Identity is the acting user resolved from the bearer token.
type Identity struct {
	UserID uuid.UUID
	Role   domain.Role
}

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.UserID, ok
}

func RoleFromContext(ctx context.Context) (domain.Role, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.Role, ok
}
