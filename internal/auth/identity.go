package auth

import (
	"context"

	"github.com/hezretaly/toefl/internal/models"
)

// Identity is the authenticated caller passed to every service call
type Identity struct {
	UserID uint
	Role   models.UserRole
}

// HasRole reports whether the caller holds one of roles. Admins hold every role.
func (i Identity) HasRole(roles ...models.UserRole) bool {
	if i.Role == models.RoleAdmin {
		return true
	}
	for _, role := range roles {
		if i.Role == role {
			return true
		}
	}
	return false
}

func (i Identity) IsReviewer() bool {
	return i.HasRole(models.RoleTeacher)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}
