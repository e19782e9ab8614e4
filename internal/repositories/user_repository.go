package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/models"
)

// UserRepository interface for local accounts
type UserRepository interface {
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.User, error)

	// Validation and checks
	ExistsByUsernameOrEmail(ctx context.Context, tx *gorm.DB, username, email string) (bool, error)
}

// ExternalIdentity is a user asserted by the single sign-on provider
type ExternalIdentity struct {
	ExternalID string
	Username   string
	Email      string
	Role       models.UserRole
}

// IdentityDirectory verifies tokens issued by the single sign-on provider
type IdentityDirectory interface {
	ResolveToken(ctx context.Context, token string) (*ExternalIdentity, error)
}
