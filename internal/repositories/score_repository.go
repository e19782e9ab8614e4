package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/models"
)

// ScoreRepository interface for reviewer scores
type ScoreRepository interface {
	GetByTarget(ctx context.Context, tx *gorm.DB, target models.ScoreTarget) (*models.Score, error)

	// Save inserts a new score or updates an existing one in place
	Save(ctx context.Context, tx *gorm.DB, score *models.Score) error

	// ListByTargets loads scores with their scorer for many targets of one kind,
	// keyed by target id.
	ListByTargets(ctx context.Context, tx *gorm.DB, responseType models.ResponseType, ids []uint) (map[uint]*models.Score, error)
}
