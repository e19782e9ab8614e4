package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/models"
)

// ReviewRepository interface for review aggregation queries
type ReviewRepository interface {
	// StudentProgress returns one entry per section the student submitted to
	StudentProgress(ctx context.Context, tx *gorm.DB, userID uint) ([]StudentSectionProgress, error)

	// SectionStudentCounts returns sections of the type that have at least one submission
	SectionStudentCounts(ctx context.Context, tx *gorm.DB, sectionType models.SectionType) ([]SectionStudentCount, error)
}
