package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/models"
)

// SectionRepository interface for sections and their containers and tasks
type SectionRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, section *models.Section) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint, sectionType models.SectionType) (*models.Section, error)
	ListByType(ctx context.Context, tx *gorm.DB, sectionType models.SectionType) ([]*models.Section, error)
	UpdateTitle(ctx context.Context, tx *gorm.DB, id uint, sectionType models.SectionType, title string) error

	// Delete removes the section with everything stored under it and returns
	// the media references that were attached to the removed rows.
	Delete(ctx context.Context, tx *gorm.DB, id uint, sectionType models.SectionType) (*SectionMedia, error)

	// GetContent loads the full student-facing tree of a section
	GetContent(ctx context.Context, tx *gorm.DB, id uint, sectionType models.SectionType) (*models.Section, error)

	// Containers
	CreatePassage(ctx context.Context, tx *gorm.DB, passage *models.ReadingPassage) error
	CreateAudio(ctx context.Context, tx *gorm.DB, audio *models.ListeningAudio) error
	GetContainerIDs(ctx context.Context, tx *gorm.DB, sectionID uint, sectionType models.SectionType) ([]uint, error)

	// GetByQuestion returns the section a question belongs to through its container
	GetByQuestion(ctx context.Context, tx *gorm.DB, question *models.Question) (*models.Section, error)

	// Tasks
	CreateSpeakingTask(ctx context.Context, tx *gorm.DB, task *models.SpeakingTask) error
	CreateWritingTask(ctx context.Context, tx *gorm.DB, task *models.WritingTask) error
	GetSpeakingTasks(ctx context.Context, tx *gorm.DB, sectionID uint) ([]*models.SpeakingTask, error)
	GetWritingTasks(ctx context.Context, tx *gorm.DB, sectionID uint) ([]*models.WritingTask, error)
}
