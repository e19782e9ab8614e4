package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/models"
)

// QuestionRepository interface for reading and listening questions
type QuestionRepository interface {
	// Create inserts the question together with its options, rows and columns
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	CreateCorrectAnswers(ctx context.Context, tx *gorm.DB, answers []models.CorrectAnswer) error
	CreateAudio(ctx context.Context, tx *gorm.DB, audio *models.QuestionAudio) error

	// GetWithChoices loads a question with ordered options/rows/columns and its correct answers
	GetWithChoices(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)

	// ListBySection loads every question of a section with choices and correct answers
	ListBySection(ctx context.Context, tx *gorm.DB, sectionID uint, sectionType models.SectionType) ([]*models.Question, error)
	ListByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)

	// Ordered accessors, sorted by (position, id)
	OrderedOptions(ctx context.Context, tx *gorm.DB, questionID uint) ([]models.Option, error)
	OrderedRows(ctx context.Context, tx *gorm.DB, questionID uint) ([]models.TableRow, error)
	OrderedColumns(ctx context.Context, tx *gorm.DB, questionID uint) ([]models.TableColumn, error)
}
