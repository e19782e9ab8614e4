package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/models"
)

// AnswerRepository interface for stored option and cell selections
type AnswerRepository interface {
	// ReplaceForQuestion swaps the user's rows for the question for the new
	// ones. Scores of the old rows move to the new rows; only scores left with
	// no row to move to are deleted.
	ReplaceForQuestion(ctx context.Context, tx *gorm.DB, userID, questionID uint, answers []models.UserAnswer) error

	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.UserAnswer, error)
	ListByUserAndQuestions(ctx context.Context, tx *gorm.DB, userID uint, questionIDs []uint) ([]*models.UserAnswer, error)
	ListByQuestions(ctx context.Context, tx *gorm.DB, questionIDs []uint) ([]*models.UserAnswer, error)
}
