package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/models"
)

// ResponseRepository interface for speaking recordings and writing texts
type ResponseRepository interface {
	// Speaking
	CreateSpeaking(ctx context.Context, tx *gorm.DB, response *models.SpeakingResponse) error
	GetSpeaking(ctx context.Context, tx *gorm.DB, id uint) (*models.SpeakingResponse, error)
	FindSpeaking(ctx context.Context, tx *gorm.DB, userID, taskID uint) (*models.SpeakingResponse, error)
	// UpdateSpeaking points an existing response at a new recording
	UpdateSpeaking(ctx context.Context, tx *gorm.DB, response *models.SpeakingResponse) error
	ListSpeakingByTasks(ctx context.Context, tx *gorm.DB, taskIDs []uint) ([]*models.SpeakingResponse, error)

	// Writing
	CreateWriting(ctx context.Context, tx *gorm.DB, response *models.WritingResponse) error
	UpdateWriting(ctx context.Context, tx *gorm.DB, response *models.WritingResponse) error
	GetWriting(ctx context.Context, tx *gorm.DB, id uint) (*models.WritingResponse, error)
	FindWriting(ctx context.Context, tx *gorm.DB, userID, taskID uint) (*models.WritingResponse, error)
	ListWritingByTasks(ctx context.Context, tx *gorm.DB, taskIDs []uint) ([]*models.WritingResponse, error)
}
