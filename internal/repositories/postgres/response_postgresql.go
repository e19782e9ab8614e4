package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
)

type ResponsePostgreSQL struct {
	db *gorm.DB
}

func NewResponsePostgreSQL(db *gorm.DB) repositories.ResponseRepository {
	return &ResponsePostgreSQL{db: db}
}

// ===== SPEAKING =====

func (r *ResponsePostgreSQL) CreateSpeaking(ctx context.Context, tx *gorm.DB, response *models.SpeakingResponse) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(response).Error; err != nil {
		return translateError(err, "create speaking response")
	}
	return nil
}

func (r *ResponsePostgreSQL) GetSpeaking(ctx context.Context, tx *gorm.DB, id uint) (*models.SpeakingResponse, error) {
	db := r.getDB(tx)
	var response models.SpeakingResponse
	if err := db.WithContext(ctx).Preload("User").Preload("Task").First(&response, id).Error; err != nil {
		return nil, translateError(err, fmt.Sprintf("get speaking response %d", id))
	}
	return &response, nil
}

func (r *ResponsePostgreSQL) FindSpeaking(ctx context.Context, tx *gorm.DB, userID, taskID uint) (*models.SpeakingResponse, error) {
	db := r.getDB(tx)
	var response models.SpeakingResponse
	if err := db.WithContext(ctx).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		Order("id DESC").
		First(&response).Error; err != nil {
		return nil, translateError(err, "find speaking response")
	}
	return &response, nil
}

func (r *ResponsePostgreSQL) UpdateSpeaking(ctx context.Context, tx *gorm.DB, response *models.SpeakingResponse) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).
		Model(response).
		Update("audio_url", response.AudioURL).Error; err != nil {
		return translateError(err, "update speaking response")
	}
	return nil
}

func (r *ResponsePostgreSQL) ListSpeakingByTasks(ctx context.Context, tx *gorm.DB, taskIDs []uint) ([]*models.SpeakingResponse, error) {
	if len(taskIDs) == 0 {
		return []*models.SpeakingResponse{}, nil
	}

	db := r.getDB(tx)
	var responses []*models.SpeakingResponse
	if err := db.WithContext(ctx).
		Preload("User").
		Where("task_id IN ?", taskIDs).
		Order("user_id ASC").Order("task_id ASC").
		Find(&responses).Error; err != nil {
		return nil, translateError(err, "list speaking responses")
	}
	return responses, nil
}

// ===== WRITING =====

func (r *ResponsePostgreSQL) CreateWriting(ctx context.Context, tx *gorm.DB, response *models.WritingResponse) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(response).Error; err != nil {
		return translateError(err, "create writing response")
	}
	return nil
}

func (r *ResponsePostgreSQL) UpdateWriting(ctx context.Context, tx *gorm.DB, response *models.WritingResponse) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).
		Model(response).
		Updates(map[string]interface{}{
			"response_text": response.ResponseText,
			"word_count":    response.WordCount,
		}).Error; err != nil {
		return translateError(err, "update writing response")
	}
	return nil
}

func (r *ResponsePostgreSQL) GetWriting(ctx context.Context, tx *gorm.DB, id uint) (*models.WritingResponse, error) {
	db := r.getDB(tx)
	var response models.WritingResponse
	if err := db.WithContext(ctx).Preload("User").Preload("Task").First(&response, id).Error; err != nil {
		return nil, translateError(err, fmt.Sprintf("get writing response %d", id))
	}
	return &response, nil
}

func (r *ResponsePostgreSQL) FindWriting(ctx context.Context, tx *gorm.DB, userID, taskID uint) (*models.WritingResponse, error) {
	db := r.getDB(tx)
	var response models.WritingResponse
	if err := db.WithContext(ctx).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		Order("id DESC").
		First(&response).Error; err != nil {
		return nil, translateError(err, "find writing response")
	}
	return &response, nil
}

func (r *ResponsePostgreSQL) ListWritingByTasks(ctx context.Context, tx *gorm.DB, taskIDs []uint) ([]*models.WritingResponse, error) {
	if len(taskIDs) == 0 {
		return []*models.WritingResponse{}, nil
	}

	db := r.getDB(tx)
	var responses []*models.WritingResponse
	if err := db.WithContext(ctx).
		Preload("User").
		Where("task_id IN ?", taskIDs).
		Order("user_id ASC").Order("task_id ASC").
		Find(&responses).Error; err != nil {
		return nil, translateError(err, "list writing responses")
	}
	return responses, nil
}

func (r *ResponsePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
