package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
)

type ScorePostgreSQL struct {
	db *gorm.DB
}

func NewScorePostgreSQL(db *gorm.DB) repositories.ScoreRepository {
	return &ScorePostgreSQL{db: db}
}

func (s *ScorePostgreSQL) GetByTarget(ctx context.Context, tx *gorm.DB, target models.ScoreTarget) (*models.Score, error) {
	db := s.getDB(tx)
	var score models.Score
	if err := s.whereTarget(db.WithContext(ctx), target.ResponseType(), []uint{target.TargetID()}).
		Preload("Scorer").
		First(&score).Error; err != nil {
		return nil, translateError(err, "get score")
	}
	return &score, nil
}

// Save creates the row on first grade and updates it in place afterwards
func (s *ScorePostgreSQL) Save(ctx context.Context, tx *gorm.DB, score *models.Score) error {
	db := s.getDB(tx).WithContext(ctx).Omit(clause.Associations)
	if score.ID == 0 {
		if err := db.Create(score).Error; err != nil {
			return translateError(err, "create score")
		}
		return nil
	}
	if err := db.Save(score).Error; err != nil {
		return translateError(err, "update score")
	}
	return nil
}

func (s *ScorePostgreSQL) ListByTargets(ctx context.Context, tx *gorm.DB, responseType models.ResponseType, ids []uint) (map[uint]*models.Score, error) {
	result := make(map[uint]*models.Score, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	db := s.getDB(tx)
	var scores []*models.Score
	if err := s.whereTarget(db.WithContext(ctx), responseType, ids).
		Preload("Scorer").
		Find(&scores).Error; err != nil {
		return nil, translateError(err, "list scores")
	}

	for _, score := range scores {
		target, err := score.Target()
		if err != nil {
			continue
		}
		result[target.TargetID()] = score
	}
	return result, nil
}

func (s *ScorePostgreSQL) whereTarget(db *gorm.DB, responseType models.ResponseType, ids []uint) *gorm.DB {
	column := "response_id"
	if responseType.IsAnswer() {
		column = "user_answer_id"
	}
	return db.Where("response_type = ?", responseType).Where(column+" IN ?", ids)
}

func (s *ScorePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
