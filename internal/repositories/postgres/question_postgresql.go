package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

// ===== BASIC CRUD OPERATIONS =====

// Create inserts the question; options, rows and columns on the struct are
// inserted with it and receive their ids.
func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Omit("CorrectAnswers", "Audio").Create(question).Error; err != nil {
		return translateError(err, "create question")
	}
	return nil
}

func (q *QuestionPostgreSQL) CreateCorrectAnswers(ctx context.Context, tx *gorm.DB, answers []models.CorrectAnswer) error {
	if len(answers) == 0 {
		return nil
	}

	db := q.getDB(tx)
	if err := db.WithContext(ctx).Create(&answers).Error; err != nil {
		return translateError(err, "create correct answers")
	}
	return nil
}

func (q *QuestionPostgreSQL) CreateAudio(ctx context.Context, tx *gorm.DB, audio *models.QuestionAudio) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Create(audio).Error; err != nil {
		return translateError(err, "create question audio")
	}
	return nil
}

func (q *QuestionPostgreSQL) GetWithChoices(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	db := q.getDB(tx)
	var question models.Question
	if err := q.withChoices(db.WithContext(ctx)).First(&question, id).Error; err != nil {
		return nil, translateError(err, fmt.Sprintf("get question %d", id))
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) ListBySection(ctx context.Context, tx *gorm.DB, sectionID uint, sectionType models.SectionType) ([]*models.Question, error) {
	db := q.getDB(tx).WithContext(ctx)
	var questions []*models.Question
	if err := q.withChoices(db).
		Where("id IN (?)", questionIDsOfSection(db, sectionID, sectionType)).
		Order("id ASC").
		Find(&questions).Error; err != nil {
		return nil, translateError(err, "list section questions")
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) ListByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return []*models.Question{}, nil
	}

	db := q.getDB(tx)
	var questions []*models.Question
	if err := q.withChoices(db.WithContext(ctx)).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&questions).Error; err != nil {
		return nil, translateError(err, "list questions")
	}
	return questions, nil
}

// ===== ORDERED ACCESSORS =====

func (q *QuestionPostgreSQL) OrderedOptions(ctx context.Context, tx *gorm.DB, questionID uint) ([]models.Option, error) {
	db := q.getDB(tx)
	var options []models.Option
	if err := orderByPosition(db.WithContext(ctx).Where("question_id = ?", questionID)).
		Find(&options).Error; err != nil {
		return nil, translateError(err, "get question options")
	}
	return options, nil
}

func (q *QuestionPostgreSQL) OrderedRows(ctx context.Context, tx *gorm.DB, questionID uint) ([]models.TableRow, error) {
	db := q.getDB(tx)
	var rows []models.TableRow
	if err := orderByPosition(db.WithContext(ctx).Where("question_id = ?", questionID)).
		Find(&rows).Error; err != nil {
		return nil, translateError(err, "get table rows")
	}
	return rows, nil
}

func (q *QuestionPostgreSQL) OrderedColumns(ctx context.Context, tx *gorm.DB, questionID uint) ([]models.TableColumn, error) {
	db := q.getDB(tx)
	var columns []models.TableColumn
	if err := orderByPosition(db.WithContext(ctx).Where("question_id = ?", questionID)).
		Find(&columns).Error; err != nil {
		return nil, translateError(err, "get table columns")
	}
	return columns, nil
}

// ===== HELPER METHODS =====

func (q *QuestionPostgreSQL) withChoices(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Options", orderByPosition).
		Preload("Rows", orderByPosition).
		Preload("Columns", orderByPosition).
		Preload("CorrectAnswers").
		Preload("Audio")
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}
