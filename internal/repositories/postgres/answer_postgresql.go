package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
)

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

// ReplaceForQuestion inserts the new rows for one (user, question), moves the
// scores of the previous rows onto them and then deletes the previous rows.
// A score follows the new row with the same selection, otherwise the first
// new row still without one. Scores that find no row are removed with theirs.
func (a *AnswerPostgreSQL) ReplaceForQuestion(ctx context.Context, tx *gorm.DB, userID, questionID uint, answers []models.UserAnswer) error {
	db := a.getDB(tx).WithContext(ctx)

	for i := range answers {
		if answers[i].UserID != userID || answers[i].QuestionID != questionID {
			return fmt.Errorf("answer %d does not belong to user %d question %d", i, userID, questionID)
		}
	}

	var previous []models.UserAnswer
	if err := db.Where("user_id = ? AND question_id = ?", userID, questionID).
		Order("id ASC").
		Find(&previous).Error; err != nil {
		return translateError(err, "collect previous answers")
	}

	// New rows go in first so their ids never collide with the rows they replace
	if len(answers) > 0 {
		if err := db.Omit(clause.Associations).Create(&answers).Error; err != nil {
			return translateError(err, "insert answers")
		}
	}
	if len(previous) == 0 {
		return nil
	}

	previousIDs := make([]uint, 0, len(previous))
	for _, answer := range previous {
		previousIDs = append(previousIDs, answer.ID)
	}
	var scores []models.Score
	if err := db.Where("user_answer_id IN ?", previousIDs).Order("id ASC").Find(&scores).Error; err != nil {
		return translateError(err, "collect scores of previous answers")
	}

	moves, orphans := planScoreCarry(previous, answers, scores)
	for i := range scores {
		answerID, ok := moves[scores[i].ID]
		if !ok {
			continue
		}
		if err := db.Model(&scores[i]).Update("user_answer_id", answerID).Error; err != nil {
			return translateError(err, "move score to replacement answer")
		}
	}
	if len(orphans) > 0 {
		if err := db.Where("id IN ?", orphans).Delete(&models.Score{}).Error; err != nil {
			return translateError(err, "delete scores without replacement answer")
		}
	}

	if err := db.Where("id IN ?", previousIDs).Delete(&models.UserAnswer{}).Error; err != nil {
		return translateError(err, "delete previous answers")
	}
	return nil
}

// selection is the stored column triple of an answer row
type selection struct {
	option, row, column uint
}

func selectionOf(answer models.UserAnswer) selection {
	return selection{option: derefID(answer.OptionID), row: derefID(answer.TableRowID), column: derefID(answer.TableColumnID)}
}

func derefID(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}

// planScoreCarry maps score id to the replacement answer id it moves to and
// lists the scores left without one.
func planScoreCarry(previous, replacements []models.UserAnswer, scores []models.Score) (map[uint]uint, []uint) {
	previousSelection := make(map[uint]selection, len(previous))
	for _, answer := range previous {
		previousSelection[answer.ID] = selectionOf(answer)
	}

	taken := make([]bool, len(replacements))
	moves := make(map[uint]uint, len(scores))
	var pending []models.Score

	for _, score := range scores {
		want := previousSelection[derefID(score.UserAnswerID)]
		matched := false
		for i, answer := range replacements {
			if !taken[i] && selectionOf(answer) == want {
				taken[i] = true
				moves[score.ID] = answer.ID
				matched = true
				break
			}
		}
		if !matched {
			pending = append(pending, score)
		}
	}

	var orphans []uint
	for _, score := range pending {
		moved := false
		for i, answer := range replacements {
			if !taken[i] {
				taken[i] = true
				moves[score.ID] = answer.ID
				moved = true
				break
			}
		}
		if !moved {
			orphans = append(orphans, score.ID)
		}
	}
	return moves, orphans
}

func (a *AnswerPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.UserAnswer, error) {
	db := a.getDB(tx)
	var answer models.UserAnswer
	if err := db.WithContext(ctx).Preload("User").First(&answer, id).Error; err != nil {
		return nil, translateError(err, fmt.Sprintf("get answer %d", id))
	}
	return &answer, nil
}

func (a *AnswerPostgreSQL) ListByUserAndQuestions(ctx context.Context, tx *gorm.DB, userID uint, questionIDs []uint) ([]*models.UserAnswer, error) {
	if len(questionIDs) == 0 {
		return []*models.UserAnswer{}, nil
	}

	db := a.getDB(tx)
	var answers []*models.UserAnswer
	if err := db.WithContext(ctx).
		Where("user_id = ? AND question_id IN ?", userID, questionIDs).
		Order("question_id ASC").Order("id ASC").
		Find(&answers).Error; err != nil {
		return nil, translateError(err, "list user answers")
	}
	return answers, nil
}

func (a *AnswerPostgreSQL) ListByQuestions(ctx context.Context, tx *gorm.DB, questionIDs []uint) ([]*models.UserAnswer, error) {
	if len(questionIDs) == 0 {
		return []*models.UserAnswer{}, nil
	}

	db := a.getDB(tx)
	var answers []*models.UserAnswer
	if err := db.WithContext(ctx).
		Preload("User").
		Where("question_id IN ?", questionIDs).
		Order("user_id ASC").Order("question_id ASC").Order("id ASC").
		Find(&answers).Error; err != nil {
		return nil, translateError(err, "list answers")
	}
	return answers, nil
}

func (a *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}
