package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
)

type ReviewPostgreSQL struct {
	db *gorm.DB
}

func NewReviewPostgreSQL(db *gorm.DB) repositories.ReviewRepository {
	return &ReviewPostgreSQL{db: db}
}

func (r *ReviewPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// submissionJoins joins a section to the rows a student submits for it and to
// the scores attached to those rows. The submission row is aliased "sub".
func submissionJoins(sectionType models.SectionType) string {
	switch sectionType {
	case models.SectionSpeaking:
		return `JOIN speaking_tasks t ON t.section_id = s.id
			JOIN speaking_responses sub ON sub.task_id = t.id
			LEFT JOIN scores sc ON sc.response_type = 'speaking' AND sc.response_id = sub.id`
	case models.SectionWriting:
		return `JOIN writing_tasks t ON t.section_id = s.id
			JOIN writing_responses sub ON sub.task_id = t.id
			LEFT JOIN scores sc ON sc.response_type = 'writing' AND sc.response_id = sub.id`
	case models.SectionListening:
		return `JOIN listening_audios c ON c.section_id = s.id
			JOIN questions q ON q.listening_audio_id = c.id
			JOIN user_answers sub ON sub.question_id = q.id
			LEFT JOIN scores sc ON sc.response_type = 'listening' AND sc.user_answer_id = sub.id`
	default:
		return `JOIN reading_passages c ON c.section_id = s.id
			JOIN questions q ON q.reading_passage_id = c.id
			JOIN user_answers sub ON sub.question_id = q.id
			LEFT JOIN scores sc ON sc.response_type = 'reading' AND sc.user_answer_id = sub.id`
	}
}

// ===== STUDENT PROGRESS =====

func (r *ReviewPostgreSQL) StudentProgress(ctx context.Context, tx *gorm.DB, userID uint) ([]repositories.StudentSectionProgress, error) {
	db := r.getDB(tx).WithContext(ctx)
	progress := []repositories.StudentSectionProgress{}

	for _, sectionType := range models.AllSectionTypes {
		query := fmt.Sprintf(`
			SELECT s.id AS section_id, s.title AS section_title, s.section_type AS section_type,
				COUNT(sub.id) AS submitted, COUNT(sc.id) AS scored
			FROM sections s
			%s
			WHERE sub.user_id = ? AND s.section_type = ?
			GROUP BY s.id, s.title, s.section_type
			ORDER BY s.id ASC`, submissionJoins(sectionType))

		var rows []repositories.StudentSectionProgress
		if err := db.Raw(query, userID, sectionType).Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to get %s progress: %w", sectionType, err)
		}
		progress = append(progress, rows...)
	}

	return progress, nil
}

// ===== ADMIN SUMMARIES =====

func (r *ReviewPostgreSQL) SectionStudentCounts(ctx context.Context, tx *gorm.DB, sectionType models.SectionType) ([]repositories.SectionStudentCount, error) {
	db := r.getDB(tx).WithContext(ctx)

	query := fmt.Sprintf(`
		SELECT s.id AS section_id, s.title AS section_title, s.section_type AS section_type,
			COUNT(DISTINCT sub.user_id) AS student_count
		FROM sections s
		%s
		WHERE s.section_type = ?
		GROUP BY s.id, s.title, s.section_type
		ORDER BY s.id ASC`, submissionJoins(sectionType))

	counts := []repositories.SectionStudentCount{}
	if err := db.Raw(query, sectionType).Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count students per section: %w", err)
	}
	return counts, nil
}
