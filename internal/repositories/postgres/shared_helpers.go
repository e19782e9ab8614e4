package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
)

// translateError maps gorm sentinel errors onto repository errors and wraps
// everything else with the failed action.
func translateError(err error, action string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", action, repositories.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", action, repositories.ErrDuplicate)
	default:
		return fmt.Errorf("failed to %s: %w", action, err)
	}
}

// orderByPosition is the single ordering of options, rows and columns
func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC").Order("id ASC")
}

// questionIDsOfSection selects ids of all questions under a reading or listening section
func questionIDsOfSection(db *gorm.DB, sectionID uint, sectionType models.SectionType) *gorm.DB {
	table, column := containerOf(sectionType)
	return db.Table("questions").
		Select("questions.id").
		Joins(fmt.Sprintf("JOIN %s ON %s.id = questions.%s", table, table, column)).
		Where(fmt.Sprintf("%s.section_id = ?", table), sectionID)
}

// containerOf returns the container table and question foreign key column for
// a choice-based section type.
func containerOf(sectionType models.SectionType) (table, column string) {
	if sectionType == models.SectionListening {
		return "listening_audios", "listening_audio_id"
	}
	return "reading_passages", "reading_passage_id"
}
