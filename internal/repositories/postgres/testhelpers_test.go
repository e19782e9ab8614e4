package postgres

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hezretaly/toefl/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("failed to create %T: %v", value, err)
	}
}

func createUser(t *testing.T, db *gorm.DB, username string, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", PasswordHash: "x", Role: role}
	mustCreate(t, db, user)
	return user
}

// readingFixture is a reading section with one passage and one single-choice
// question whose options were inserted out of display order.
type readingFixture struct {
	section  *models.Section
	passage  *models.ReadingPassage
	question *models.Question
}

func createReadingFixture(t *testing.T, db *gorm.DB) readingFixture {
	t.Helper()

	section := &models.Section{SectionType: models.SectionReading, Title: "Reading 1"}
	mustCreate(t, db, section)

	passage := &models.ReadingPassage{SectionID: section.ID, Title: "Bees", Content: "Bees are..."}
	mustCreate(t, db, passage)

	question := &models.Question{
		SectionType:      models.SectionReading,
		Type:             models.QuestionSingleChoice,
		Prompt:           "Why?",
		ReadingPassageID: &passage.ID,
		Options: []models.Option{
			{Position: 2, OptionText: "C"},
			{Position: 0, OptionText: "A"},
			{Position: 1, OptionText: "B"},
		},
	}
	if err := NewQuestionPostgreSQL(db).Create(ctxT(), nil, question); err != nil {
		t.Fatalf("failed to create question: %v", err)
	}

	return readingFixture{section: section, passage: passage, question: question}
}
