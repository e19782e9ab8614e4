package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/cache"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
)

type SectionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewSectionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.SectionRepository {
	return &SectionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// ===== BASIC CRUD OPERATIONS =====

func (s *SectionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, section *models.Section) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Create(section).Error; err != nil {
		return translateError(err, "create section")
	}

	cache.InvalidateSectionList(ctx, s.cacheManager, string(section.SectionType))
	return nil
}

func (s *SectionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint, sectionType models.SectionType) (*models.Section, error) {
	db := s.getDB(tx)
	var section models.Section
	if err := db.WithContext(ctx).
		Where("id = ? AND section_type = ?", id, sectionType).
		First(&section).Error; err != nil {
		return nil, translateError(err, fmt.Sprintf("get %s section %d", sectionType, id))
	}
	return &section, nil
}

// ListByType returns id and title of every section of a type, cached per type
func (s *SectionPostgreSQL) ListByType(ctx context.Context, tx *gorm.DB, sectionType models.SectionType) ([]*models.Section, error) {
	db := s.getDB(tx)
	fetch := func() (interface{}, error) {
		var sections []*models.Section
		if err := db.WithContext(ctx).
			Select("id, section_type, title, created_at, updated_at").
			Where("section_type = ?", sectionType).
			Order("id ASC").
			Find(&sections).Error; err != nil {
			return nil, translateError(err, "list sections")
		}
		return sections, nil
	}

	if tx != nil {
		value, err := fetch()
		if err != nil {
			return nil, err
		}
		return value.([]*models.Section), nil
	}

	var sections []*models.Section
	if err := s.cacheManager.SectionList.CacheOrExecute(ctx, string(sectionType), &sections,
		cache.SectionListCacheConfig.TTL, fetch); err != nil {
		return nil, err
	}
	return sections, nil
}

func (s *SectionPostgreSQL) UpdateTitle(ctx context.Context, tx *gorm.DB, id uint, sectionType models.SectionType, title string) error {
	db := s.getDB(tx)
	result := db.WithContext(ctx).
		Model(&models.Section{}).
		Where("id = ? AND section_type = ?", id, sectionType).
		Update("title", title)
	if result.Error != nil {
		return translateError(result.Error, "update section title")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update %s section %d: %w", sectionType, id, repositories.ErrNotFound)
	}

	cache.InvalidateSectionCache(ctx, s.cacheManager, string(sectionType), id)
	return nil
}

// Delete removes the section subtree with explicit, ordered deletes so it does
// not depend on foreign key cascades being configured.
func (s *SectionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint, sectionType models.SectionType) (*repositories.SectionMedia, error) {
	db := s.getDB(tx).WithContext(ctx)

	if _, err := s.GetByID(ctx, db, id, sectionType); err != nil {
		return nil, err
	}

	media := &repositories.SectionMedia{}
	var err error
	switch sectionType {
	case models.SectionReading, models.SectionListening:
		err = s.deleteChoiceContent(db, id, sectionType, media)
	case models.SectionSpeaking:
		err = s.deleteSpeakingContent(db, id, media)
	case models.SectionWriting:
		err = s.deleteWritingContent(db, id, media)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Delete(&models.Section{}, id).Error; err != nil {
		return nil, translateError(err, "delete section")
	}

	cache.InvalidateSectionCache(ctx, s.cacheManager, string(sectionType), id)
	return media, nil
}

// GetContent loads the student-facing tree; correct answers are never loaded
func (s *SectionPostgreSQL) GetContent(ctx context.Context, tx *gorm.DB, id uint, sectionType models.SectionType) (*models.Section, error) {
	db := s.getDB(tx)
	fetch := func() (interface{}, error) {
		return s.loadContent(ctx, db, id, sectionType)
	}

	if tx != nil {
		value, err := fetch()
		if err != nil {
			return nil, err
		}
		return value.(*models.Section), nil
	}

	var section models.Section
	if err := s.cacheManager.Section.CacheOrExecute(ctx, cache.SectionKey(string(sectionType), id), &section,
		cache.SectionCacheConfig.TTL, fetch); err != nil {
		return nil, err
	}
	return &section, nil
}

// ===== CONTAINERS =====

func (s *SectionPostgreSQL) CreatePassage(ctx context.Context, tx *gorm.DB, passage *models.ReadingPassage) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Omit("Questions").Create(passage).Error; err != nil {
		return translateError(err, "create reading passage")
	}
	return nil
}

func (s *SectionPostgreSQL) CreateAudio(ctx context.Context, tx *gorm.DB, audio *models.ListeningAudio) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Omit("Questions").Create(audio).Error; err != nil {
		return translateError(err, "create listening audio")
	}
	return nil
}

func (s *SectionPostgreSQL) GetContainerIDs(ctx context.Context, tx *gorm.DB, sectionID uint, sectionType models.SectionType) ([]uint, error) {
	db := s.getDB(tx)
	table, _ := containerOf(sectionType)

	var ids []uint
	if err := db.WithContext(ctx).
		Table(table).
		Where("section_id = ?", sectionID).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, translateError(err, "get section containers")
	}
	return ids, nil
}

func (s *SectionPostgreSQL) GetByQuestion(ctx context.Context, tx *gorm.DB, question *models.Question) (*models.Section, error) {
	db := s.getDB(tx)
	table, _ := containerOf(question.SectionType)

	var section models.Section
	if err := db.WithContext(ctx).
		Where("section_type = ?", question.SectionType).
		Where("id = (?)", db.Table(table).Select("section_id").Where("id = ?", question.ContainerID())).
		First(&section).Error; err != nil {
		return nil, translateError(err, fmt.Sprintf("get section of question %d", question.ID))
	}
	return &section, nil
}

// ===== TASKS =====

func (s *SectionPostgreSQL) CreateSpeakingTask(ctx context.Context, tx *gorm.DB, task *models.SpeakingTask) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Create(task).Error; err != nil {
		return translateError(err, "create speaking task")
	}
	return nil
}

func (s *SectionPostgreSQL) CreateWritingTask(ctx context.Context, tx *gorm.DB, task *models.WritingTask) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Create(task).Error; err != nil {
		return translateError(err, "create writing task")
	}
	return nil
}

func (s *SectionPostgreSQL) GetSpeakingTasks(ctx context.Context, tx *gorm.DB, sectionID uint) ([]*models.SpeakingTask, error) {
	db := s.getDB(tx)
	var tasks []*models.SpeakingTask
	if err := db.WithContext(ctx).
		Where("section_id = ?", sectionID).
		Order("task_number ASC").
		Find(&tasks).Error; err != nil {
		return nil, translateError(err, "get speaking tasks")
	}
	return tasks, nil
}

func (s *SectionPostgreSQL) GetWritingTasks(ctx context.Context, tx *gorm.DB, sectionID uint) ([]*models.WritingTask, error) {
	db := s.getDB(tx)
	var tasks []*models.WritingTask
	if err := db.WithContext(ctx).
		Where("section_id = ?", sectionID).
		Order("task_number ASC").
		Find(&tasks).Error; err != nil {
		return nil, translateError(err, "get writing tasks")
	}
	return tasks, nil
}

// ===== HELPER METHODS =====

func (s *SectionPostgreSQL) loadContent(ctx context.Context, db *gorm.DB, id uint, sectionType models.SectionType) (*models.Section, error) {
	query := db.WithContext(ctx).Where("id = ? AND section_type = ?", id, sectionType)
	byID := func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }

	switch sectionType {
	case models.SectionReading:
		query = query.
			Preload("Passages", byID).
			Preload("Passages.Questions", byID).
			Preload("Passages.Questions.Options", orderByPosition).
			Preload("Passages.Questions.Rows", orderByPosition).
			Preload("Passages.Questions.Columns", orderByPosition)
	case models.SectionListening:
		query = query.
			Preload("Audios", byID).
			Preload("Audios.Questions", byID).
			Preload("Audios.Questions.Options", orderByPosition).
			Preload("Audios.Questions.Rows", orderByPosition).
			Preload("Audios.Questions.Columns", orderByPosition).
			Preload("Audios.Questions.Audio")
	case models.SectionSpeaking:
		query = query.Preload("SpeakingTasks", func(db *gorm.DB) *gorm.DB { return db.Order("task_number ASC") })
	case models.SectionWriting:
		query = query.Preload("WritingTasks", func(db *gorm.DB) *gorm.DB { return db.Order("task_number ASC") })
	}

	var section models.Section
	if err := query.First(&section).Error; err != nil {
		return nil, translateError(err, fmt.Sprintf("get %s section %d", sectionType, id))
	}
	return &section, nil
}

func (s *SectionPostgreSQL) deleteChoiceContent(db *gorm.DB, sectionID uint, sectionType models.SectionType, media *repositories.SectionMedia) error {
	var questionIDs []uint
	if err := questionIDsOfSection(db, sectionID, sectionType).Pluck("questions.id", &questionIDs).Error; err != nil {
		return translateError(err, "collect section questions")
	}

	if len(questionIDs) > 0 {
		answerIDs := db.Model(&models.UserAnswer{}).Select("id").Where("question_id IN ?", questionIDs)
		if err := db.Where("response_type = ? AND user_answer_id IN (?)", sectionType, answerIDs).
			Delete(&models.Score{}).Error; err != nil {
			return translateError(err, "delete answer scores")
		}

		var snippetURLs []string
		if err := db.Model(&models.QuestionAudio{}).Where("question_id IN ?", questionIDs).
			Pluck("audio_url", &snippetURLs).Error; err != nil {
			return translateError(err, "collect question audio")
		}
		media.URLs = append(media.URLs, snippetURLs...)

		children := []interface{}{
			&models.UserAnswer{}, &models.CorrectAnswer{}, &models.QuestionAudio{},
			&models.Option{}, &models.TableRow{}, &models.TableColumn{},
		}
		for _, child := range children {
			if err := db.Where("question_id IN ?", questionIDs).Delete(child).Error; err != nil {
				return translateError(err, "delete question children")
			}
		}

		if err := db.Where("id IN ?", questionIDs).Delete(&models.Question{}).Error; err != nil {
			return translateError(err, "delete questions")
		}
	}

	if sectionType == models.SectionListening {
		var audios []models.ListeningAudio
		if err := db.Select("id, audio_url, photo_url").Where("section_id = ?", sectionID).Find(&audios).Error; err != nil {
			return translateError(err, "collect listening audio")
		}
		for _, audio := range audios {
			media.URLs = append(media.URLs, audio.AudioURL)
			if audio.PhotoURL != nil {
				media.URLs = append(media.URLs, *audio.PhotoURL)
			}
		}
	}

	var container interface{} = &models.ReadingPassage{}
	if sectionType == models.SectionListening {
		container = &models.ListeningAudio{}
	}
	if err := db.Where("section_id = ?", sectionID).Delete(container).Error; err != nil {
		return translateError(err, "delete section containers")
	}
	return nil
}

func (s *SectionPostgreSQL) deleteSpeakingContent(db *gorm.DB, sectionID uint, media *repositories.SectionMedia) error {
	var tasks []models.SpeakingTask
	if err := db.Where("section_id = ?", sectionID).Find(&tasks).Error; err != nil {
		return translateError(err, "collect speaking tasks")
	}
	if len(tasks) == 0 {
		return nil
	}

	taskIDs := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		taskIDs = append(taskIDs, task.ID)
		if task.AudioURL != nil {
			media.URLs = append(media.URLs, *task.AudioURL)
		}
	}

	var responses []models.SpeakingResponse
	if err := db.Select("id, audio_url").Where("task_id IN ?", taskIDs).Find(&responses).Error; err != nil {
		return translateError(err, "collect speaking responses")
	}
	responseIDs := make([]uint, 0, len(responses))
	for _, response := range responses {
		responseIDs = append(responseIDs, response.ID)
		media.URLs = append(media.URLs, response.AudioURL)
	}

	if len(responseIDs) > 0 {
		if err := db.Where("response_type = ? AND response_id IN ?", models.ResponseSpeaking, responseIDs).
			Delete(&models.Score{}).Error; err != nil {
			return translateError(err, "delete speaking scores")
		}
		if err := db.Where("id IN ?", responseIDs).Delete(&models.SpeakingResponse{}).Error; err != nil {
			return translateError(err, "delete speaking responses")
		}
	}

	if err := db.Where("id IN ?", taskIDs).Delete(&models.SpeakingTask{}).Error; err != nil {
		return translateError(err, "delete speaking tasks")
	}
	return nil
}

func (s *SectionPostgreSQL) deleteWritingContent(db *gorm.DB, sectionID uint, media *repositories.SectionMedia) error {
	var tasks []models.WritingTask
	if err := db.Where("section_id = ?", sectionID).Find(&tasks).Error; err != nil {
		return translateError(err, "collect writing tasks")
	}
	if len(tasks) == 0 {
		return nil
	}

	taskIDs := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		taskIDs = append(taskIDs, task.ID)
		if task.AudioURL != nil {
			media.URLs = append(media.URLs, *task.AudioURL)
		}
	}

	responseIDs := db.Model(&models.WritingResponse{}).Select("id").Where("task_id IN ?", taskIDs)
	if err := db.Where("response_type = ? AND response_id IN (?)", models.ResponseWriting, responseIDs).
		Delete(&models.Score{}).Error; err != nil {
		return translateError(err, "delete writing scores")
	}
	if err := db.Where("task_id IN ?", taskIDs).Delete(&models.WritingResponse{}).Error; err != nil {
		return translateError(err, "delete writing responses")
	}
	if err := db.Where("id IN ?", taskIDs).Delete(&models.WritingTask{}).Error; err != nil {
		return translateError(err, "delete writing tasks")
	}
	return nil
}

func (s *SectionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
