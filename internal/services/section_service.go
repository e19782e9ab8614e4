package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
	"github.com/hezretaly/toefl/internal/storage"
	"github.com/hezretaly/toefl/internal/validator"
)

type sectionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	storage   storage.StorageProvider
}

func NewSectionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, provider storage.StorageProvider) SectionService {
	return &sectionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		storage:   provider,
	}
}

// ===== AUTHORING =====

func (s *sectionService) CreateReading(ctx context.Context, identity auth.Identity, req *CreateReadingSectionRequest) (*SectionCreatedResponse, error) {
	s.logger.Info("Creating reading section", "title", req.Title, "passages", len(req.Passages), "user_id", identity.UserID)

	if err := requireRole(identity, "create section", models.RoleTeacher); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	bv := s.validator.GetBusinessValidator()
	var errs ValidationErrors
	for i, passage := range req.Passages {
		for j := range passage.Questions {
			errs = append(errs, bv.ValidateQuestion(models.SectionReading, &passage.Questions[j], fmt.Sprintf("passages[%d].questions[%d]", i, j))...)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	section := &models.Section{SectionType: models.SectionReading, Title: req.Title}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Section().Create(ctx, tx, section); err != nil {
			return fmt.Errorf("failed to create section: %w", err)
		}

		for _, passageReq := range req.Passages {
			passage := &models.ReadingPassage{SectionID: section.ID, Title: passageReq.Title, Content: passageReq.Content}
			if err := s.repo.Section().CreatePassage(ctx, tx, passage); err != nil {
				return fmt.Errorf("failed to create passage: %w", err)
			}
			for i := range passageReq.Questions {
				if _, err := s.createQuestion(ctx, tx, models.SectionReading, passage.ID, &passageReq.Questions[i]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create reading section", "error", err)
		return nil, err
	}

	s.logger.Info("Reading section created", "section_id", section.ID)
	return &SectionCreatedResponse{SectionID: section.ID, SectionType: section.SectionType, Title: section.Title}, nil
}

func (s *sectionService) CreateListening(ctx context.Context, identity auth.Identity, req *CreateListeningSectionRequest, files UploadSet) (*SectionCreatedResponse, error) {
	s.logger.Info("Creating listening section", "title", req.Title, "audio_items", len(req.AudioItems), "user_id", identity.UserID)

	if err := requireRole(identity, "create section", models.RoleTeacher); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	uploads, errs := listeningUploads(req, files)
	bv := s.validator.GetBusinessValidator()
	for i, item := range req.AudioItems {
		for j := range item.Questions {
			errs = append(errs, bv.ValidateQuestion(models.SectionListening, &item.Questions[j], fmt.Sprintf("audioItems[%d].questions[%d]", i, j))...)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	keys, err := s.storeUploads(ctx, uploads)
	if err != nil {
		return nil, err
	}

	section := &models.Section{SectionType: models.SectionListening, Title: req.Title}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Section().Create(ctx, tx, section); err != nil {
			return fmt.Errorf("failed to create section: %w", err)
		}

		for _, item := range req.AudioItems {
			audio := &models.ListeningAudio{
				SectionID: section.ID,
				Title:     item.Title,
				AudioURL:  keys[audioFileField(item.ClientID)],
			}
			if photo, ok := keys[imageFileField(item.ClientID)]; ok {
				audio.PhotoURL = ptr(photo)
			}
			if err := s.repo.Section().CreateAudio(ctx, tx, audio); err != nil {
				return fmt.Errorf("failed to create listening audio: %w", err)
			}

			for i := range item.Questions {
				questionReq := &item.Questions[i]
				question, err := s.createQuestion(ctx, tx, models.SectionListening, audio.ID, questionReq)
				if err != nil {
					return err
				}
				if snippet, ok := keys[snippetFileField(questionReq.ClientID)]; ok && question.Type == models.QuestionAudioChoice {
					if err := s.repo.Question().CreateAudio(ctx, tx, &models.QuestionAudio{QuestionID: question.ID, AudioURL: snippet}); err != nil {
						return fmt.Errorf("failed to attach question audio: %w", err)
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create listening section", "error", err)
		removeFiles(ctx, s.logger, s.storage, mapValues(keys))
		return nil, err
	}

	s.logger.Info("Listening section created", "section_id", section.ID, "files", len(keys))
	return &SectionCreatedResponse{SectionID: section.ID, SectionType: section.SectionType, Title: section.Title}, nil
}

func (s *sectionService) CreateSpeaking(ctx context.Context, identity auth.Identity, req *CreateSpeakingSectionRequest, files UploadSet) (*SectionCreatedResponse, error) {
	s.logger.Info("Creating speaking section", "title", req.Title, "user_id", identity.UserID)

	if err := requireRole(identity, "create section", models.RoleTeacher); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if errs := s.validator.GetBusinessValidator().ValidateSpeakingTasks(req.Tasks); len(errs) > 0 {
		return nil, errs
	}

	uploads, errs := taskUploads(files, storage.FolderSpeakingAudio, 2, 3, 4)
	if len(errs) > 0 {
		return nil, errs
	}
	keys, err := s.storeUploads(ctx, uploads)
	if err != nil {
		return nil, err
	}

	section := &models.Section{SectionType: models.SectionSpeaking, Title: req.Title}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Section().Create(ctx, tx, section); err != nil {
			return fmt.Errorf("failed to create section: %w", err)
		}
		for _, taskReq := range sortSpeakingTasks(req.Tasks) {
			task := &models.SpeakingTask{SectionID: section.ID, TaskNumber: taskReq.TaskNumber, Prompt: taskReq.Prompt}
			if taskReq.TaskNumber == 2 || taskReq.TaskNumber == 3 {
				task.Passage = taskReq.Passage
			}
			if key, ok := keys[taskAudioField(taskReq.TaskNumber)]; ok {
				task.AudioURL = ptr(key)
			}
			if err := s.repo.Section().CreateSpeakingTask(ctx, tx, task); err != nil {
				return fmt.Errorf("failed to create speaking task %d: %w", taskReq.TaskNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create speaking section", "error", err)
		removeFiles(ctx, s.logger, s.storage, mapValues(keys))
		return nil, err
	}

	s.logger.Info("Speaking section created", "section_id", section.ID)
	return &SectionCreatedResponse{SectionID: section.ID, SectionType: section.SectionType, Title: section.Title}, nil
}

func (s *sectionService) CreateWriting(ctx context.Context, identity auth.Identity, req *CreateWritingSectionRequest, files UploadSet) (*SectionCreatedResponse, error) {
	s.logger.Info("Creating writing section", "title", req.Title, "user_id", identity.UserID)

	if err := requireRole(identity, "create section", models.RoleTeacher); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if errs := s.validator.GetBusinessValidator().ValidateWritingTasks(req.Tasks); len(errs) > 0 {
		return nil, errs
	}

	uploads, errs := taskUploads(files, storage.FolderWritingAudio, 1)
	if len(errs) > 0 {
		return nil, errs
	}
	keys, err := s.storeUploads(ctx, uploads)
	if err != nil {
		return nil, err
	}

	section := &models.Section{SectionType: models.SectionWriting, Title: req.Title}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Section().Create(ctx, tx, section); err != nil {
			return fmt.Errorf("failed to create section: %w", err)
		}
		for _, taskReq := range sortWritingTasks(req.Tasks) {
			task := &models.WritingTask{
				SectionID:  section.ID,
				TaskNumber: taskReq.TaskNumber,
				Passage:    taskReq.Passage,
				Prompt:     taskReq.Prompt,
			}
			if key, ok := keys[taskAudioField(taskReq.TaskNumber)]; ok {
				task.AudioURL = ptr(key)
			}
			if err := s.repo.Section().CreateWritingTask(ctx, tx, task); err != nil {
				return fmt.Errorf("failed to create writing task %d: %w", taskReq.TaskNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create writing section", "error", err)
		removeFiles(ctx, s.logger, s.storage, mapValues(keys))
		return nil, err
	}

	s.logger.Info("Writing section created", "section_id", section.ID)
	return &SectionCreatedResponse{SectionID: section.ID, SectionType: section.SectionType, Title: section.Title}, nil
}

// ===== READ / UPDATE / DELETE =====

func (s *sectionService) Get(ctx context.Context, sectionType models.SectionType, id uint) (*models.Section, error) {
	if err := requireSectionType(sectionType); err != nil {
		return nil, err
	}

	section, err := s.repo.Section().GetContent(ctx, nil, id, sectionType)
	if err != nil {
		return nil, wrapRepoError(err, string(sectionType)+" section", id, "get section")
	}
	return section, nil
}

func (s *sectionService) List(ctx context.Context, sectionType models.SectionType) (*SectionListResponse, error) {
	if err := requireSectionType(sectionType); err != nil {
		return nil, err
	}

	sections, err := s.repo.Section().ListByType(ctx, nil, sectionType)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}

	items := make([]SectionListItem, 0, len(sections))
	for _, section := range sections {
		items = append(items, SectionListItem{ID: section.ID, Title: section.Title})
	}
	return &SectionListResponse{Total: len(items), Sections: items}, nil
}

func (s *sectionService) UpdateTitle(ctx context.Context, identity auth.Identity, sectionType models.SectionType, id uint, req *UpdateSectionRequest) (*models.Section, error) {
	if err := requireRole(identity, "update section", models.RoleTeacher); err != nil {
		return nil, err
	}
	if err := requireSectionType(sectionType); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if err := s.repo.Section().UpdateTitle(ctx, nil, id, sectionType, req.Title); err != nil {
		return nil, wrapRepoError(err, string(sectionType)+" section", id, "update section title")
	}

	section, err := s.repo.Section().GetByID(ctx, nil, id, sectionType)
	if err != nil {
		return nil, wrapRepoError(err, string(sectionType)+" section", id, "get section")
	}

	s.logger.Info("Section title updated", "section_id", id, "section_type", sectionType, "user_id", identity.UserID)
	return section, nil
}

// Delete removes the section, everything submitted to it and, after commit,
// every stored file it referenced.
func (s *sectionService) Delete(ctx context.Context, identity auth.Identity, sectionType models.SectionType, id uint) error {
	if err := requireRole(identity, "delete section", models.RoleTeacher); err != nil {
		return err
	}
	if err := requireSectionType(sectionType); err != nil {
		return err
	}

	var media *repositories.SectionMedia
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		media, err = s.repo.Section().Delete(ctx, tx, id, sectionType)
		return err
	})
	if err != nil {
		return wrapRepoError(err, string(sectionType)+" section", id, "delete section")
	}

	removeFiles(ctx, s.logger, s.storage, media.URLs)

	s.logger.Info("Section deleted",
		"section_id", id,
		"section_type", sectionType,
		"files", len(media.URLs),
		"user_id", identity.UserID)
	return nil
}
