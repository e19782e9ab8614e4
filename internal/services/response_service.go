package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/events"
	"github.com/hezretaly/toefl/internal/metrics"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
	"github.com/hezretaly/toefl/internal/storage"
	"github.com/hezretaly/toefl/internal/validator"
)

type responseService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	storage   storage.StorageProvider
	events    events.EventPublisher
	metrics   *metrics.Metrics
}

func NewResponseService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, provider storage.StorageProvider, publisher events.EventPublisher, collector *metrics.Metrics) ResponseService {
	return &responseService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		storage:   provider,
		events:    publisher,
		metrics:   collector,
	}
}

// RecordingField is the multipart field carrying the recording of a speaking task
func RecordingField(taskNumber int) string {
	return fmt.Sprintf("task%dRecording", taskNumber)
}

// CountWords counts whitespace separated fields
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ===== SPEAKING =====

// SubmitSpeaking stores one recording per task. An earlier response of the
// student is updated in place so its score stays attached; the recording it
// pointed at is removed after commit.
func (s *responseService) SubmitSpeaking(ctx context.Context, identity auth.Identity, sectionID uint, files UploadSet) (*ResponsesSubmittedResponse, error) {
	s.logger.Info("Submitting speaking responses", "user_id", identity.UserID, "section_id", sectionID)

	if err := requireRole(identity, "submit responses", models.RoleStudent); err != nil {
		return nil, err
	}

	var missing ValidationErrors
	for number := 1; number <= models.SpeakingTaskCount; number++ {
		if file := files[RecordingField(number)]; file == nil || file.Name == "" {
			missing = append(missing, ValidationError{
				Field:   RecordingField(number),
				Message: fmt.Sprintf("missing recording for task %d", number),
				Rule:    "required_file",
			})
		}
	}
	if len(missing) > 0 {
		return nil, missing
	}

	if _, err := s.repo.Section().GetByID(ctx, nil, sectionID, models.SectionSpeaking); err != nil {
		return nil, wrapRepoError(err, "speaking section", sectionID, "get section")
	}
	tasks, err := s.repo.Section().GetSpeakingTasks(ctx, nil, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get speaking tasks: %w", err)
	}
	byNumber := make(map[int]*models.SpeakingTask, len(tasks))
	for _, task := range tasks {
		byNumber[task.TaskNumber] = task
	}
	for number := 1; number <= models.SpeakingTaskCount; number++ {
		if byNumber[number] == nil {
			return nil, NewNotFoundError(fmt.Sprintf("speaking task %d of section %d", number, sectionID), 0)
		}
	}

	stored := make(map[int]string, models.SpeakingTaskCount)
	for number := 1; number <= models.SpeakingTaskCount; number++ {
		key, err := s.storage.Save(ctx, storage.FolderSpeakingResponses, files[RecordingField(number)])
		if err != nil {
			removeFiles(ctx, s.logger, s.storage, intMapValues(stored))
			return nil, fmt.Errorf("failed to store recording for task %d: %w", number, err)
		}
		stored[number] = key
	}

	var (
		responseIDs []uint
		replaced    []string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		responseIDs, replaced = nil, nil
		for number := 1; number <= models.SpeakingTaskCount; number++ {
			task := byNumber[number]

			existing, err := s.repo.Response().FindSpeaking(ctx, tx, identity.UserID, task.ID)
			switch {
			case err == nil:
				replaced = append(replaced, existing.AudioURL)
				existing.AudioURL = stored[number]
				if err := s.repo.Response().UpdateSpeaking(ctx, tx, existing); err != nil {
					return fmt.Errorf("failed to update response for task %d: %w", number, err)
				}
				responseIDs = append(responseIDs, existing.ID)
				continue
			case !repositories.IsNotFoundError(err):
				return fmt.Errorf("failed to find previous response for task %d: %w", number, err)
			}

			response := &models.SpeakingResponse{UserID: identity.UserID, TaskID: task.ID, AudioURL: stored[number]}
			if err := s.repo.Response().CreateSpeaking(ctx, tx, response); err != nil {
				return fmt.Errorf("failed to store response for task %d: %w", number, err)
			}
			responseIDs = append(responseIDs, response.ID)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Speaking submission failed", "user_id", identity.UserID, "section_id", sectionID, "error", err)
		removeFiles(ctx, s.logger, s.storage, intMapValues(stored))
		return nil, err
	}

	removeFiles(ctx, s.logger, s.storage, replaced)
	s.afterSubmit(ctx, identity, models.SectionSpeaking, sectionID, responseIDs)

	return &ResponsesSubmittedResponse{SectionID: sectionID, ResponseIDs: responseIDs}, nil
}

// ===== WRITING =====

// SubmitWriting stores both essays; an existing response is updated in place
// so a score already given to it stays attached.
func (s *responseService) SubmitWriting(ctx context.Context, identity auth.Identity, sectionID uint, req *SubmitWritingRequest) (*ResponsesSubmittedResponse, error) {
	s.logger.Info("Submitting writing responses", "user_id", identity.UserID, "section_id", sectionID)

	if err := requireRole(identity, "submit responses", models.RoleStudent); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	texts := map[int]string{1: req.Answers.Task1, 2: req.Answers.Task2}

	var responseIDs []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		responseIDs = nil
		if _, err := s.repo.Section().GetByID(ctx, tx, sectionID, models.SectionWriting); err != nil {
			return wrapRepoError(err, "writing section", sectionID, "get section")
		}

		tasks, err := s.repo.Section().GetWritingTasks(ctx, tx, sectionID)
		if err != nil {
			return fmt.Errorf("failed to get writing tasks: %w", err)
		}
		if len(tasks) != models.WritingTaskCount {
			return NewValidationError("section", fmt.Sprintf("writing section must have exactly %d tasks", models.WritingTaskCount), len(tasks))
		}

		for _, task := range tasks {
			text, ok := texts[task.TaskNumber]
			if !ok {
				return NewValidationError("answers", fmt.Sprintf("no answer for task %d", task.TaskNumber), task.TaskNumber)
			}

			existing, err := s.repo.Response().FindWriting(ctx, tx, identity.UserID, task.ID)
			switch {
			case err == nil:
				existing.ResponseText = text
				existing.WordCount = CountWords(text)
				if err := s.repo.Response().UpdateWriting(ctx, tx, existing); err != nil {
					return fmt.Errorf("failed to update response for task %d: %w", task.TaskNumber, err)
				}
				responseIDs = append(responseIDs, existing.ID)
			case repositories.IsNotFoundError(err):
				response := &models.WritingResponse{
					UserID:       identity.UserID,
					TaskID:       task.ID,
					ResponseText: text,
					WordCount:    CountWords(text),
				}
				if err := s.repo.Response().CreateWriting(ctx, tx, response); err != nil {
					return fmt.Errorf("failed to store response for task %d: %w", task.TaskNumber, err)
				}
				responseIDs = append(responseIDs, response.ID)
			default:
				return fmt.Errorf("failed to find previous response for task %d: %w", task.TaskNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterSubmit(ctx, identity, models.SectionWriting, sectionID, responseIDs)
	return &ResponsesSubmittedResponse{SectionID: sectionID, ResponseIDs: responseIDs}, nil
}

func (s *responseService) afterSubmit(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID uint, responseIDs []uint) {
	s.metrics.ObserveSubmission(string(sectionType), 0, 0)
	publishEvent(ctx, s.logger, s.events, events.TypeResponsesSubmitted, events.ResponsesSubmittedEvent{
		UserID:      identity.UserID,
		SectionID:   sectionID,
		SectionType: string(sectionType),
		ResponseIDs: responseIDs,
	})

	s.logger.Info("Responses submitted",
		"user_id", identity.UserID,
		"section_type", sectionType,
		"section_id", sectionID,
		"responses", len(responseIDs))
}

func intMapValues(m map[int]string) []string {
	values := make([]string, 0, len(m))
	for _, v := range m {
		values = append(values, v)
	}
	return values
}
