package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/events"
	"github.com/hezretaly/toefl/internal/metrics"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
	"github.com/hezretaly/toefl/internal/validator"
)

type gradingService struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	events    events.EventPublisher
	metrics   *metrics.Metrics
}

func NewGradingService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, collector *metrics.Metrics) GradingService {
	return &gradingService{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		events:    publisher,
		metrics:   collector,
	}
}

// answerReplacement is the normalized new answer set of one question
type answerReplacement struct {
	questionID uint
	rows       []models.UserAnswer
}

// ===== CHOICE SUBMISSION =====

func (s *gradingService) SubmitChoiceAnswers(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID uint, req *SubmitAnswersRequest) (*SectionScoreResponse, error) {
	s.logger.Info("Submitting answers",
		"user_id", identity.UserID,
		"section_type", sectionType,
		"section_id", sectionID,
		"containers", len(req.Answers))

	if err := requireRole(identity, "submit answers", models.RoleStudent); err != nil {
		return nil, err
	}
	if !sectionType.IsChoiceBased() {
		return nil, NewValidationError("type", "answers can only be submitted to reading or listening sections", sectionType)
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var outcome SectionOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.Section().GetByID(ctx, tx, sectionID, sectionType); err != nil {
			return wrapRepoError(err, string(sectionType)+" section", sectionID, "get section")
		}

		containerIDs, err := s.repo.Section().GetContainerIDs(ctx, tx, sectionID, sectionType)
		if err != nil {
			return fmt.Errorf("failed to get section containers: %w", err)
		}
		questions, err := s.repo.Question().ListBySection(ctx, tx, sectionID, sectionType)
		if err != nil {
			return fmt.Errorf("failed to get section questions: %w", err)
		}

		// Everything is validated before the first write
		replacements, err := normalizeSubmission(identity.UserID, sectionType, sectionID, containerIDs, questions, req.Answers)
		if err != nil {
			return err
		}

		for _, replacement := range replacements {
			if err := s.repo.Answer().ReplaceForQuestion(ctx, tx, identity.UserID, replacement.questionID, replacement.rows); err != nil {
				return fmt.Errorf("failed to store answers for question %d: %w", replacement.questionID, err)
			}
		}

		outcome, err = s.scoreSection(ctx, tx, identity.UserID, sectionID, sectionType)
		return err
	})
	if err != nil {
		if IsCallerError(err) {
			s.logger.Warn("Answer submission rejected", "user_id", identity.UserID, "section_id", sectionID, "error", err)
		} else {
			s.logger.Error("Answer submission failed", "user_id", identity.UserID, "section_id", sectionID, "error", err)
		}
		return nil, err
	}

	s.metrics.ObserveSubmission(string(sectionType), outcome.Score, outcome.MaxScore)
	publishEvent(ctx, s.logger, s.events, events.TypeAnswersSubmitted, events.AnswersSubmittedEvent{
		UserID:      identity.UserID,
		SectionID:   sectionID,
		SectionType: string(sectionType),
		Score:       outcome.Score,
		MaxScore:    outcome.MaxScore,
		Questions:   len(outcome.Questions),
	})

	s.logger.Info("Answers submitted",
		"user_id", identity.UserID,
		"section_id", sectionID,
		"score", outcome.Score,
		"max_score", outcome.MaxScore)

	return &SectionScoreResponse{SectionID: sectionID, Score: outcome.Score, MaxScore: outcome.MaxScore}, nil
}

func (s *gradingService) GetSectionScore(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID uint) (*SectionScoreResponse, error) {
	if err := requireRole(identity, "view score", models.RoleStudent); err != nil {
		return nil, err
	}
	if !sectionType.IsChoiceBased() {
		return nil, NewValidationError("type", "scores are computed for reading or listening sections only", sectionType)
	}

	var outcome SectionOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.Section().GetByID(ctx, tx, sectionID, sectionType); err != nil {
			return wrapRepoError(err, string(sectionType)+" section", sectionID, "get section")
		}
		var err error
		outcome, err = s.scoreSection(ctx, tx, identity.UserID, sectionID, sectionType)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &SectionScoreResponse{SectionID: sectionID, Score: outcome.Score, MaxScore: outcome.MaxScore}, nil
}

// ===== HELPER METHODS =====

// scoreSection re-reads questions, correct answers and the student's stored
// answers through tx and grades them.
func (s *gradingService) scoreSection(ctx context.Context, tx *gorm.DB, userID, sectionID uint, sectionType models.SectionType) (SectionOutcome, error) {
	questions, err := s.repo.Question().ListBySection(ctx, tx, sectionID, sectionType)
	if err != nil {
		return SectionOutcome{}, fmt.Errorf("failed to get section questions: %w", err)
	}

	questionIDs := make([]uint, 0, len(questions))
	for _, question := range questions {
		questionIDs = append(questionIDs, question.ID)
	}
	answers, err := s.repo.Answer().ListByUserAndQuestions(ctx, tx, userID, questionIDs)
	if err != nil {
		return SectionOutcome{}, fmt.Errorf("failed to get stored answers: %w", err)
	}

	return ScoreSection(questions, GroupAnswerKeys(questions, answers)), nil
}

// normalizeSubmission checks that every container belongs to the section and
// every question to its claimed container, then resolves all payloads.
func normalizeSubmission(userID uint, sectionType models.SectionType, sectionID uint, containerIDs []uint, questions []*models.Question, answers map[uint]map[uint]json.RawMessage) ([]answerReplacement, error) {
	containerName := "passage"
	if sectionType == models.SectionListening {
		containerName = "audio"
	}

	inSection := make(map[uint]bool, len(containerIDs))
	for _, id := range containerIDs {
		inSection[id] = true
	}
	byID := make(map[uint]*models.Question, len(questions))
	for _, question := range questions {
		byID[question.ID] = question
	}

	var replacements []answerReplacement
	for _, containerID := range sortedKeys(answers) {
		if !inSection[containerID] {
			return nil, NewScopeError(containerName, containerID, string(sectionType)+" section", sectionID)
		}

		submitted := answers[containerID]
		for _, questionID := range sortedKeys(submitted) {
			question, ok := byID[questionID]
			if !ok || question.ContainerID() != containerID {
				return nil, NewScopeError("question", questionID, containerName, containerID)
			}

			keys, err := NormalizeAnswer(question, submitted[questionID])
			if err != nil {
				return nil, err
			}

			rows := make([]models.UserAnswer, 0, len(keys))
			for _, key := range keys {
				rows = append(rows, models.NewUserAnswer(userID, questionID, key))
			}
			replacements = append(replacements, answerReplacement{questionID: questionID, rows: rows})
		}
	}
	return replacements, nil
}
