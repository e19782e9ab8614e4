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
	"github.com/hezretaly/toefl/internal/validator"
)

type feedbackService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	events    events.EventPublisher
	metrics   *metrics.Metrics
}

func NewFeedbackService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, collector *metrics.Metrics) FeedbackService {
	return &feedbackService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		events:    publisher,
		metrics:   collector,
	}
}

// ===== SINGLE TARGET =====

func (s *feedbackService) GetFeedbackTarget(ctx context.Context, identity auth.Identity, responseType models.ResponseType, id uint) (*models.FeedbackTargetView, error) {
	if err := requireRole(identity, "view feedback target", models.RoleTeacher); err != nil {
		return nil, err
	}
	if !responseType.IsValid() {
		return nil, NewValidationError("type", "must be one of reading, listening, speaking, writing", responseType)
	}

	view, target, err := s.loadTarget(ctx, nil, responseType, id)
	if err != nil {
		return nil, err
	}

	score, err := s.repo.Score().GetByTarget(ctx, nil, target)
	switch {
	case err == nil:
		view.Score = score.Score
		view.Feedback = score.FeedbackText()
	case !repositories.IsNotFoundError(err):
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	return view, nil
}

// SubmitFeedback creates the score row of a target on first feedback and
// updates it in place afterwards.
func (s *feedbackService) SubmitFeedback(ctx context.Context, identity auth.Identity, responseType models.ResponseType, id uint, req *SubmitFeedbackRequest) (*models.ScoreView, error) {
	s.logger.Info("Submitting feedback", "response_type", responseType, "response_id", id, "scored_by", identity.UserID)

	if err := requireRole(identity, "submit feedback", models.RoleTeacher); err != nil {
		return nil, err
	}
	if !responseType.IsValid() {
		return nil, NewValidationError("type", "must be one of reading, listening, speaking, writing", responseType)
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if errs := s.validator.GetBusinessValidator().ValidateFeedbackScore(responseType, req.Score); len(errs) > 0 {
		return nil, errs
	}

	feedback := normalizeFeedback(req.Feedback)

	var saved *models.Score
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, target, err := s.loadTarget(ctx, tx, responseType, id)
		if err != nil {
			return err
		}
		saved, err = s.saveScore(ctx, tx, target, req.Score, feedback, identity.UserID)
		return err
	})
	if err != nil {
		if IsCallerError(err) {
			s.logger.Warn("Feedback rejected", "response_type", responseType, "response_id", id, "error", err)
		} else {
			s.logger.Error("Failed to submit feedback", "response_type", responseType, "response_id", id, "error", err)
		}
		return nil, err
	}

	s.afterFeedback(ctx, responseType, id, identity.UserID, saved)

	if scorer, err := s.repo.User().GetByID(ctx, nil, identity.UserID); err == nil {
		saved.Scorer = *scorer
	}
	return models.NewScoreView(saved), nil
}

// ===== BULK TASK REVIEWS =====

// SubmitBulkReviews grades the responses of a speaking or writing section in
// one transaction. Nothing is stored when one review is rejected.
func (s *feedbackService) SubmitBulkReviews(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID uint, req *SubmitTaskReviewsRequest) (*BulkReviewResponse, error) {
	s.logger.Info("Submitting task reviews", "section_type", sectionType, "section_id", sectionID, "reviews", len(req.Reviews))

	if err := requireRole(identity, "submit reviews", models.RoleTeacher); err != nil {
		return nil, err
	}
	if !sectionType.IsFreeResponse() {
		return nil, NewValidationError("type", "task reviews exist for speaking or writing sections only", sectionType)
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if errs := s.validator.GetBusinessValidator().ValidateTaskReviews(sectionType, req.Reviews); len(errs) > 0 {
		return nil, errs
	}

	seen := make(map[uint]bool, len(req.Reviews))
	for _, review := range req.Reviews {
		if seen[review.TaskID] {
			return nil, fmt.Errorf("task %d is reviewed more than once: %w", review.TaskID, ErrConflict)
		}
		seen[review.TaskID] = true
	}

	responseType := models.ResponseType(sectionType)
	saved := make([]*models.Score, len(req.Reviews))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.Section().GetByID(ctx, tx, sectionID, sectionType); err != nil {
			return wrapRepoError(err, string(sectionType)+" section", sectionID, "get section")
		}

		taskIDs, err := s.sectionTaskIDs(ctx, tx, sectionType, sectionID)
		if err != nil {
			return err
		}
		if sectionType == models.SectionSpeaking && len(seen) != len(taskIDs) {
			return NewValidationError("reviews", fmt.Sprintf("reviews must cover all %d tasks of the section", len(taskIDs)), len(seen))
		}

		for i, review := range req.Reviews {
			if !taskIDs[review.TaskID] {
				return NewScopeError("task", review.TaskID, string(sectionType)+" section", sectionID)
			}

			responseTaskID, err := s.responseTaskID(ctx, tx, responseType, review.ResponseID)
			if err != nil {
				return err
			}
			if responseTaskID != review.TaskID {
				return NewScopeError("response", review.ResponseID, "task", review.TaskID)
			}

			target, err := models.TargetFor(responseType, review.ResponseID)
			if err != nil {
				return fmt.Errorf("failed to build score target: %w", err)
			}
			score := review.Score
			saved[i], err = s.saveScore(ctx, tx, target, &score, normalizeFeedback(&review.Feedback), identity.UserID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Task reviews rejected", "section_type", sectionType, "section_id", sectionID, "error", err)
		return nil, err
	}

	result := &BulkReviewResponse{SectionID: sectionID, ScoreIDs: make([]uint, 0, len(saved))}
	for i, score := range saved {
		s.afterFeedback(ctx, responseType, req.Reviews[i].ResponseID, identity.UserID, score)
		result.ScoreIDs = append(result.ScoreIDs, score.ID)
	}
	return result, nil
}

// ===== HELPER METHODS =====

// loadTarget checks that the response or answer exists and, for answers, that
// it belongs to a question of the named section type.
func (s *feedbackService) loadTarget(ctx context.Context, tx *gorm.DB, responseType models.ResponseType, id uint) (*models.FeedbackTargetView, models.ScoreTarget, error) {
	target, err := models.TargetFor(responseType, id)
	if err != nil {
		return nil, nil, NewValidationError("type", err.Error(), responseType)
	}

	view := &models.FeedbackTargetView{
		ResponseType: responseType,
		ResponseID:   id,
		MaxScore:     responseType.MaxFeedbackScore(),
	}

	switch responseType {
	case models.ResponseSpeaking:
		response, err := s.repo.Response().GetSpeaking(ctx, tx, id)
		if err != nil {
			return nil, nil, wrapRepoError(err, "speaking response", id, "get speaking response")
		}
		view.Student = models.UserRef{ID: response.User.ID, Name: response.User.Username}
		view.SectionID = response.Task.SectionID
		view.Prompt = response.Task.Prompt
		view.TaskID = ptr(response.TaskID)
		view.TaskNumber = ptr(response.Task.TaskNumber)
		view.AudioURL = ptr(response.AudioURL)

	case models.ResponseWriting:
		response, err := s.repo.Response().GetWriting(ctx, tx, id)
		if err != nil {
			return nil, nil, wrapRepoError(err, "writing response", id, "get writing response")
		}
		view.Student = models.UserRef{ID: response.User.ID, Name: response.User.Username}
		view.SectionID = response.Task.SectionID
		view.Prompt = response.Task.Prompt
		view.TaskID = ptr(response.TaskID)
		view.TaskNumber = ptr(response.Task.TaskNumber)
		view.ResponseText = ptr(response.ResponseText)
		view.WordCount = ptr(response.WordCount)

	default:
		answer, err := s.repo.Answer().GetByID(ctx, tx, id)
		if err != nil {
			return nil, nil, wrapRepoError(err, "answer", id, "get answer")
		}
		question, err := s.repo.Question().GetWithChoices(ctx, tx, answer.QuestionID)
		if err != nil {
			return nil, nil, wrapRepoError(err, "question", answer.QuestionID, "get question")
		}
		if question.SectionType != models.SectionType(responseType) {
			return nil, nil, NewScopeError("answer", id, "a "+string(responseType)+" section", 0)
		}

		view.Student = models.UserRef{ID: answer.User.ID, Name: answer.User.Username}
		view.Prompt = question.Prompt
		view.QuestionID = ptr(question.ID)
		view.QuestionType = question.Type
		view.UserSelection = ptr(answer.Key(question.Type))
		view.CorrectAnswers = CorrectKeys(question)
		view.ChoiceLayout = models.LayoutOf(question)

		section, err := s.repo.Section().GetByQuestion(ctx, tx, question)
		if err != nil {
			return nil, nil, wrapRepoError(err, "section of question", question.ID, "get section")
		}
		view.SectionID = section.ID
		view.SectionTitle = section.Title
	}

	if view.SectionTitle == "" {
		section, err := s.repo.Section().GetByID(ctx, tx, view.SectionID, models.SectionType(responseType))
		if err != nil {
			return nil, nil, wrapRepoError(err, string(responseType)+" section", view.SectionID, "get section")
		}
		view.SectionTitle = section.Title
	}

	return view, target, nil
}

func (s *feedbackService) saveScore(ctx context.Context, tx *gorm.DB, target models.ScoreTarget, value *float64, feedback *string, scoredBy uint) (*models.Score, error) {
	score, err := s.repo.Score().GetByTarget(ctx, tx, target)
	switch {
	case repositories.IsNotFoundError(err):
		score = models.NewScore(target)
	case err != nil:
		return nil, fmt.Errorf("failed to get score: %w", err)
	}

	score.Score = value
	score.Feedback = feedback
	score.ScoredBy = scoredBy
	if err := s.repo.Score().Save(ctx, tx, score); err != nil {
		return nil, fmt.Errorf("failed to save score: %w", err)
	}
	return score, nil
}

func (s *feedbackService) sectionTaskIDs(ctx context.Context, tx *gorm.DB, sectionType models.SectionType, sectionID uint) (map[uint]bool, error) {
	ids := make(map[uint]bool)
	if sectionType == models.SectionSpeaking {
		tasks, err := s.repo.Section().GetSpeakingTasks(ctx, tx, sectionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get speaking tasks: %w", err)
		}
		for _, task := range tasks {
			ids[task.ID] = true
		}
		return ids, nil
	}

	tasks, err := s.repo.Section().GetWritingTasks(ctx, tx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get writing tasks: %w", err)
	}
	for _, task := range tasks {
		ids[task.ID] = true
	}
	return ids, nil
}

func (s *feedbackService) responseTaskID(ctx context.Context, tx *gorm.DB, responseType models.ResponseType, id uint) (uint, error) {
	if responseType == models.ResponseSpeaking {
		response, err := s.repo.Response().GetSpeaking(ctx, tx, id)
		if err != nil {
			return 0, wrapRepoError(err, "speaking response", id, "get speaking response")
		}
		return response.TaskID, nil
	}

	response, err := s.repo.Response().GetWriting(ctx, tx, id)
	if err != nil {
		return 0, wrapRepoError(err, "writing response", id, "get writing response")
	}
	return response.TaskID, nil
}

func (s *feedbackService) afterFeedback(ctx context.Context, responseType models.ResponseType, responseID, scoredBy uint, score *models.Score) {
	s.metrics.ObserveFeedback(string(responseType))
	publishEvent(ctx, s.logger, s.events, events.TypeFeedbackSubmitted, events.FeedbackSubmittedEvent{
		ResponseType: string(responseType),
		ResponseID:   responseID,
		ScoredBy:     scoredBy,
		Score:        score.Score,
		HasFeedback:  score.Feedback != nil,
	})

	s.logger.Info("Feedback submitted",
		"response_type", responseType,
		"response_id", responseID,
		"score_id", score.ID,
		"scored_by", scoredBy)
}

// normalizeFeedback trims the text and maps an empty result to nil
func normalizeFeedback(feedback *string) *string {
	if feedback == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*feedback)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
