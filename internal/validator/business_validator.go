package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hezretaly/toefl/internal/models"
)

// BusinessValidator handles struct tags plus the rules that span several fields
type BusinessValidator struct {
	validate *validator.Validate
}

func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates struct tags for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	if err := bv.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateQuestion checks the authoring rules of one question inside a section
func (bv *BusinessValidator) ValidateQuestion(sectionType models.SectionType, req *QuestionRequest, field string) ValidationErrors {
	var errors ValidationErrors

	if req.Type == models.QuestionAudioChoice && sectionType != models.SectionListening {
		errors = append(errors, ValidationError{
			Field:   field + ".type",
			Message: "audio questions are only allowed in listening sections",
			Value:   req.Type,
			Rule:    "business_logic",
		})
	}

	switch req.Type {
	case models.QuestionTable:
		if len(req.Rows) == 0 || len(req.Columns) == 0 {
			errors = append(errors, ValidationError{
				Field:   field + ".rows",
				Message: "table questions need at least one row and one column",
				Rule:    "business_logic",
			})
		}
	case models.QuestionInsertText:
		// options are fixed to the insertion points
	default:
		if len(req.Options) < 2 {
			errors = append(errors, ValidationError{
				Field:   field + ".options",
				Message: "choice questions need at least two options",
				Value:   len(req.Options),
				Rule:    "business_logic",
			})
		}
	}

	return errors
}

// ValidateSpeakingTasks checks numbering and per-task content of a speaking section
func (bv *BusinessValidator) ValidateSpeakingTasks(tasks []SpeakingTaskRequest) ValidationErrors {
	var errors ValidationErrors

	seen := make(map[int]bool, len(tasks))
	for i, task := range tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		if seen[task.TaskNumber] {
			errors = append(errors, ValidationError{
				Field:   field + ".taskNumber",
				Message: "task number is duplicated",
				Value:   task.TaskNumber,
				Rule:    "business_logic",
			})
		}
		seen[task.TaskNumber] = true

		needsPassage := task.TaskNumber == 2 || task.TaskNumber == 3
		if needsPassage && (task.Passage == nil || strings.TrimSpace(*task.Passage) == "") {
			errors = append(errors, ValidationError{
				Field:   field + ".passage",
				Message: fmt.Sprintf("task %d requires a passage", task.TaskNumber),
				Rule:    "business_logic",
			})
		}
	}

	return errors
}

// ValidateWritingTasks checks that both writing tasks are present once
func (bv *BusinessValidator) ValidateWritingTasks(tasks []WritingTaskRequest) ValidationErrors {
	var errors ValidationErrors

	seen := make(map[int]bool, len(tasks))
	for i, task := range tasks {
		if seen[task.TaskNumber] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("tasks[%d].taskNumber", i),
				Message: "task number is duplicated",
				Value:   task.TaskNumber,
				Rule:    "business_logic",
			})
		}
		seen[task.TaskNumber] = true
	}

	return errors
}

// ValidateFeedbackScore checks a reviewer score against the range of the target kind
func (bv *BusinessValidator) ValidateFeedbackScore(responseType models.ResponseType, score *float64) ValidationErrors {
	if score == nil {
		return nil
	}

	limit := responseType.MaxFeedbackScore()
	if *score < 0 || *score > limit {
		return ValidationErrors{{
			Field:   "score",
			Message: fmt.Sprintf("must be between 0 and %.1f", limit),
			Value:   *score,
			Rule:    "score_range",
		}}
	}
	return nil
}

// ValidateTaskReviews checks a bulk speaking or writing review batch
func (bv *BusinessValidator) ValidateTaskReviews(sectionType models.SectionType, reviews []TaskReviewRequest) ValidationErrors {
	var errors ValidationErrors

	maxScore := 10.0
	if sectionType == models.SectionWriting {
		maxScore = 100.0
		if len(reviews) != models.WritingTaskCount {
			errors = append(errors, ValidationError{
				Field:   "reviews",
				Message: fmt.Sprintf("exactly %d reviews are required", models.WritingTaskCount),
				Value:   len(reviews),
				Rule:    "business_logic",
			})
		}
	}

	for i, review := range reviews {
		field := fmt.Sprintf("reviews[%d]", i)
		if review.Score < 0 || review.Score > maxScore {
			errors = append(errors, ValidationError{
				Field:   field + ".score",
				Message: fmt.Sprintf("must be between 0 and %.0f", maxScore),
				Value:   review.Score,
				Rule:    "score_range",
			})
		}
		if sectionType == models.SectionSpeaking && strings.TrimSpace(review.Feedback) == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".feedback",
				Message: "must not be blank",
				Rule:    "not_blank",
			})
		}
	}

	return errors
}

func (bv *BusinessValidator) registerBusinessRules() {
	bv.validate.RegisterValidation("not_blank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	bv.validate.RegisterValidation("section_type", func(fl validator.FieldLevel) bool {
		return models.SectionType(fl.Field().String()).IsValid()
	})

	bv.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).IsValid()
	})

	bv.validate.RegisterValidation("response_type", func(fl validator.FieldLevel) bool {
		return models.ResponseType(fl.Field().String()).IsValid()
	})

	bv.validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).IsValid()
	})
}
