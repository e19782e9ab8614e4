package validator

import (
	"encoding/json"

	"github.com/hezretaly/toefl/internal/models"
)

// ===== AUTH =====

type RegisterRequest struct {
	Username string `json:"username" validate:"required,not_blank,min=3,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ===== SECTION AUTHORING =====

// TableSelectionRequest is a correct cell given by row and column index
type TableSelectionRequest struct {
	RowIndex int `json:"rowIndex" validate:"min=0"`
	ColIndex int `json:"colIndex" validate:"min=0"`
}

// QuestionRequest is the authoring payload of a single question. Which of the
// correct answer fields is read depends on Type.
type QuestionRequest struct {
	// Client side id used to match uploaded snippet files (listening only)
	ClientID string `json:"id"`

	Type           models.QuestionType `json:"type" validate:"required,question_type"`
	Prompt         string              `json:"prompt" validate:"required,not_blank"`
	ParagraphIndex *int                `json:"paragraph_index" validate:"omitempty,min=0"`
	Options        []string            `json:"options" validate:"omitempty,dive,not_blank"`

	CorrectOptionIndex     *int                    `json:"correctOptionIndex"`
	CorrectInsertionPoint  string                  `json:"correctInsertionPoint"`
	CorrectAnswerIndices   []int                   `json:"correctAnswerIndices"`
	Rows                   []string                `json:"rows" validate:"omitempty,dive,not_blank"`
	Columns                []string                `json:"columns" validate:"omitempty,dive,not_blank"`
	CorrectTableSelections []TableSelectionRequest `json:"correctTableSelections" validate:"omitempty,dive"`
	SummaryStatement       string                  `json:"summary_statement"`
}

type ReadingPassageRequest struct {
	Title     string            `json:"title" validate:"required,not_blank,max=255"`
	Content   string            `json:"content" validate:"required,not_blank"`
	Questions []QuestionRequest `json:"questions" validate:"dive"`
}

type CreateReadingSectionRequest struct {
	Title    string                  `json:"title" validate:"required,not_blank,max=255"`
	Passages []ReadingPassageRequest `json:"passages" validate:"required,min=1,dive"`
}

type ListeningAudioRequest struct {
	ClientID  string            `json:"id" validate:"required"`
	Title     string            `json:"title" validate:"required,not_blank,max=255"`
	Questions []QuestionRequest `json:"questions" validate:"dive"`
}

type CreateListeningSectionRequest struct {
	Title      string                  `json:"title" validate:"required,not_blank,max=255"`
	AudioItems []ListeningAudioRequest `json:"audioItems" validate:"required,min=1,dive"`
}

type SpeakingTaskRequest struct {
	TaskNumber int     `json:"taskNumber" validate:"required,min=1,max=4"`
	Prompt     string  `json:"prompt" validate:"required,not_blank"`
	Passage    *string `json:"passage"`
}

type CreateSpeakingSectionRequest struct {
	Title string                `json:"title" validate:"required,not_blank,max=255"`
	Tasks []SpeakingTaskRequest `json:"tasks" validate:"required,len=4,dive"`
}

type WritingTaskRequest struct {
	TaskNumber int    `json:"taskNumber" validate:"required,min=1,max=2"`
	Prompt     string `json:"prompt" validate:"required,not_blank"`
	Passage    string `json:"passage" validate:"required,not_blank"`
}

type CreateWritingSectionRequest struct {
	Title string               `json:"title" validate:"required,not_blank,max=255"`
	Tasks []WritingTaskRequest `json:"tasks" validate:"required,len=2,dive"`
}

type UpdateSectionRequest struct {
	Title string `json:"title" validate:"required,not_blank,max=255"`
}

// ===== SUBMISSIONS =====

// SubmitAnswersRequest carries container id -> question id -> raw payload.
// The payload shape depends on the question type and is decoded by the normalizer.
type SubmitAnswersRequest struct {
	Answers map[uint]map[uint]json.RawMessage `json:"answers" validate:"required"`
}

type WritingAnswers struct {
	Task1 string `json:"task1" validate:"required,not_blank"`
	Task2 string `json:"task2" validate:"required,not_blank"`
}

type SubmitWritingRequest struct {
	Answers WritingAnswers `json:"answers" validate:"required"`
}

// ===== REVIEW & FEEDBACK =====

type SubmitFeedbackRequest struct {
	Score    *float64 `json:"score" validate:"omitempty,gte=0"`
	Feedback *string  `json:"feedback" validate:"omitempty,max=10000"`
}

type TaskReviewRequest struct {
	TaskID     uint    `json:"task_id" validate:"required"`
	ResponseID uint    `json:"response_id" validate:"required"`
	Score      float64 `json:"score" validate:"gte=0"`
	Feedback   string  `json:"feedback" validate:"max=10000"`
}

type SubmitTaskReviewsRequest struct {
	Reviews []TaskReviewRequest `json:"reviews" validate:"required,min=1,dive"`
}

// ===== OPERATOR =====

type CreateUserRequest struct {
	Username string          `json:"username" validate:"required,not_blank,min=3,max=100"`
	Email    string          `json:"email" validate:"required,email,max=255"`
	Password string          `json:"password" validate:"required,min=6,max=128"`
	Role     models.UserRole `json:"role" validate:"required,user_role"`
}
