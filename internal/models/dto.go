package models

import "time"

// ===== SHARED VIEW PIECES =====

type UserRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type OptionView struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type LabelView struct {
	ID    uint   `json:"id"`
	Label string `json:"label"`
}

type ScoreView struct {
	ID       uint     `json:"id"`
	Score    *float64 `json:"score"`
	Feedback *string  `json:"feedback"`
	Scorer   *UserRef `json:"scorer"`
}

// NewScoreView returns nil when there is no score row
func NewScoreView(score *Score) *ScoreView {
	if score == nil {
		return nil
	}
	view := &ScoreView{ID: score.ID, Score: score.Score, Feedback: score.Feedback}
	if score.Scorer.ID != 0 {
		view.Scorer = &UserRef{ID: score.Scorer.ID, Name: score.Scorer.Username}
	}
	return view
}

// ChoiceLayout is the ordered option or table layout of a question
type ChoiceLayout struct {
	Options []OptionView `json:"options,omitempty"`
	Rows    []LabelView  `json:"rows,omitempty"`
	Columns []LabelView  `json:"columns,omitempty"`
}

// LayoutOf renders a question's options or rows/columns in canonical order
func LayoutOf(q *Question) ChoiceLayout {
	var layout ChoiceLayout
	if q.Type.IsTable() {
		for _, row := range OrderRows(q.Rows) {
			layout.Rows = append(layout.Rows, LabelView{ID: row.ID, Label: row.Label})
		}
		for _, col := range OrderColumns(q.Columns) {
			layout.Columns = append(layout.Columns, LabelView{ID: col.ID, Label: col.Label})
		}
		return layout
	}
	for _, opt := range OrderOptions(q.Options) {
		layout.Options = append(layout.Options, OptionView{ID: opt.ID, Text: opt.OptionText})
	}
	return layout
}

// ===== STUDENT REVIEW =====

type StudentSectionSummary struct {
	SectionID        uint        `json:"sectionId"`
	SectionTitle     string      `json:"sectionTitle"`
	SectionType      SectionType `json:"sectionType"`
	FeedbackProvided bool        `json:"feedbackProvided"`
}

type TaskResponseView struct {
	ID           uint      `json:"id"`
	AudioURL     *string   `json:"audioUrl,omitempty"`
	ResponseText *string   `json:"responseText,omitempty"`
	WordCount    *int      `json:"wordCount,omitempty"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

type TaskReview struct {
	TaskID     uint              `json:"taskId"`
	TaskNumber int               `json:"taskNumber"`
	Prompt     string            `json:"prompt"`
	Passage    *string           `json:"passage,omitempty"`
	AudioURL   *string           `json:"audioUrl,omitempty"`
	Response   *TaskResponseView `json:"response"`
	Score      *ScoreView        `json:"score"`
}

type AnswerView struct {
	ResponseID uint       `json:"responseId"`
	Selection  AnswerKey  `json:"selection"`
	Score      *ScoreView `json:"score"`
}

type QuestionReview struct {
	QuestionID     uint         `json:"questionId"`
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"prompt"`
	ContainerID    uint         `json:"containerId"`
	ContainerTitle string       `json:"containerTitle"`
	ChoiceLayout
	UserAnswers    []AnswerView `json:"userAnswers"`
	CorrectAnswers []AnswerKey  `json:"correctAnswers"`
	IsCorrect      bool         `json:"isCorrect"`
	Points         int          `json:"points"`
	Awarded        int          `json:"awarded"`
}

type StudentReviewView struct {
	SectionID    uint             `json:"sectionId"`
	SectionTitle string           `json:"sectionTitle"`
	SectionType  SectionType      `json:"sectionType"`
	Tasks        []TaskReview     `json:"tasks,omitempty"`
	Questions    []QuestionReview `json:"questions,omitempty"`
	TotalScore   *int             `json:"totalScore,omitempty"`
	MaxScore     *int             `json:"maxScore,omitempty"`
}

// ===== ADMIN REVIEW =====

type AdminSectionSummary struct {
	SectionID    uint        `json:"sectionId"`
	SectionTitle string      `json:"sectionTitle"`
	SectionType  SectionType `json:"sectionType"`
	StudentCount int64       `json:"studentCount"`
}

type AdminResponseView struct {
	ResponseID   uint         `json:"responseId"`
	ResponseType ResponseType `json:"responseType"`

	// speaking / writing
	TaskID       *uint   `json:"taskId,omitempty"`
	TaskNumber   *int    `json:"taskNumber,omitempty"`
	AudioURL     *string `json:"audioUrl,omitempty"`
	ResponseText *string `json:"responseText,omitempty"`
	WordCount    *int    `json:"wordCount,omitempty"`

	// reading / listening
	QuestionID    *uint        `json:"questionId,omitempty"`
	QuestionType  QuestionType `json:"questionType,omitempty"`
	UserSelection *AnswerKey   `json:"userSelection,omitempty"`
	ChoiceLayout
	IsCorrect *bool `json:"isCorrect,omitempty"`
	Points    *int  `json:"points,omitempty"`
	Awarded   *int  `json:"awarded,omitempty"`

	Prompt      string   `json:"prompt"`
	Score       *float64 `json:"score"`
	Feedback    *string  `json:"feedback"`
	HasFeedback bool     `json:"hasFeedback"`
}

type StudentSubmission struct {
	Student   UserRef             `json:"student"`
	Responses []AdminResponseView `json:"responses"`
}

type AdminSectionDetail struct {
	SectionID    uint                `json:"sectionId"`
	SectionTitle string              `json:"sectionTitle"`
	SectionType  SectionType         `json:"sectionType"`
	Submissions  []StudentSubmission `json:"submissions"`
}

// ===== FEEDBACK =====

type FeedbackTargetView struct {
	ResponseType ResponseType `json:"responseType"`
	ResponseID   uint         `json:"responseId"`
	Student      UserRef      `json:"student"`
	SectionID    uint         `json:"sectionId"`
	SectionTitle string       `json:"sectionTitle"`
	Prompt       string       `json:"prompt"`

	TaskID       *uint   `json:"taskId,omitempty"`
	TaskNumber   *int    `json:"taskNumber,omitempty"`
	AudioURL     *string `json:"audioUrl,omitempty"`
	ResponseText *string `json:"responseText,omitempty"`
	WordCount    *int    `json:"wordCount,omitempty"`

	QuestionID     *uint        `json:"questionId,omitempty"`
	QuestionType   QuestionType `json:"questionType,omitempty"`
	UserSelection  *AnswerKey   `json:"userSelection,omitempty"`
	CorrectAnswers []AnswerKey  `json:"correctAnswers,omitempty"`
	ChoiceLayout

	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
	MaxScore float64  `json:"maxScore"`
}
