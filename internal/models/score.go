package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ResponseType discriminates what a Score is attached to
type ResponseType string

const (
	ResponseSpeaking  ResponseType = "speaking"
	ResponseWriting   ResponseType = "writing"
	ResponseReading   ResponseType = "reading"
	ResponseListening ResponseType = "listening"
)

func (t ResponseType) IsValid() bool {
	return SectionType(t).IsValid()
}

// IsAnswer is true when the score targets a stored user answer row
func (t ResponseType) IsAnswer() bool {
	return t == ResponseReading || t == ResponseListening
}

// MaxFeedbackScore is the upper bound accepted from a reviewer for this target kind
func (t ResponseType) MaxFeedbackScore() float64 {
	if t.IsAnswer() {
		return 1.0
	}
	return 5.0
}

// ScoreTarget is the closed set of things a Score can be attached to:
// SpeakingTarget, WritingTarget or AnswerTarget.
type ScoreTarget interface {
	ResponseType() ResponseType
	TargetID() uint
	isScoreTarget()
}

type SpeakingTarget struct {
	ResponseID uint
}

func (t SpeakingTarget) ResponseType() ResponseType { return ResponseSpeaking }
func (t SpeakingTarget) TargetID() uint             { return t.ResponseID }
func (SpeakingTarget) isScoreTarget()               {}

type WritingTarget struct {
	ResponseID uint
}

func (t WritingTarget) ResponseType() ResponseType { return ResponseWriting }
func (t WritingTarget) TargetID() uint             { return t.ResponseID }
func (WritingTarget) isScoreTarget()               {}

// AnswerTarget points at a single UserAnswer row of a reading or listening question
type AnswerTarget struct {
	UserAnswerID uint
	SectionType  SectionType
}

func (t AnswerTarget) ResponseType() ResponseType { return ResponseType(t.SectionType) }
func (t AnswerTarget) TargetID() uint             { return t.UserAnswerID }
func (AnswerTarget) isScoreTarget()               {}

// TargetFor builds the target named by a response type and id
func TargetFor(responseType ResponseType, id uint) (ScoreTarget, error) {
	switch responseType {
	case ResponseSpeaking:
		return SpeakingTarget{ResponseID: id}, nil
	case ResponseWriting:
		return WritingTarget{ResponseID: id}, nil
	case ResponseReading, ResponseListening:
		return AnswerTarget{UserAnswerID: id, SectionType: SectionType(responseType)}, nil
	}
	return nil, fmt.Errorf("unknown response type %q", responseType)
}

var ErrInvalidScoreTarget = errors.New("score target columns are inconsistent")

// Score is a reviewer's grade and feedback. Build it with NewScore; the link
// columns are only ever written from a ScoreTarget.
type Score struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	ResponseType ResponseType `json:"response_type" gorm:"not null;size:20;uniqueIndex:idx_scores_response,priority:1;uniqueIndex:idx_scores_user_answer,priority:1"`
	ResponseID   *uint        `json:"response_id" gorm:"uniqueIndex:idx_scores_response,priority:2"`
	UserAnswerID *uint        `json:"user_answer_id" gorm:"uniqueIndex:idx_scores_user_answer,priority:2"`
	Score        *float64     `json:"score" gorm:"type:numeric(5,2)"`
	Feedback     *string      `json:"feedback" gorm:"type:text"`
	ScoredBy     uint         `json:"scored_by" gorm:"not null;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Scorer User `json:"-" gorm:"foreignKey:ScoredBy"`
}

func NewScore(target ScoreTarget) *Score {
	s := &Score{}
	s.setTarget(target)
	return s
}

func (s *Score) setTarget(target ScoreTarget) {
	id := target.TargetID()
	s.ResponseType = target.ResponseType()
	s.ResponseID = nil
	s.UserAnswerID = nil
	if s.ResponseType.IsAnswer() {
		s.UserAnswerID = &id
	} else {
		s.ResponseID = &id
	}
}

// Target rebuilds the variant from the stored columns
func (s *Score) Target() (ScoreTarget, error) {
	switch s.ResponseType {
	case ResponseSpeaking, ResponseWriting:
		if s.ResponseID == nil || s.UserAnswerID != nil {
			return nil, ErrInvalidScoreTarget
		}
		return TargetFor(s.ResponseType, *s.ResponseID)
	case ResponseReading, ResponseListening:
		if s.UserAnswerID == nil || s.ResponseID != nil {
			return nil, ErrInvalidScoreTarget
		}
		return TargetFor(s.ResponseType, *s.UserAnswerID)
	}
	return nil, ErrInvalidScoreTarget
}

func (s *Score) BeforeSave(tx *gorm.DB) error {
	_, err := s.Target()
	return err
}

// FeedbackText returns the stored feedback or an empty string
func (s *Score) FeedbackText() string {
	if s == nil || s.Feedback == nil {
		return ""
	}
	return *s.Feedback
}
