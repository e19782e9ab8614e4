package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	eventSource  = "toefl-service"
	eventVersion = "1.0"
)

// Event types double as topic names
const (
	TypeAnswersSubmitted   = "answers.submitted"
	TypeResponsesSubmitted = "responses.submitted"
	TypeFeedbackSubmitted  = "feedback.submitted"
)

// AllTopics lists every topic the service publishes to
var AllTopics = []string{TypeAnswersSubmitted, TypeResponsesSubmitted, TypeFeedbackSubmitted}

// Event is the envelope published for every domain event
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher publishes domain events after the owning transaction commits
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// ===== EVENT PAYLOADS =====

type AnswersSubmittedEvent struct {
	UserID      uint   `json:"user_id"`
	SectionID   uint   `json:"section_id"`
	SectionType string `json:"section_type"`
	Score       int    `json:"score"`
	MaxScore    int    `json:"max_score"`
	Questions   int    `json:"questions"`
}

type ResponsesSubmittedEvent struct {
	UserID      uint   `json:"user_id"`
	SectionID   uint   `json:"section_id"`
	SectionType string `json:"section_type"`
	ResponseIDs []uint `json:"response_ids"`
}

type FeedbackSubmittedEvent struct {
	ResponseType string   `json:"response_type"`
	ResponseID   uint     `json:"response_id"`
	ScoredBy     uint     `json:"scored_by"`
	Score        *float64 `json:"score,omitempty"`
	HasFeedback  bool     `json:"has_feedback"`
}
