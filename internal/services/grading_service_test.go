package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hezretaly/toefl/internal/events"
	"github.com/hezretaly/toefl/internal/models"
)

func answersFor(containerID uint, payloads map[uint]string) *SubmitAnswersRequest {
	inner := make(map[uint]json.RawMessage, len(payloads))
	for questionID, payload := range payloads {
		inner[questionID] = json.RawMessage(payload)
	}
	return &SubmitAnswersRequest{Answers: map[uint]map[uint]json.RawMessage{containerID: inner}}
}

func TestGradingService_SubmitChoiceAnswers(t *testing.T) {
	env := newTestEnv(t)
	section := env.createReadingSection(t)
	grading := env.grading()
	ctx := context.Background()

	t.Run("scores a full submission", func(t *testing.T) {
		env.events.ClearEvents()

		result, err := grading.SubmitChoiceAnswers(ctx, env.student, models.SectionReading, section.sectionID, answersFor(section.passageID, map[uint]string{
			section.single.ID: `["b"]`,
			section.multi.ID:  `[0, "c"]`,
			section.table.ID:  `{"0":{"0":true},"1":{"1":true}}`,
		}))
		if err != nil {
			t.Fatalf("SubmitChoiceAnswers() error = %v", err)
		}
		// single 1 + multi 1 + two-cell table 2
		if result.Score != 4 || result.MaxScore != 4 {
			t.Errorf("score = %d/%d, want 4/4", result.Score, result.MaxScore)
		}

		published := env.events.EventsOfType(events.TypeAnswersSubmitted)
		if len(published) != 1 {
			t.Fatalf("published %d answers.submitted events, want 1", len(published))
		}
		payload, ok := published[0].Data.(events.AnswersSubmittedEvent)
		if !ok || payload.Score != 4 || payload.UserID != env.student.UserID {
			t.Errorf("event data = %+v", published[0].Data)
		}
	})

	t.Run("resubmission replaces only the named question", func(t *testing.T) {
		result, err := grading.SubmitChoiceAnswers(ctx, env.student, models.SectionReading, section.sectionID, answersFor(section.passageID, map[uint]string{
			section.single.ID: `["a"]`,
		}))
		if err != nil {
			t.Fatalf("SubmitChoiceAnswers() error = %v", err)
		}
		if result.Score != 3 {
			t.Errorf("score = %d, want 3", result.Score)
		}

		var rows []models.UserAnswer
		env.db.Where("user_id = ? AND question_id = ?", env.student.UserID, section.single.ID).Find(&rows)
		if len(rows) != 1 {
			t.Errorf("stored %d rows for the single choice question, want 1", len(rows))
		}
	})

	t.Run("foreign question rejected without writes", func(t *testing.T) {
		before := env.count(t, &models.UserAnswer{})

		_, err := grading.SubmitChoiceAnswers(ctx, env.student, models.SectionReading, section.sectionID, answersFor(section.passageID, map[uint]string{
			section.single.ID: `["c"]`,
			9999:              `["a"]`,
		}))
		var scopeErr *ScopeError
		if !errors.As(err, &scopeErr) || !errors.Is(err, ErrScopeMismatch) {
			t.Fatalf("SubmitChoiceAnswers() error = %v, want ScopeError", err)
		}
		if after := env.count(t, &models.UserAnswer{}); after != before {
			t.Errorf("answer rows changed from %d to %d", before, after)
		}
	})

	t.Run("foreign container rejected", func(t *testing.T) {
		_, err := grading.SubmitChoiceAnswers(ctx, env.student, models.SectionReading, section.sectionID, answersFor(section.passageID+100, map[uint]string{
			section.single.ID: `["a"]`,
		}))
		if !errors.Is(err, ErrScopeMismatch) {
			t.Fatalf("SubmitChoiceAnswers() error = %v, want ErrScopeMismatch", err)
		}
	})

	t.Run("unresolvable letter", func(t *testing.T) {
		_, err := grading.SubmitChoiceAnswers(ctx, env.student, models.SectionReading, section.sectionID, answersFor(section.passageID, map[uint]string{
			section.single.ID: `["z"]`,
		}))
		if !errors.Is(err, ErrInvalidSelection) {
			t.Fatalf("SubmitChoiceAnswers() error = %v, want ErrInvalidSelection", err)
		}
	})

	t.Run("wrong section type", func(t *testing.T) {
		_, err := grading.SubmitChoiceAnswers(ctx, env.student, models.SectionListening, section.sectionID, answersFor(section.passageID, nil))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("SubmitChoiceAnswers() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("teacher cannot submit", func(t *testing.T) {
		_, err := grading.SubmitChoiceAnswers(ctx, env.teacher, models.SectionReading, section.sectionID, answersFor(section.passageID, nil))
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("SubmitChoiceAnswers() error = %v, want ErrForbidden", err)
		}
	})

	t.Run("resubmission keeps existing scores", func(t *testing.T) {
		singleAnswer := func() models.UserAnswer {
			t.Helper()
			var answer models.UserAnswer
			if err := env.db.Where("user_id = ? AND question_id = ?", env.student.UserID, section.single.ID).First(&answer).Error; err != nil {
				t.Fatalf("failed to load answer: %v", err)
			}
			return answer
		}
		scoreOf := func(answerID uint) *models.Score {
			t.Helper()
			var score models.Score
			if err := env.db.Where("user_answer_id = ?", answerID).First(&score).Error; err != nil {
				t.Fatalf("no score on answer %d: %v", answerID, err)
			}
			return &score
		}

		answer := singleAnswer()
		if _, err := env.feedback().SubmitFeedback(ctx, env.teacher, models.ResponseReading, answer.ID, &SubmitFeedbackRequest{Score: ptr(1.0), Feedback: ptr("well argued")}); err != nil {
			t.Fatalf("SubmitFeedback() error = %v", err)
		}
		original := scoreOf(answer.ID)

		resubmit := func(payload string) {
			t.Helper()
			if _, err := grading.SubmitChoiceAnswers(ctx, env.student, models.SectionReading, section.sectionID, answersFor(section.passageID, map[uint]string{
				section.single.ID: payload,
			})); err != nil {
				t.Fatalf("SubmitChoiceAnswers(%s) error = %v", payload, err)
			}
		}

		tests := []struct {
			name    string
			payload string
		}{
			{"identical selection", `["a"]`},
			{"changed selection", `["b"]`},
		}
		for _, tt := range tests {
			resubmit(tt.payload)

			current := singleAnswer()
			score := scoreOf(current.ID)
			if score.ID != original.ID || score.FeedbackText() != "well argued" || score.Score == nil || *score.Score != 1.0 {
				t.Errorf("%s: score = %+v, want the original score carried over", tt.name, score)
			}
			if n := env.count(t, &models.Score{}); n != 1 {
				t.Errorf("%s: scores = %d, want 1", tt.name, n)
			}
		}
	})
}

func TestGradingService_GetSectionScore(t *testing.T) {
	env := newTestEnv(t)
	section := env.createReadingSection(t)
	ctx := context.Background()

	result, err := env.grading().GetSectionScore(ctx, env.other, models.SectionReading, section.sectionID)
	if err != nil {
		t.Fatalf("GetSectionScore() error = %v", err)
	}
	if result.Score != 0 || result.MaxScore != 4 {
		t.Errorf("score = %d/%d, want 0/4", result.Score, result.MaxScore)
	}

	// list form of the table payload lands on the same cells as the grid form
	if _, err := env.grading().SubmitChoiceAnswers(ctx, env.other, models.SectionReading, section.sectionID, answersFor(section.passageID, map[uint]string{
		section.table.ID: `[{"row":1,"col":1},{"row":0,"col":0}]`,
	})); err != nil {
		t.Fatalf("SubmitChoiceAnswers() error = %v", err)
	}
	result, err = env.grading().GetSectionScore(ctx, env.other, models.SectionReading, section.sectionID)
	if err != nil {
		t.Fatalf("GetSectionScore() error = %v", err)
	}
	if result.Score != 2 {
		t.Errorf("score = %d, want 2", result.Score)
	}

	if _, err := env.grading().GetSectionScore(ctx, env.student, models.SectionSpeaking, section.sectionID); err == nil {
		t.Error("GetSectionScore() on speaking should fail")
	}
}
