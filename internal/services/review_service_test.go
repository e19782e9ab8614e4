package services

import (
	"context"
	"errors"
	"testing"

	"github.com/hezretaly/toefl/internal/models"
)

func TestReviewService_ChoiceSection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	section := env.createReadingSection(t)
	reviews := env.reviews()

	if _, err := env.grading().SubmitChoiceAnswers(ctx, env.student, models.SectionReading, section.sectionID, answersFor(section.passageID, map[uint]string{
		section.single.ID: `["b"]`,
		section.multi.ID:  `["a","c"]`,
	})); err != nil {
		t.Fatalf("SubmitChoiceAnswers() error = %v", err)
	}

	t.Run("student review", func(t *testing.T) {
		view, err := reviews.GetStudentReview(ctx, env.student, models.SectionReading, section.sectionID)
		if err != nil {
			t.Fatalf("GetStudentReview() error = %v", err)
		}
		if view.TotalScore == nil || *view.TotalScore != 2 || view.MaxScore == nil || *view.MaxScore != 4 {
			t.Errorf("totals = %v/%v, want 2/4", view.TotalScore, view.MaxScore)
		}
		if len(view.Questions) != 3 {
			t.Fatalf("questions = %d, want 3", len(view.Questions))
		}
		table := view.Questions[2]
		if table.IsCorrect || len(table.UserAnswers) != 0 || table.Points != 2 || len(table.CorrectAnswers) != 2 {
			t.Errorf("table review = %+v", table)
		}
		if view.Questions[0].ContainerTitle != "Bees" {
			t.Errorf("container title = %q", view.Questions[0].ContainerTitle)
		}
	})

	t.Run("other student sees nothing answered", func(t *testing.T) {
		view, err := reviews.GetStudentReview(ctx, env.other, models.SectionReading, section.sectionID)
		if err != nil {
			t.Fatalf("GetStudentReview() error = %v", err)
		}
		if *view.TotalScore != 0 || *view.MaxScore != 4 {
			t.Errorf("totals = %d/%d, want 0/4", *view.TotalScore, *view.MaxScore)
		}
	})

	t.Run("summaries follow feedback", func(t *testing.T) {
		summaries, err := reviews.GetStudentSummaries(ctx, env.student)
		if err != nil {
			t.Fatalf("GetStudentSummaries() error = %v", err)
		}
		if len(summaries) != 1 || summaries[0].SectionID != section.sectionID || summaries[0].FeedbackProvided {
			t.Fatalf("summaries = %+v", summaries)
		}

		var answers []models.UserAnswer
		env.db.Where("user_id = ?", env.student.UserID).Find(&answers)
		for _, answer := range answers {
			if _, err := env.feedback().SubmitFeedback(ctx, env.teacher, models.ResponseReading, answer.ID, &SubmitFeedbackRequest{Feedback: ptr("ok")}); err != nil {
				t.Fatalf("SubmitFeedback() error = %v", err)
			}
		}

		summaries, err = reviews.GetStudentSummaries(ctx, env.student)
		if err != nil {
			t.Fatalf("GetStudentSummaries() error = %v", err)
		}
		if !summaries[0].FeedbackProvided {
			t.Errorf("FeedbackProvided = false after every answer was reviewed")
		}
	})

	t.Run("admin detail", func(t *testing.T) {
		detail, err := reviews.GetAdminSectionDetail(ctx, env.teacher, models.SectionReading, section.sectionID)
		if err != nil {
			t.Fatalf("GetAdminSectionDetail() error = %v", err)
		}
		if len(detail.Submissions) != 1 {
			t.Fatalf("submissions = %d, want 1", len(detail.Submissions))
		}
		submission := detail.Submissions[0]
		if submission.Student.ID != env.student.UserID || len(submission.Responses) != 3 {
			t.Fatalf("submission = %+v", submission)
		}
		for _, response := range submission.Responses {
			if response.IsCorrect == nil || !*response.IsCorrect || !response.HasFeedback {
				t.Errorf("response %d = %+v", response.ResponseID, response)
			}
		}

		summaries, err := reviews.GetAdminSummaries(ctx, env.teacher, models.SectionReading)
		if err != nil {
			t.Fatalf("GetAdminSummaries() error = %v", err)
		}
		if len(summaries) != 1 || summaries[0].StudentCount != 1 {
			t.Errorf("summaries = %+v", summaries)
		}
	})

	t.Run("feedback survives an identical resubmission", func(t *testing.T) {
		if _, err := env.grading().SubmitChoiceAnswers(ctx, env.student, models.SectionReading, section.sectionID, answersFor(section.passageID, map[uint]string{
			section.single.ID: `["b"]`,
			section.multi.ID:  `["a","c"]`,
		})); err != nil {
			t.Fatalf("SubmitChoiceAnswers() error = %v", err)
		}

		summaries, err := reviews.GetStudentSummaries(ctx, env.student)
		if err != nil {
			t.Fatalf("GetStudentSummaries() error = %v", err)
		}
		if len(summaries) != 1 || !summaries[0].FeedbackProvided {
			t.Errorf("summaries after resubmit = %+v", summaries)
		}

		view, err := reviews.GetStudentReview(ctx, env.student, models.SectionReading, section.sectionID)
		if err != nil {
			t.Fatalf("GetStudentReview() error = %v", err)
		}
		for _, question := range view.Questions {
			for _, answer := range question.UserAnswers {
				if answer.Score == nil {
					t.Errorf("question %d answer %d lost its review", question.QuestionID, answer.ResponseID)
				}
			}
		}

		detail, err := reviews.GetAdminSectionDetail(ctx, env.teacher, models.SectionReading, section.sectionID)
		if err != nil {
			t.Fatalf("GetAdminSectionDetail() error = %v", err)
		}
		for _, response := range detail.Submissions[0].Responses {
			if !response.HasFeedback {
				t.Errorf("response %d lost its feedback", response.ResponseID)
			}
		}
	})

	t.Run("students cannot use admin views", func(t *testing.T) {
		if _, err := reviews.GetAdminSectionDetail(ctx, env.student, models.SectionReading, section.sectionID); !errors.Is(err, ErrForbidden) {
			t.Errorf("GetAdminSectionDetail() error = %v, want ErrForbidden", err)
		}
		if _, err := reviews.GetStudentReview(ctx, env.teacher, models.SectionReading, section.sectionID); !errors.Is(err, ErrForbidden) {
			t.Errorf("GetStudentReview() by teacher error = %v, want ErrForbidden", err)
		}
	})
}

func TestReviewService_TaskReviews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sectionID := env.createSpeakingSection(t)
	reviews := env.reviews()

	if _, err := env.responses().SubmitSpeaking(ctx, env.student, sectionID, speakingRecordings()); err != nil {
		t.Fatalf("SubmitSpeaking() error = %v", err)
	}

	t.Run("teacher sees the requested student", func(t *testing.T) {
		tasks, err := reviews.GetTaskReviews(ctx, env.teacher, models.SectionSpeaking, sectionID, env.student.UserID)
		if err != nil {
			t.Fatalf("GetTaskReviews() error = %v", err)
		}
		if len(tasks) != models.SpeakingTaskCount {
			t.Fatalf("tasks = %d", len(tasks))
		}
		for i, task := range tasks {
			if task.TaskNumber != i+1 || task.Response == nil || task.Response.AudioURL == nil || task.Score != nil {
				t.Errorf("task %d = %+v", i+1, task)
			}
		}
	})

	t.Run("student is limited to own responses", func(t *testing.T) {
		tasks, err := reviews.GetTaskReviews(ctx, env.other, models.SectionSpeaking, sectionID, env.student.UserID)
		if err != nil {
			t.Fatalf("GetTaskReviews() error = %v", err)
		}
		for _, task := range tasks {
			if task.Response != nil {
				t.Errorf("task %d leaked another student's response", task.TaskNumber)
			}
		}
	})

	t.Run("choice sections rejected", func(t *testing.T) {
		_, err := reviews.GetTaskReviews(ctx, env.teacher, models.SectionReading, sectionID, env.student.UserID)
		var validationErrs ValidationErrors
		if !errors.As(err, &validationErrs) {
			t.Errorf("GetTaskReviews() error = %v, want ValidationErrors", err)
		}
	})

	t.Run("admin detail groups by student", func(t *testing.T) {
		detail, err := reviews.GetAdminSectionDetail(ctx, env.teacher, models.SectionSpeaking, sectionID)
		if err != nil {
			t.Fatalf("GetAdminSectionDetail() error = %v", err)
		}
		if len(detail.Submissions) != 1 || len(detail.Submissions[0].Responses) != models.SpeakingTaskCount {
			t.Fatalf("detail = %+v", detail)
		}
		if detail.Submissions[0].Student.Name != "student1" {
			t.Errorf("student name = %q", detail.Submissions[0].Student.Name)
		}
	})
}
