package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
)

type reviewService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewReviewService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ReviewService {
	return &reviewService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

// ===== STUDENT REVIEW =====

func (s *reviewService) GetStudentSummaries(ctx context.Context, identity auth.Identity) ([]models.StudentSectionSummary, error) {
	s.logger.Info("Getting student summaries", "user_id", identity.UserID)

	if err := requireRole(identity, "view reviews", models.RoleStudent); err != nil {
		return nil, err
	}

	progress, err := s.repo.Review().StudentProgress(ctx, nil, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student progress: %w", err)
	}

	summaries := make([]models.StudentSectionSummary, 0, len(progress))
	for _, p := range progress {
		summaries = append(summaries, models.StudentSectionSummary{
			SectionID:        p.SectionID,
			SectionTitle:     p.SectionTitle,
			SectionType:      p.SectionType,
			FeedbackProvided: p.Submitted > 0 && p.Submitted == p.Scored,
		})
	}
	return summaries, nil
}

func (s *reviewService) GetStudentReview(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID uint) (*models.StudentReviewView, error) {
	s.logger.Info("Getting student review", "user_id", identity.UserID, "section_type", sectionType, "section_id", sectionID)

	if err := requireRole(identity, "view reviews", models.RoleStudent); err != nil {
		return nil, err
	}
	if err := requireSectionType(sectionType); err != nil {
		return nil, err
	}

	var view *models.StudentReviewView
	err := readConsistent(ctx, s.db, func(tx *gorm.DB) error {
		section, err := s.repo.Section().GetByID(ctx, tx, sectionID, sectionType)
		if err != nil {
			return wrapRepoError(err, string(sectionType)+" section", sectionID, "get section")
		}

		view = &models.StudentReviewView{
			SectionID:    section.ID,
			SectionTitle: section.Title,
			SectionType:  section.SectionType,
		}

		if sectionType.IsFreeResponse() {
			view.Tasks, err = s.taskReviews(ctx, tx, sectionType, sectionID, identity.UserID)
			return err
		}

		questions, total, max, err := s.questionReviews(ctx, tx, sectionType, sectionID, identity.UserID)
		if err != nil {
			return err
		}
		view.Questions = questions
		view.TotalScore = &total
		view.MaxScore = &max
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// GetTaskReviews is the per-student task listing of a speaking or writing
// section. Students only ever see their own.
func (s *reviewService) GetTaskReviews(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID, studentID uint) ([]models.TaskReview, error) {
	if identity.UserID == 0 {
		return nil, ErrUnauthorized
	}
	if !sectionType.IsFreeResponse() {
		return nil, NewValidationError("type", "task reviews exist for speaking or writing sections only", sectionType)
	}
	if !identity.IsReviewer() {
		studentID = identity.UserID
	}

	var reviews []models.TaskReview
	err := readConsistent(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := s.repo.Section().GetByID(ctx, tx, sectionID, sectionType); err != nil {
			return wrapRepoError(err, string(sectionType)+" section", sectionID, "get section")
		}
		var err error
		reviews, err = s.taskReviews(ctx, tx, sectionType, sectionID, studentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// ===== ADMIN REVIEW =====

func (s *reviewService) GetAdminSummaries(ctx context.Context, identity auth.Identity, sectionType models.SectionType) ([]models.AdminSectionSummary, error) {
	s.logger.Info("Getting admin summaries", "section_type", sectionType)

	if err := requireRole(identity, "review submissions", models.RoleTeacher); err != nil {
		return nil, err
	}
	if err := requireSectionType(sectionType); err != nil {
		return nil, err
	}

	counts, err := s.repo.Review().SectionStudentCounts(ctx, nil, sectionType)
	if err != nil {
		return nil, fmt.Errorf("failed to get section student counts: %w", err)
	}

	summaries := make([]models.AdminSectionSummary, 0, len(counts))
	for _, c := range counts {
		summaries = append(summaries, models.AdminSectionSummary{
			SectionID:    c.SectionID,
			SectionTitle: c.SectionTitle,
			SectionType:  c.SectionType,
			StudentCount: c.StudentCount,
		})
	}
	return summaries, nil
}

func (s *reviewService) GetAdminSectionDetail(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID uint) (*models.AdminSectionDetail, error) {
	s.logger.Info("Getting admin section detail", "section_type", sectionType, "section_id", sectionID)

	if err := requireRole(identity, "review submissions", models.RoleTeacher); err != nil {
		return nil, err
	}
	if err := requireSectionType(sectionType); err != nil {
		return nil, err
	}

	var detail *models.AdminSectionDetail
	err := readConsistent(ctx, s.db, func(tx *gorm.DB) error {
		section, err := s.repo.Section().GetByID(ctx, tx, sectionID, sectionType)
		if err != nil {
			return wrapRepoError(err, string(sectionType)+" section", sectionID, "get section")
		}

		var submissions []models.StudentSubmission
		switch sectionType {
		case models.SectionSpeaking:
			submissions, err = s.speakingSubmissions(ctx, tx, sectionID)
		case models.SectionWriting:
			submissions, err = s.writingSubmissions(ctx, tx, sectionID)
		default:
			submissions, err = s.answerSubmissions(ctx, tx, sectionType, sectionID)
		}
		if err != nil {
			return err
		}

		detail = &models.AdminSectionDetail{
			SectionID:    section.ID,
			SectionTitle: section.Title,
			SectionType:  section.SectionType,
			Submissions:  submissions,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ===== HELPER METHODS =====

// taskReviews lists every task of the section with the student's latest
// response and its score, ordered by task number.
func (s *reviewService) taskReviews(ctx context.Context, tx *gorm.DB, sectionType models.SectionType, sectionID, userID uint) ([]models.TaskReview, error) {
	var reviews []models.TaskReview
	responseIDs := make(map[int]uint)

	switch sectionType {
	case models.SectionSpeaking:
		tasks, err := s.repo.Section().GetSpeakingTasks(ctx, tx, sectionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get speaking tasks: %w", err)
		}
		for _, task := range tasks {
			review := models.TaskReview{
				TaskID:     task.ID,
				TaskNumber: task.TaskNumber,
				Prompt:     task.Prompt,
				Passage:    task.Passage,
				AudioURL:   task.AudioURL,
			}
			response, err := s.repo.Response().FindSpeaking(ctx, tx, userID, task.ID)
			switch {
			case err == nil:
				review.Response = &models.TaskResponseView{ID: response.ID, AudioURL: ptr(response.AudioURL), SubmittedAt: response.UpdatedAt}
				responseIDs[len(reviews)] = response.ID
			case !repositories.IsNotFoundError(err):
				return nil, fmt.Errorf("failed to get speaking response: %w", err)
			}
			reviews = append(reviews, review)
		}
	case models.SectionWriting:
		tasks, err := s.repo.Section().GetWritingTasks(ctx, tx, sectionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get writing tasks: %w", err)
		}
		for _, task := range tasks {
			review := models.TaskReview{
				TaskID:     task.ID,
				TaskNumber: task.TaskNumber,
				Prompt:     task.Prompt,
				Passage:    ptr(task.Passage),
				AudioURL:   task.AudioURL,
			}
			response, err := s.repo.Response().FindWriting(ctx, tx, userID, task.ID)
			switch {
			case err == nil:
				review.Response = &models.TaskResponseView{
					ID:           response.ID,
					ResponseText: ptr(response.ResponseText),
					WordCount:    ptr(response.WordCount),
					SubmittedAt:  response.UpdatedAt,
				}
				responseIDs[len(reviews)] = response.ID
			case !repositories.IsNotFoundError(err):
				return nil, fmt.Errorf("failed to get writing response: %w", err)
			}
			reviews = append(reviews, review)
		}
	}

	ids := make([]uint, 0, len(responseIDs))
	for _, id := range responseIDs {
		ids = append(ids, id)
	}
	scores, err := s.repo.Score().ListByTargets(ctx, tx, models.ResponseType(sectionType), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get scores: %w", err)
	}
	for i, id := range responseIDs {
		reviews[i].Score = models.NewScoreView(scores[id])
	}

	sort.SliceStable(reviews, func(i, j int) bool { return reviews[i].TaskNumber < reviews[j].TaskNumber })
	if reviews == nil {
		reviews = []models.TaskReview{}
	}
	return reviews, nil
}

// questionReviews grades every question of a choice section for one student
// and returns the reviews with the section total and maximum.
func (s *reviewService) questionReviews(ctx context.Context, tx *gorm.DB, sectionType models.SectionType, sectionID, userID uint) ([]models.QuestionReview, int, int, error) {
	titles, err := s.containerTitles(ctx, tx, sectionType, sectionID)
	if err != nil {
		return nil, 0, 0, err
	}
	questions, err := s.repo.Question().ListBySection(ctx, tx, sectionID, sectionType)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to get section questions: %w", err)
	}

	questionIDs := make([]uint, 0, len(questions))
	for _, question := range questions {
		questionIDs = append(questionIDs, question.ID)
	}
	answers, err := s.repo.Answer().ListByUserAndQuestions(ctx, tx, userID, questionIDs)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to get stored answers: %w", err)
	}
	scores, err := s.answerScores(ctx, tx, sectionType, answers)
	if err != nil {
		return nil, 0, 0, err
	}

	byQuestion := make(map[uint][]*models.UserAnswer)
	for _, answer := range answers {
		byQuestion[answer.QuestionID] = append(byQuestion[answer.QuestionID], answer)
	}

	var total, max int
	reviews := make([]models.QuestionReview, 0, len(questions))
	for _, question := range questions {
		correct := CorrectKeys(question)
		var user []models.AnswerKey
		views := []models.AnswerView{}
		for _, answer := range byQuestion[question.ID] {
			key := answer.Key(question.Type)
			if key.IsZero() {
				continue
			}
			user = append(user, key)
			views = append(views, models.AnswerView{
				ResponseID: answer.ID,
				Selection:  key,
				Score:      models.NewScoreView(scores[answer.ID]),
			})
		}

		awarded, points := ScoreQuestion(question.Type, correct, user)
		total += awarded
		max += points

		reviews = append(reviews, models.QuestionReview{
			QuestionID:     question.ID,
			Type:           question.Type,
			Prompt:         question.Prompt,
			ContainerID:    question.ContainerID(),
			ContainerTitle: titles[question.ContainerID()],
			ChoiceLayout:   models.LayoutOf(question),
			UserAnswers:    views,
			CorrectAnswers: correct,
			IsCorrect:      IsCorrect(question.Type, correct, user),
			Points:         points,
			Awarded:        awarded,
		})
	}
	return reviews, total, max, nil
}

func (s *reviewService) containerTitles(ctx context.Context, tx *gorm.DB, sectionType models.SectionType, sectionID uint) (map[uint]string, error) {
	content, err := s.repo.Section().GetContent(ctx, tx, sectionID, sectionType)
	if err != nil {
		return nil, wrapRepoError(err, string(sectionType)+" section", sectionID, "get section content")
	}
	titles := make(map[uint]string)
	for _, passage := range content.Passages {
		titles[passage.ID] = passage.Title
	}
	for _, audio := range content.Audios {
		titles[audio.ID] = audio.Title
	}
	return titles, nil
}

func (s *reviewService) answerScores(ctx context.Context, tx *gorm.DB, sectionType models.SectionType, answers []*models.UserAnswer) (map[uint]*models.Score, error) {
	ids := make([]uint, 0, len(answers))
	for _, answer := range answers {
		ids = append(ids, answer.ID)
	}
	scores, err := s.repo.Score().ListByTargets(ctx, tx, models.ResponseType(sectionType), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get answer scores: %w", err)
	}
	return scores, nil
}

func (s *reviewService) speakingSubmissions(ctx context.Context, tx *gorm.DB, sectionID uint) ([]models.StudentSubmission, error) {
	tasks, err := s.repo.Section().GetSpeakingTasks(ctx, tx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get speaking tasks: %w", err)
	}
	byID := make(map[uint]*models.SpeakingTask, len(tasks))
	taskIDs := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		byID[task.ID] = task
		taskIDs = append(taskIDs, task.ID)
	}

	responses, err := s.repo.Response().ListSpeakingByTasks(ctx, tx, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get speaking responses: %w", err)
	}
	ids := make([]uint, 0, len(responses))
	for _, response := range responses {
		ids = append(ids, response.ID)
	}
	scores, err := s.repo.Score().ListByTargets(ctx, tx, models.ResponseSpeaking, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get speaking scores: %w", err)
	}

	grouped := newSubmissionGroups()
	for _, response := range responses {
		task := byID[response.TaskID]
		view := taskResponseView(models.ResponseSpeaking, response.ID, task.ID, task.TaskNumber, task.Prompt, scores[response.ID])
		view.AudioURL = ptr(response.AudioURL)
		grouped.add(response.User, view)
	}
	return grouped.list(byTaskNumber), nil
}

func (s *reviewService) writingSubmissions(ctx context.Context, tx *gorm.DB, sectionID uint) ([]models.StudentSubmission, error) {
	tasks, err := s.repo.Section().GetWritingTasks(ctx, tx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get writing tasks: %w", err)
	}
	byID := make(map[uint]*models.WritingTask, len(tasks))
	taskIDs := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		byID[task.ID] = task
		taskIDs = append(taskIDs, task.ID)
	}

	responses, err := s.repo.Response().ListWritingByTasks(ctx, tx, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get writing responses: %w", err)
	}
	ids := make([]uint, 0, len(responses))
	for _, response := range responses {
		ids = append(ids, response.ID)
	}
	scores, err := s.repo.Score().ListByTargets(ctx, tx, models.ResponseWriting, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get writing scores: %w", err)
	}

	grouped := newSubmissionGroups()
	for _, response := range responses {
		task := byID[response.TaskID]
		view := taskResponseView(models.ResponseWriting, response.ID, task.ID, task.TaskNumber, task.Prompt, scores[response.ID])
		view.ResponseText = ptr(response.ResponseText)
		view.WordCount = ptr(response.WordCount)
		grouped.add(response.User, view)
	}
	return grouped.list(byTaskNumber), nil
}

func (s *reviewService) answerSubmissions(ctx context.Context, tx *gorm.DB, sectionType models.SectionType, sectionID uint) ([]models.StudentSubmission, error) {
	questions, err := s.repo.Question().ListBySection(ctx, tx, sectionID, sectionType)
	if err != nil {
		return nil, fmt.Errorf("failed to get section questions: %w", err)
	}
	byID := make(map[uint]*models.Question, len(questions))
	questionIDs := make([]uint, 0, len(questions))
	for _, question := range questions {
		byID[question.ID] = question
		questionIDs = append(questionIDs, question.ID)
	}

	answers, err := s.repo.Answer().ListByQuestions(ctx, tx, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get stored answers: %w", err)
	}
	scores, err := s.answerScores(ctx, tx, sectionType, answers)
	if err != nil {
		return nil, err
	}

	// Each row is judged with the full answer set of its student
	type userQuestion struct{ userID, questionID uint }
	sets := make(map[userQuestion][]models.AnswerKey)
	for _, answer := range answers {
		if question := byID[answer.QuestionID]; question != nil {
			k := userQuestion{answer.UserID, answer.QuestionID}
			sets[k] = append(sets[k], answer.Key(question.Type))
		}
	}

	grouped := newSubmissionGroups()
	for _, answer := range answers {
		question := byID[answer.QuestionID]
		key := answer.Key(question.Type)
		if key.IsZero() {
			continue
		}
		correct := CorrectKeys(question)
		user := sets[userQuestion{answer.UserID, answer.QuestionID}]
		awarded, points := ScoreQuestion(question.Type, correct, user)

		score := scores[answer.ID]
		grouped.add(answer.User, models.AdminResponseView{
			ResponseID:    answer.ID,
			ResponseType:  models.ResponseType(sectionType),
			QuestionID:    ptr(question.ID),
			QuestionType:  question.Type,
			UserSelection: ptr(key),
			ChoiceLayout:  models.LayoutOf(question),
			IsCorrect:     ptr(IsCorrect(question.Type, correct, user)),
			Points:        ptr(points),
			Awarded:       ptr(awarded),
			Prompt:        question.Prompt,
			Score:         scoreValue(score),
			Feedback:      feedbackValue(score),
			HasFeedback:   feedbackValue(score) != nil,
		})
	}
	return grouped.list(byQuestionID), nil
}

func taskResponseView(responseType models.ResponseType, responseID, taskID uint, taskNumber int, prompt string, score *models.Score) models.AdminResponseView {
	return models.AdminResponseView{
		ResponseID:   responseID,
		ResponseType: responseType,
		TaskID:       ptr(taskID),
		TaskNumber:   ptr(taskNumber),
		Prompt:       prompt,
		Score:        scoreValue(score),
		Feedback:     feedbackValue(score),
		HasFeedback:  feedbackValue(score) != nil,
	}
}

func scoreValue(score *models.Score) *float64 {
	if score == nil {
		return nil
	}
	return score.Score
}

func feedbackValue(score *models.Score) *string {
	if score == nil || score.Feedback == nil || *score.Feedback == "" {
		return nil
	}
	return score.Feedback
}

// ===== SUBMISSION GROUPING =====

type submissionGroups struct {
	students map[uint]*models.StudentSubmission
}

func newSubmissionGroups() *submissionGroups {
	return &submissionGroups{students: make(map[uint]*models.StudentSubmission)}
}

func (g *submissionGroups) add(user models.User, view models.AdminResponseView) {
	submission, ok := g.students[user.ID]
	if !ok {
		submission = &models.StudentSubmission{Student: models.UserRef{ID: user.ID, Name: user.Username}}
		g.students[user.ID] = submission
	}
	submission.Responses = append(submission.Responses, view)
}

// list returns students by id with their responses sorted by less
func (g *submissionGroups) list(less func(a, b models.AdminResponseView) bool) []models.StudentSubmission {
	submissions := make([]models.StudentSubmission, 0, len(g.students))
	for _, id := range sortedKeys(g.students) {
		submission := g.students[id]
		sort.SliceStable(submission.Responses, func(i, j int) bool {
			return less(submission.Responses[i], submission.Responses[j])
		})
		submissions = append(submissions, *submission)
	}
	return submissions
}

func byTaskNumber(a, b models.AdminResponseView) bool {
	return derefInt(a.TaskNumber) < derefInt(b.TaskNumber)
}

func byQuestionID(a, b models.AdminResponseView) bool {
	if derefUint(a.QuestionID) != derefUint(b.QuestionID) {
		return derefUint(a.QuestionID) < derefUint(b.QuestionID)
	}
	return a.ResponseID < b.ResponseID
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func derefUint(v *uint) uint {
	if v == nil {
		return 0
	}
	return *v
}
