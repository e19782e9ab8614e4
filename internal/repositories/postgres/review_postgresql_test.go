package postgres

import (
	"testing"

	"github.com/hezretaly/toefl/internal/models"
)

func TestReviewRepository_StudentProgress(t *testing.T) {
	db := newTestDB(t)
	fx := createReadingFixture(t, db)
	student := createUser(t, db, "student", models.RoleStudent)
	other := createUser(t, db, "other", models.RoleStudent)
	teacher := createUser(t, db, "teacher", models.RoleTeacher)

	answer := models.NewUserAnswer(student.ID, fx.question.ID, models.OptionKey(fx.question.Options[0].ID))
	mustCreate(t, db, &answer)

	repo := NewReviewPostgreSQL(db)

	progress, err := repo.StudentProgress(ctxT(), nil, student.ID)
	if err != nil {
		t.Fatalf("StudentProgress() error = %v", err)
	}
	if len(progress) != 1 {
		t.Fatalf("StudentProgress() = %+v, want one section", progress)
	}
	if progress[0].SectionID != fx.section.ID || progress[0].Submitted != 1 || progress[0].Scored != 0 {
		t.Errorf("StudentProgress() = %+v", progress[0])
	}

	score := models.NewScore(models.AnswerTarget{UserAnswerID: answer.ID, SectionType: models.SectionReading})
	score.ScoredBy = teacher.ID
	mustCreate(t, db, score)

	progress, err = repo.StudentProgress(ctxT(), nil, student.ID)
	if err != nil {
		t.Fatalf("StudentProgress() error = %v", err)
	}
	if progress[0].Scored != 1 {
		t.Errorf("Scored = %d, want 1", progress[0].Scored)
	}

	none, err := repo.StudentProgress(ctxT(), nil, other.ID)
	if err != nil {
		t.Fatalf("StudentProgress() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("StudentProgress() for student without submissions = %+v", none)
	}
}

func TestReviewRepository_SectionStudentCounts(t *testing.T) {
	db := newTestDB(t)
	fx := createReadingFixture(t, db)
	empty := &models.Section{SectionType: models.SectionReading, Title: "Reading 2"}
	mustCreate(t, db, empty)

	for _, name := range []string{"s1", "s2"} {
		student := createUser(t, db, name, models.RoleStudent)
		for _, opt := range fx.question.Options[:2] {
			answer := models.NewUserAnswer(student.ID, fx.question.ID, models.OptionKey(opt.ID))
			mustCreate(t, db, &answer)
		}
	}

	counts, err := NewReviewPostgreSQL(db).SectionStudentCounts(ctxT(), nil, models.SectionReading)
	if err != nil {
		t.Fatalf("SectionStudentCounts() error = %v", err)
	}

	got := map[uint]int64{}
	for _, c := range counts {
		got[c.SectionID] = c.StudentCount
	}
	if got[fx.section.ID] != 2 {
		t.Errorf("student count of %d = %d, want 2", fx.section.ID, got[fx.section.ID])
	}
	if _, ok := got[empty.ID]; ok {
		t.Errorf("section without submissions should not be listed")
	}
}
