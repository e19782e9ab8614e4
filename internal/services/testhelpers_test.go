package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/events"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
	"github.com/hezretaly/toefl/internal/repositories/postgres"
	"github.com/hezretaly/toefl/internal/storage"
	"github.com/hezretaly/toefl/internal/validator"
)

// testEnv wires services over an in-memory sqlite database and a temp dir store
type testEnv struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	events    *events.MockEventPublisher
	storage   *storage.LocalStorageProvider

	teacher auth.Identity
	student auth.Identity
	other   auth.Identity
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := postgres.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	provider, err := storage.NewLocalStorageProvider(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	log := discardLogger()
	env := &testEnv{
		db:        db,
		repo:      postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db}),
		logger:    log,
		validator: validator.New(),
		events:    events.NewMockEventPublisher(log),
		storage:   provider,
	}

	env.teacher = env.createUser(t, "teacher1", models.RoleTeacher)
	env.student = env.createUser(t, "student1", models.RoleStudent)
	env.other = env.createUser(t, "student2", models.RoleStudent)
	return env
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (e *testEnv) createUser(t *testing.T, username string, role models.UserRole) auth.Identity {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", PasswordHash: "x", Role: role}
	if err := e.db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return auth.Identity{UserID: user.ID, Role: role}
}

func (e *testEnv) sections() SectionService {
	return NewSectionService(e.repo, e.db, e.logger, e.validator, e.storage)
}

func (e *testEnv) grading() GradingService {
	return NewGradingService(e.db, e.repo, e.logger, e.validator, e.events, nil)
}

func (e *testEnv) responses() ResponseService {
	return NewResponseService(e.repo, e.db, e.logger, e.validator, e.storage, e.events, nil)
}

func (e *testEnv) reviews() ReviewService {
	return NewReviewService(e.repo, e.db, e.logger)
}

func (e *testEnv) feedback() FeedbackService {
	return NewFeedbackService(e.repo, e.db, e.logger, e.validator, e.events, nil)
}

func (e *testEnv) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("failed to count %T: %v", model, err)
	}
	return n
}

func upload(name, content string) *storage.File {
	return &storage.File{Name: name, Size: int64(len(content)), Reader: strings.NewReader(content)}
}

// readingSection is a reading section with one passage holding a single
// choice question (correct "b"), a multi choice question (correct a, c) and a
// 2x2 table question (correct cells (0,0) and (1,1)).
type readingSection struct {
	sectionID uint
	passageID uint
	single    *models.Question
	multi     *models.Question
	table     *models.Question
}

func (e *testEnv) createReadingSection(t *testing.T) readingSection {
	t.Helper()
	ctx := context.Background()

	created, err := e.sections().CreateReading(ctx, e.teacher, &CreateReadingSectionRequest{
		Title: "Reading 1",
		Passages: []validator.ReadingPassageRequest{{
			Title:   "Bees",
			Content: "Bees are important pollinators.",
			Questions: []QuestionRequest{
				{Type: models.QuestionSingleChoice, Prompt: "Why?", Options: []string{"A", "B", "C"}, CorrectOptionIndex: ptr(1)},
				{Type: models.QuestionMultiChoice, Prompt: "Which?", Options: []string{"A", "B", "C"}, CorrectAnswerIndices: []int{0, 2}},
				{
					Type:    models.QuestionTable,
					Prompt:  "Classify",
					Rows:    []string{"r0", "r1"},
					Columns: []string{"c0", "c1"},
					CorrectTableSelections: []validator.TableSelectionRequest{
						{RowIndex: 0, ColIndex: 0},
						{RowIndex: 1, ColIndex: 1},
					},
				},
			},
		}},
	})
	if err != nil {
		t.Fatalf("CreateReading() error = %v", err)
	}

	questions, err := e.repo.Question().ListBySection(ctx, nil, created.SectionID, models.SectionReading)
	if err != nil || len(questions) != 3 {
		t.Fatalf("ListBySection() = %d questions, error = %v", len(questions), err)
	}
	return readingSection{
		sectionID: created.SectionID,
		passageID: questions[0].ContainerID(),
		single:    questions[0],
		multi:     questions[1],
		table:     questions[2],
	}
}

func (e *testEnv) createSpeakingSection(t *testing.T) uint {
	t.Helper()
	passage := "Read this first."
	tasks := make([]validator.SpeakingTaskRequest, 0, models.SpeakingTaskCount)
	for n := 1; n <= models.SpeakingTaskCount; n++ {
		task := validator.SpeakingTaskRequest{TaskNumber: n, Prompt: fmt.Sprintf("Prompt %d", n)}
		if n == 2 || n == 3 {
			task.Passage = &passage
		}
		tasks = append(tasks, task)
	}
	files := UploadSet{
		"audio_task_2": upload("t2.mp3", "t2"),
		"audio_task_3": upload("t3.mp3", "t3"),
		"audio_task_4": upload("t4.mp3", "t4"),
	}

	created, err := e.sections().CreateSpeaking(context.Background(), e.teacher, &CreateSpeakingSectionRequest{Title: "Speaking 1", Tasks: tasks}, files)
	if err != nil {
		t.Fatalf("CreateSpeaking() error = %v", err)
	}
	return created.SectionID
}

func (e *testEnv) createWritingSection(t *testing.T) uint {
	t.Helper()
	created, err := e.sections().CreateWriting(context.Background(), e.teacher, &CreateWritingSectionRequest{
		Title: "Writing 1",
		Tasks: []validator.WritingTaskRequest{
			{TaskNumber: 2, Prompt: "Argue", Passage: "Some claim"},
			{TaskNumber: 1, Prompt: "Summarize", Passage: "A lecture"},
		},
	}, UploadSet{"audio_task_1": upload("lecture.mp3", "lecture")})
	if err != nil {
		t.Fatalf("CreateWriting() error = %v", err)
	}
	return created.SectionID
}

func speakingRecordings() UploadSet {
	files := UploadSet{}
	for n := 1; n <= models.SpeakingTaskCount; n++ {
		files[RecordingField(n)] = upload(fmt.Sprintf("rec%d.webm", n), fmt.Sprintf("recording %d", n))
	}
	return files
}
