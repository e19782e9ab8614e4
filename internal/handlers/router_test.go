package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/config"
	"github.com/hezretaly/toefl/internal/events"
	"github.com/hezretaly/toefl/internal/metrics"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories/postgres"
	"github.com/hezretaly/toefl/internal/services"
	"github.com/hezretaly/toefl/internal/storage"
	"github.com/hezretaly/toefl/internal/utils"
	"github.com/hezretaly/toefl/internal/validator"
)

type testServer struct {
	router   *gin.Engine
	db       *gorm.DB
	services services.ServiceManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
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

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	log := utils.NewSlogLogger(slogger)
	collector := metrics.New()
	manager := services.NewDefaultServiceManager(db, postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db}), slogger, validator.New(), services.ServiceDependencies{
		Events:  events.NewMockEventPublisher(slogger),
		Storage: provider,
		Metrics: collector,
		Tokens:  auth.NewTokenIssuer("test-secret", time.Hour),
	})
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	cfg := &config.Config{
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		CORSOrigins:    []string{"*"},
		MaxUploadMB:    10,
	}
	router := gin.New()
	SetupMiddleware(router, cfg, log, collector)
	NewHandlerManager(manager, provider, cfg, collector, log).SetupRoutes(router)

	return &testServer{router: router, db: db, services: manager}
}

func (s *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	return s.do(t, method, path, token, body, "application/json")
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode %s: %v", w.Body.String(), err)
	}
}

// tokenFor creates an account through the operator path and logs it in over HTTP
func (s *testServer) tokenFor(t *testing.T, username string, role models.UserRole) string {
	t.Helper()
	email := username + "@example.com"
	if _, err := s.services.Auth().CreateUser(context.Background(), &services.CreateUserRequest{
		Username: username,
		Email:    email,
		Password: "secret123",
		Role:     role,
	}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	w := s.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "secret123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	var resp services.AuthResponse
	decode(t, w, &resp)
	return resp.Token
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	for name, content := range files {
		part, err := writer.CreateFormFile(name, name+".webm")
		if err != nil {
			t.Fatalf("failed to create file part: %v", err)
		}
		part.Write([]byte(content))
	}
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func TestRouter_AuthFlow(t *testing.T) {
	srv := newTestServer(t)

	w := srv.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", w.Code, w.Body.String())
	}
	var registered services.AuthResponse
	decode(t, w, &registered)
	if registered.Token == "" || registered.User.Role != models.RoleStudent {
		t.Errorf("register response = %+v", registered)
	}

	w = srv.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret123",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", w.Code)
	}

	w = srv.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong-password"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", w.Code)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"valid token", "Bearer " + registered.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sections/reading", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	w = srv.doJSON(t, http.MethodGet, "/api/v1/sections/grammar", registered.Token, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown section type status = %d, want 400", w.Code)
	}
}

func TestRouter_ReadingFlow(t *testing.T) {
	srv := newTestServer(t)
	teacher := srv.tokenFor(t, "teacher1", models.RoleTeacher)
	student := srv.tokenFor(t, "student1", models.RoleStudent)

	section := map[string]interface{}{
		"title": "Reading 1",
		"passages": []map[string]interface{}{{
			"title":   "Bees",
			"content": "Bees are important pollinators.",
			"questions": []map[string]interface{}{
				{"type": models.QuestionSingleChoice, "prompt": "Why?", "options": []string{"A", "B", "C"}, "correctOptionIndex": 1},
				{"type": models.QuestionMultiChoice, "prompt": "Which?", "options": []string{"A", "B", "C"}, "correctAnswerIndices": []int{0, 2}},
			},
		}},
	}

	if w := srv.doJSON(t, http.MethodPost, "/api/v1/sections/reading", student, section); w.Code != http.StatusForbidden {
		t.Fatalf("student create status = %d, want 403", w.Code)
	}

	w := srv.doJSON(t, http.MethodPost, "/api/v1/sections/reading", teacher, section)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created services.SectionCreatedResponse
	decode(t, w, &created)
	base := fmt.Sprintf("/api/v1/sections/reading/%d", created.SectionID)

	w = srv.doJSON(t, http.MethodGet, base, student, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d: %s", w.Code, w.Body.String())
	}
	var content models.Section
	decode(t, w, &content)
	if len(content.Passages) != 1 || len(content.Passages[0].Questions) != 2 {
		t.Fatalf("content = %+v", content)
	}
	passage := content.Passages[0]

	answers := map[string]interface{}{
		"answers": map[string]interface{}{
			fmt.Sprint(passage.ID): map[string]interface{}{
				fmt.Sprint(passage.Questions[0].ID): []string{"b"},
				fmt.Sprint(passage.Questions[1].ID): []string{"a", "c"},
			},
		},
	}
	if w := srv.doJSON(t, http.MethodPost, base+"/submit", teacher, answers); w.Code != http.StatusForbidden {
		t.Errorf("teacher submit status = %d, want 403", w.Code)
	}

	w = srv.doJSON(t, http.MethodPost, base+"/submit", student, answers)
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d: %s", w.Code, w.Body.String())
	}
	var score services.SectionScoreResponse
	decode(t, w, &score)
	if score.Score != 2 || score.MaxScore != 2 {
		t.Errorf("score = %d/%d, want 2/2", score.Score, score.MaxScore)
	}

	foreign := map[string]interface{}{
		"answers": map[string]interface{}{
			fmt.Sprint(passage.ID + 100): map[string]interface{}{fmt.Sprint(passage.Questions[0].ID): []string{"a"}},
		},
	}
	if w := srv.doJSON(t, http.MethodPost, base+"/submit", student, foreign); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("foreign container status = %d, want 422: %s", w.Code, w.Body.String())
	}

	w = srv.doJSON(t, http.MethodGet, base+"/score", student, nil)
	decode(t, w, &score)
	if w.Code != http.StatusOK || score.Score != 2 {
		t.Errorf("score status = %d, score = %+v", w.Code, score)
	}

	w = srv.doJSON(t, http.MethodGet, "/api/v1/review/summaries", student, nil)
	var summaries []models.StudentSectionSummary
	decode(t, w, &summaries)
	if w.Code != http.StatusOK || len(summaries) != 1 {
		t.Errorf("summaries status = %d, body = %s", w.Code, w.Body.String())
	}

	if w := srv.doJSON(t, http.MethodGet, fmt.Sprintf("/api/v1/review/reading/%d", created.SectionID), student, nil); w.Code != http.StatusOK {
		t.Errorf("student review status = %d", w.Code)
	}
	if w := srv.doJSON(t, http.MethodGet, "/api/v1/admin/review/summaries", student, nil); w.Code != http.StatusForbidden {
		t.Errorf("student admin summaries status = %d, want 403", w.Code)
	}
	if w := srv.doJSON(t, http.MethodGet, "/api/v1/admin/review/summaries", teacher, nil); w.Code != http.StatusBadRequest {
		t.Errorf("summaries without type status = %d, want 400", w.Code)
	}
	if w := srv.doJSON(t, http.MethodGet, "/api/v1/admin/review/summaries?type=reading", teacher, nil); w.Code != http.StatusOK {
		t.Errorf("admin summaries status = %d", w.Code)
	}

	w = srv.doJSON(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/review/reading/%d/export", created.SectionID), teacher, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), ".xlsx") || w.Body.Len() == 0 {
		t.Errorf("export headers = %v, size = %d", w.Header(), w.Body.Len())
	}

	var answer models.UserAnswer
	srv.db.First(&answer)
	feedbackPath := fmt.Sprintf("/api/v1/admin/feedback/reading/%d", answer.ID)
	if w := srv.doJSON(t, http.MethodPost, feedbackPath, teacher, map[string]interface{}{"score": 2.0}); w.Code != http.StatusBadRequest {
		t.Errorf("out of range feedback status = %d, want 400", w.Code)
	}
	if w := srv.doJSON(t, http.MethodPost, feedbackPath, teacher, map[string]interface{}{"score": 1.0, "feedback": "good"}); w.Code != http.StatusOK {
		t.Errorf("feedback status = %d: %s", w.Code, w.Body.String())
	}
	if w := srv.doJSON(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/feedback/listening/%d", answer.ID), teacher, nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("wrong response type status = %d, want 422", w.Code)
	}

	if w := srv.doJSON(t, http.MethodPut, base, teacher, map[string]string{"title": "Renamed"}); w.Code != http.StatusOK {
		t.Errorf("update status = %d", w.Code)
	}
	if w := srv.doJSON(t, http.MethodDelete, base, teacher, nil); w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := srv.doJSON(t, http.MethodGet, base, student, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestRouter_SpeakingFlow(t *testing.T) {
	srv := newTestServer(t)
	teacher := srv.tokenFor(t, "teacher1", models.RoleTeacher)
	student := srv.tokenFor(t, "student1", models.RoleStudent)

	passage := "Read this first."
	tasks := make([]validator.SpeakingTaskRequest, 0, models.SpeakingTaskCount)
	for n := 1; n <= models.SpeakingTaskCount; n++ {
		task := validator.SpeakingTaskRequest{TaskNumber: n, Prompt: fmt.Sprintf("Prompt %d", n)}
		if n == 2 || n == 3 {
			task.Passage = &passage
		}
		tasks = append(tasks, task)
	}
	sectionData, _ := json.Marshal(validator.CreateSpeakingSectionRequest{Title: "Speaking 1", Tasks: tasks})

	body, contentType := multipartBody(t, map[string]string{sectionDataField: string(sectionData)}, map[string]string{
		"audio_task_2": "t2",
		"audio_task_3": "t3",
		"audio_task_4": "t4",
	})
	w := srv.do(t, http.MethodPost, "/api/v1/sections/speaking", teacher, body, contentType)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created services.SectionCreatedResponse
	decode(t, w, &created)
	base := fmt.Sprintf("/api/v1/sections/speaking/%d", created.SectionID)

	recordings := map[string]string{}
	for n := 1; n <= models.SpeakingTaskCount; n++ {
		recordings[services.RecordingField(n)] = fmt.Sprintf("recording %d", n)
	}
	body, contentType = multipartBody(t, nil, recordings)
	w = srv.do(t, http.MethodPost, base+"/submit", student, body, contentType)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit status = %d: %s", w.Code, w.Body.String())
	}

	var response models.SpeakingResponse
	srv.db.Preload("Task").Order("id").First(&response)

	w = srv.do(t, http.MethodGet, "/files/"+response.AudioURL, "", nil, "")
	if w.Code != http.StatusOK || w.Body.String() != fmt.Sprintf("recording %d", response.Task.TaskNumber) {
		t.Errorf("file status = %d, body = %q", w.Code, w.Body.String())
	}
	if w := srv.do(t, http.MethodGet, "/files/speaking_responses/missing.webm", "", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", w.Code)
	}

	w = srv.doJSON(t, http.MethodGet, fmt.Sprintf("%s/reviews/%d", base, response.UserID), teacher, nil)
	var reviews []models.TaskReview
	decode(t, w, &reviews)
	if w.Code != http.StatusOK || len(reviews) != models.SpeakingTaskCount {
		t.Fatalf("task reviews status = %d, body = %s", w.Code, w.Body.String())
	}

	var responses []models.SpeakingResponse
	srv.db.Order("id").Find(&responses)
	reviewList := make([]map[string]interface{}, 0, len(responses))
	for _, r := range responses {
		reviewList = append(reviewList, map[string]interface{}{
			"task_id":     r.TaskID,
			"response_id": r.ID,
			"score":       8,
			"feedback":    "Fluent",
		})
	}
	if w := srv.doJSON(t, http.MethodPost, base+"/reviews", student, map[string]interface{}{"reviews": reviewList}); w.Code != http.StatusForbidden {
		t.Errorf("student bulk review status = %d, want 403", w.Code)
	}
	w = srv.doJSON(t, http.MethodPost, base+"/reviews", teacher, map[string]interface{}{"reviews": reviewList})
	if w.Code != http.StatusCreated {
		t.Errorf("bulk review status = %d: %s", w.Code, w.Body.String())
	}
	if w := srv.doJSON(t, http.MethodPost, base+"/reviews", teacher, map[string]interface{}{"reviews": reviewList[:1]}); w.Code != http.StatusBadRequest {
		t.Errorf("partial speaking review status = %d, want 400", w.Code)
	}

	w = srv.do(t, http.MethodGet, "/health", "", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
	w = srv.do(t, http.MethodGet, "/metrics", "", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Errorf("metrics status = %d", w.Code)
	}
}
