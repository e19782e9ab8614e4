package services

import (
	"context"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/storage"
	"github.com/hezretaly/toefl/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type RegisterRequest = validator.RegisterRequest
type LoginRequest = validator.LoginRequest
type CreateUserRequest = validator.CreateUserRequest

type CreateReadingSectionRequest = validator.CreateReadingSectionRequest
type CreateListeningSectionRequest = validator.CreateListeningSectionRequest
type CreateSpeakingSectionRequest = validator.CreateSpeakingSectionRequest
type CreateWritingSectionRequest = validator.CreateWritingSectionRequest
type QuestionRequest = validator.QuestionRequest
type UpdateSectionRequest = validator.UpdateSectionRequest

type SubmitAnswersRequest = validator.SubmitAnswersRequest
type SubmitWritingRequest = validator.SubmitWritingRequest
type SubmitFeedbackRequest = validator.SubmitFeedbackRequest
type SubmitTaskReviewsRequest = validator.SubmitTaskReviewsRequest

// UploadSet holds the files of a multipart request keyed by form field name
type UploadSet map[string]*storage.File

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type SectionListItem struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

type SectionListResponse struct {
	Total    int               `json:"total"`
	Sections []SectionListItem `json:"sections"`
}

type SectionCreatedResponse struct {
	SectionID   uint               `json:"section_id"`
	SectionType models.SectionType `json:"section_type"`
	Title       string             `json:"title"`
}

type SectionScoreResponse struct {
	SectionID uint `json:"section_id"`
	Score     int  `json:"score"`
	MaxScore  int  `json:"max_score"`
}

type ResponsesSubmittedResponse struct {
	SectionID   uint   `json:"section_id"`
	ResponseIDs []uint `json:"response_ids"`
}

type BulkReviewResponse struct {
	SectionID uint   `json:"section_id"`
	ScoreIDs  []uint `json:"score_ids"`
}

// ExportFile is a generated spreadsheet ready to be streamed
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ===== SERVICE INTERFACES =====

type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)

	// Authenticate resolves a bearer token: local JWT first, then single sign-on
	Authenticate(ctx context.Context, token string) (auth.Identity, error)

	// CreateUser is the operator path that may assign any role
	CreateUser(ctx context.Context, req *CreateUserRequest) (*models.User, error)
}

type SectionService interface {
	CreateReading(ctx context.Context, identity auth.Identity, req *CreateReadingSectionRequest) (*SectionCreatedResponse, error)
	CreateListening(ctx context.Context, identity auth.Identity, req *CreateListeningSectionRequest, files UploadSet) (*SectionCreatedResponse, error)
	CreateSpeaking(ctx context.Context, identity auth.Identity, req *CreateSpeakingSectionRequest, files UploadSet) (*SectionCreatedResponse, error)
	CreateWriting(ctx context.Context, identity auth.Identity, req *CreateWritingSectionRequest, files UploadSet) (*SectionCreatedResponse, error)

	Get(ctx context.Context, sectionType models.SectionType, id uint) (*models.Section, error)
	List(ctx context.Context, sectionType models.SectionType) (*SectionListResponse, error)
	UpdateTitle(ctx context.Context, identity auth.Identity, sectionType models.SectionType, id uint, req *UpdateSectionRequest) (*models.Section, error)
	Delete(ctx context.Context, identity auth.Identity, sectionType models.SectionType, id uint) error
}

type GradingService interface {
	// SubmitChoiceAnswers replaces the student's answers for every submitted
	// question of a reading or listening section and returns the new score.
	SubmitChoiceAnswers(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID uint, req *SubmitAnswersRequest) (*SectionScoreResponse, error)
	GetSectionScore(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID uint) (*SectionScoreResponse, error)
}

type ResponseService interface {
	SubmitSpeaking(ctx context.Context, identity auth.Identity, sectionID uint, files UploadSet) (*ResponsesSubmittedResponse, error)
	SubmitWriting(ctx context.Context, identity auth.Identity, sectionID uint, req *SubmitWritingRequest) (*ResponsesSubmittedResponse, error)
}

type ReviewService interface {
	// Student views
	GetStudentSummaries(ctx context.Context, identity auth.Identity) ([]models.StudentSectionSummary, error)
	GetStudentReview(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID uint) (*models.StudentReviewView, error)

	// Reviewer views
	GetAdminSummaries(ctx context.Context, identity auth.Identity, sectionType models.SectionType) ([]models.AdminSectionSummary, error)
	GetAdminSectionDetail(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID uint) (*models.AdminSectionDetail, error)

	// GetTaskReviews is the per-student speaking/writing review list
	GetTaskReviews(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID, studentID uint) ([]models.TaskReview, error)
}

type FeedbackService interface {
	GetFeedbackTarget(ctx context.Context, identity auth.Identity, responseType models.ResponseType, responseID uint) (*models.FeedbackTargetView, error)
	SubmitFeedback(ctx context.Context, identity auth.Identity, responseType models.ResponseType, responseID uint, req *SubmitFeedbackRequest) (*models.ScoreView, error)
	SubmitBulkReviews(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID uint, req *SubmitTaskReviewsRequest) (*BulkReviewResponse, error)
}

type ExportService interface {
	ExportSectionResults(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID uint) (*ExportFile, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	// Core service getters
	Auth() AuthService
	Section() SectionService
	Grading() GradingService
	Response() ResponseService
	Review() ReviewService
	Feedback() FeedbackService
	Export() ExportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
