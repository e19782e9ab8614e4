package repositories

import "context"

// Repository groups every repository of the exam platform
type Repository interface {
	// Accounts
	User() UserRepository

	// Content
	Section() SectionRepository
	Question() QuestionRepository

	// Submissions
	Answer() AnswerRepository
	Response() ResponseRepository

	// Grading
	Score() ScoreRepository
	Review() ReviewRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
