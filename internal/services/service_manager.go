package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/events"
	"github.com/hezretaly/toefl/internal/metrics"
	"github.com/hezretaly/toefl/internal/repositories"
	"github.com/hezretaly/toefl/internal/storage"
	"github.com/hezretaly/toefl/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	// Logging configuration
	EnableDebugLogging bool
	LogLevel           slog.Level

	// Service-specific configurations
	Section  ServiceConfig
	Grading  ServiceConfig
	Response ServiceConfig
	Review   ServiceConfig
	Feedback ServiceConfig
	Export   ServiceConfig

	// Global settings
	DefaultTimeout time.Duration
}

type ServiceConfig struct {
	Enabled        bool
	EventsEnabled  bool
	MetricsEnabled bool
}

// ServiceDependencies are the collaborators shared by the services
type ServiceDependencies struct {
	Events    events.EventPublisher
	Storage   storage.StorageProvider
	Metrics   *metrics.Metrics
	Tokens    *auth.TokenIssuer
	Directory repositories.IdentityDirectory // nil when single sign-on is off
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	deps      ServiceDependencies
	config    ServiceManagerConfig

	// Service instances
	authService     AuthService
	sectionService  SectionService
	gradingService  GradingService
	responseService ResponseService
	reviewService   ReviewService
	feedbackService FeedbackService
	exportService   ExportService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, deps ServiceDependencies, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		deps:      deps,
		config:    config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, deps ServiceDependencies) ServiceManager {
	enabled := ServiceConfig{Enabled: true, EventsEnabled: true, MetricsEnabled: true}
	config := ServiceManagerConfig{
		LogLevel: slog.LevelInfo,

		Section:  ServiceConfig{Enabled: true},
		Grading:  enabled,
		Response: enabled,
		Review:   ServiceConfig{Enabled: true},
		Feedback: enabled,
		Export:   ServiceConfig{Enabled: true},

		DefaultTimeout: 30 * time.Second,
	}

	return NewServiceManager(db, repo, logger, validator, deps, config)
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	if err := sm.config.Validate(); err != nil {
		return err
	}
	if sm.deps.Tokens == nil {
		return fmt.Errorf("token issuer is required")
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.initializeServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) initializeServices() error {
	publisher := func(cfg ServiceConfig) events.EventPublisher {
		if cfg.EventsEnabled {
			return sm.deps.Events
		}
		return nil
	}
	collector := func(cfg ServiceConfig) *metrics.Metrics {
		if cfg.MetricsEnabled {
			return sm.deps.Metrics
		}
		return nil
	}

	sm.authService = NewAuthService(sm.repo, sm.db, sm.logger, sm.validator, sm.deps.Tokens, sm.deps.Directory)
	sm.logger.Info("Auth service initialized", "sso", sm.deps.Directory != nil)

	if sm.config.Section.Enabled {
		if sm.deps.Storage == nil {
			return fmt.Errorf("section service needs a storage provider")
		}
		sm.sectionService = NewSectionService(sm.repo, sm.db, sm.logger, sm.validator, sm.deps.Storage)
		sm.logger.Info("Section service initialized")
	}

	if sm.config.Grading.Enabled {
		sm.gradingService = NewGradingService(sm.db, sm.repo, sm.logger, sm.validator,
			publisher(sm.config.Grading), collector(sm.config.Grading))
		sm.logger.Info("Grading service initialized")
	}

	if sm.config.Response.Enabled {
		if sm.deps.Storage == nil {
			return fmt.Errorf("response service needs a storage provider")
		}
		sm.responseService = NewResponseService(sm.repo, sm.db, sm.logger, sm.validator, sm.deps.Storage,
			publisher(sm.config.Response), collector(sm.config.Response))
		sm.logger.Info("Response service initialized")
	}

	if sm.config.Review.Enabled {
		sm.reviewService = NewReviewService(sm.repo, sm.db, sm.logger)
		sm.logger.Info("Review service initialized")
	}

	if sm.config.Feedback.Enabled {
		sm.feedbackService = NewFeedbackService(sm.repo, sm.db, sm.logger, sm.validator,
			publisher(sm.config.Feedback), collector(sm.config.Feedback))
		sm.logger.Info("Feedback service initialized")
	}

	if sm.config.Export.Enabled {
		sm.exportService = NewExportService(sm.reviewService, sm.logger)
		sm.logger.Info("Export service initialized")
	}

	return nil
}

// Service getters
func (sm *serviceManager) Auth() AuthService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	return sm.authService
}

func (sm *serviceManager) Section() SectionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Section.Enabled && sm.sectionService != nil {
		return sm.sectionService
	}

	panic("section service not enabled or not initialized")
}

func (sm *serviceManager) Grading() GradingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Grading.Enabled && sm.gradingService != nil {
		return sm.gradingService
	}

	panic("grading service not enabled or not initialized")
}

func (sm *serviceManager) Response() ResponseService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Response.Enabled && sm.responseService != nil {
		return sm.responseService
	}

	panic("response service not enabled or not initialized")
}

func (sm *serviceManager) Review() ReviewService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Review.Enabled && sm.reviewService != nil {
		return sm.reviewService
	}

	panic("review service not enabled or not initialized")
}

func (sm *serviceManager) Feedback() FeedbackService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Feedback.Enabled && sm.feedbackService != nil {
		return sm.feedbackService
	}

	panic("feedback service not enabled or not initialized")
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Export.Enabled && sm.exportService != nil {
		return sm.exportService
	}

	panic("export service not enabled or not initialized")
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.deps.Events != nil {
		if err := sm.deps.Events.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}

// ===== UTILITY METHODS =====

// IsInitialized returns whether the service manager has been initialized
func (sm *serviceManager) IsInitialized() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.initialized
}

// WithTimeout creates a context with the default timeout
func (sm *serviceManager) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, sm.config.DefaultTimeout)
}

// ===== CONFIGURATION VALIDATION =====

// Validate validates the service manager configuration
func (config *ServiceManagerConfig) Validate() error {
	var errors []string

	if config.DefaultTimeout <= 0 {
		errors = append(errors, "default timeout must be positive")
	}

	if config.Export.Enabled && !config.Review.Enabled {
		errors = append(errors, "export: builds on the review service")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}
