package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hezretaly/toefl/internal/config"
	"github.com/hezretaly/toefl/internal/metrics"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/services"
	"github.com/hezretaly/toefl/internal/storage"
	"github.com/hezretaly/toefl/internal/utils"
)

type HandlerManager struct {
	authHandler       *AuthHandler
	sectionHandler    *SectionHandler
	submissionHandler *SubmissionHandler
	reviewHandler     *ReviewHandler
	feedbackHandler   *FeedbackHandler
	fileHandler       *FileHandler
	authMiddleware    *AuthMiddleware
	authLimiter       *IPRateLimiter
	serviceManager    services.ServiceManager
	metrics           *metrics.Metrics
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	provider storage.StorageProvider,
	cfg *config.Config,
	collector *metrics.Metrics,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		authHandler:       NewAuthHandler(serviceManager.Auth(), logger),
		sectionHandler:    NewSectionHandler(serviceManager.Section(), logger),
		submissionHandler: NewSubmissionHandler(serviceManager.Grading(), serviceManager.Response(), logger),
		reviewHandler:     NewReviewHandler(serviceManager.Review(), serviceManager.Feedback(), serviceManager.Export(), logger),
		feedbackHandler:   NewFeedbackHandler(serviceManager.Feedback(), logger),
		fileHandler:       NewFileHandler(provider, logger),
		authMiddleware:    NewAuthMiddleware(serviceManager.Auth(), logger),
		authLimiter:       NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		serviceManager:    serviceManager,
		metrics:           collector,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	reviewers := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)
	students := hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent)

	// Public auth routes, rate limited per client IP
	authRoutes := router.Group("/api/v1/auth")
	authRoutes.Use(hm.authLimiter.Middleware())
	{
		authRoutes.POST("/register", hm.authHandler.Register)
		authRoutes.POST("/login", hm.authHandler.Login)
		authRoutes.POST("/logout", hm.authHandler.Logout)
	}

	// Uploaded media
	router.GET("/files/*path", hm.fileHandler.ServeFile)

	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.Authenticate())
	{
		sections := v1.Group("/sections")
		{
			// View sections - All authenticated users
			sections.GET("/:type", hm.sectionHandler.ListSections)
			sections.GET("/:type/:id", hm.sectionHandler.GetSection)

			// Authoring - Teachers and Admins only
			sections.POST("/:type", reviewers, hm.sectionHandler.CreateSection)
			sections.PUT("/:type/:id", reviewers, hm.sectionHandler.UpdateSection)
			sections.DELETE("/:type/:id", reviewers, hm.sectionHandler.DeleteSection)

			// Submissions - Students only
			sections.POST("/:type/:id/submit", students, hm.submissionHandler.Submit)
			sections.GET("/:type/:id/score", students, hm.submissionHandler.GetScore)

			// Task reviews
			sections.GET("/:type/:id/reviews/:student_id", hm.reviewHandler.GetTaskReviews)
			sections.POST("/:type/:id/reviews", reviewers, hm.reviewHandler.SubmitBulkReviews)
		}

		// Student review
		review := v1.Group("/review")
		review.Use(students)
		{
			review.GET("/summaries", hm.reviewHandler.GetStudentSummaries)
			review.GET("/:type/:id", hm.reviewHandler.GetStudentReview)
		}

		// Admin review and feedback - Teachers and Admins only
		admin := v1.Group("/admin")
		admin.Use(reviewers)
		{
			admin.GET("/review/summaries", hm.reviewHandler.GetAdminSummaries)
			admin.GET("/review/:type/:id", hm.reviewHandler.GetAdminSectionDetail)
			admin.GET("/review/:type/:id/export", hm.reviewHandler.ExportSectionResults)

			admin.GET("/feedback/:type/:id", hm.feedbackHandler.GetFeedbackTarget)
			admin.POST("/feedback/:type/:id", hm.feedbackHandler.SubmitFeedback)
		}
	}

	if hm.metrics != nil {
		router.GET("/metrics", hm.metrics.PrometheusHandler())
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := hm.serviceManager.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "toefl",
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "toefl",
		})
	})
}
