package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/services"
	"github.com/hezretaly/toefl/internal/utils"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps messages that carry no resource
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs with the request scoped logger
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

// identity returns the caller put in the request context by the auth middleware
func (h *BaseHandler) identity(c *gin.Context) (auth.Identity, bool) {
	identity, ok := auth.FromContext(c.Request.Context())
	if !ok || identity.UserID == 0 {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return auth.Identity{}, false
	}
	return identity, true
}

// parseIDParam writes a 400 and returns 0 when the parameter is not a positive id
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name,
			Details: c.Param(name),
		})
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) parseSectionType(c *gin.Context, value string) (models.SectionType, bool) {
	sectionType := models.SectionType(value)
	if !sectionType.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid section type",
			Details: value,
		})
		return "", false
	}
	return sectionType, true
}

func (h *BaseHandler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	return true
}

// handleServiceError maps service errors to status codes. Internal errors are
// logged in full and answered with a generic message.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrs services.ValidationErrors
	var selectionErr *services.SelectionError

	switch {
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Details: validationErrs})
	case errors.As(err, &selectionErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid selection", Details: selectionErr.Error()})
	case errors.Is(err, services.ErrValidationFailed), errors.Is(err, services.ErrInvalidSelection):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request", Details: err.Error()})
	case errors.Is(err, services.ErrScopeMismatch):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: "Scope mismatch", Details: err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Resource not found", Details: err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Conflict", Details: err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Unauthorized", Details: err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Access denied", Details: err.Error()})
	default:
		utils.GetLogger(c, h.logger).Error("Internal server error",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}
