package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/services"
	"github.com/hezretaly/toefl/internal/utils"
)

type FeedbackHandler struct {
	BaseHandler
	feedbackService services.FeedbackService
}

func NewFeedbackHandler(feedbackService services.FeedbackService, logger utils.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		BaseHandler:     NewBaseHandler(logger),
		feedbackService: feedbackService,
	}
}

func (h *FeedbackHandler) parseResponseType(c *gin.Context) (models.ResponseType, bool) {
	responseType := models.ResponseType(c.Param("type"))
	if !responseType.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid response type",
			Details: c.Param("type"),
		})
		return "", false
	}
	return responseType, true
}

// GetFeedbackTarget returns a response with its question or task and the current score
// @Summary Get feedback target
// @Tags feedback
// @Produce json
// @Param type path string true "reading, listening, speaking or writing"
// @Param id path int true "Response ID"
// @Success 200 {object} models.FeedbackTargetView
// @Failure 422 {object} ErrorResponse "Response belongs to another section type"
// @Router /admin/feedback/{type}/{id} [get]
func (h *FeedbackHandler) GetFeedbackTarget(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	responseType, ok := h.parseResponseType(c)
	if !ok {
		return
	}
	responseID := h.parseIDParam(c, "id")
	if responseID == 0 {
		return
	}

	view, err := h.feedbackService.GetFeedbackTarget(c.Request.Context(), identity, responseType, responseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitFeedback creates or updates the score and feedback of a response
// @Summary Submit feedback
// @Tags feedback
// @Accept json
// @Produce json
// @Param type path string true "Response type"
// @Param id path int true "Response ID"
// @Param request body services.SubmitFeedbackRequest true "Score and feedback"
// @Success 200 {object} models.ScoreView
// @Failure 400 {object} ErrorResponse "Score out of range"
// @Router /admin/feedback/{type}/{id} [post]
func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	responseType, ok := h.parseResponseType(c)
	if !ok {
		return
	}
	responseID := h.parseIDParam(c, "id")
	if responseID == 0 {
		return
	}

	var req services.SubmitFeedbackRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Submitting feedback", "response_type", responseType, "response_id", responseID, "scorer_id", identity.UserID)

	view, err := h.feedbackService.SubmitFeedback(c.Request.Context(), identity, responseType, responseID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
