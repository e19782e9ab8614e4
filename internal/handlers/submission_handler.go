package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/services"
	"github.com/hezretaly/toefl/internal/utils"
)

type SubmissionHandler struct {
	BaseHandler
	gradingService  services.GradingService
	responseService services.ResponseService
}

func NewSubmissionHandler(gradingService services.GradingService, responseService services.ResponseService, logger utils.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler:     NewBaseHandler(logger),
		gradingService:  gradingService,
		responseService: responseService,
	}
}

// Submit stores a student's work for a section. Reading and listening take
// {"answers": {containerID: {questionID: payload}}} and are scored at once,
// speaking takes one recording per task as multipart form data and writing
// takes {"answers": {"task1": "...", "task2": "..."}}.
// @Summary Submit section
// @Tags submissions
// @Accept json,mpfd
// @Produce json
// @Param type path string true "Section type"
// @Param id path int true "Section ID"
// @Success 200 {object} services.SectionScoreResponse "Choice sections"
// @Success 201 {object} services.ResponsesSubmittedResponse "Speaking and writing"
// @Failure 400 {object} ErrorResponse "Invalid answers"
// @Failure 422 {object} ErrorResponse "Answer outside the section"
// @Router /sections/{type}/{id}/submit [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	sectionType, ok := h.parseSectionType(c, c.Param("type"))
	if !ok {
		return
	}
	sectionID := h.parseIDParam(c, "id")
	if sectionID == 0 {
		return
	}

	h.LogRequest(c, "Submitting section", "section_type", sectionType, "section_id", sectionID, "user_id", identity.UserID)
	ctx := c.Request.Context()

	switch sectionType {
	case models.SectionReading, models.SectionListening:
		var req services.SubmitAnswersRequest
		if !h.bindJSON(c, &req) {
			return
		}
		score, err := h.gradingService.SubmitChoiceAnswers(ctx, identity, sectionType, sectionID, &req)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, score)

	case models.SectionSpeaking:
		files, closers, ok := h.readUploads(c)
		if !ok {
			return
		}
		defer closeAll(closers)

		result, err := h.responseService.SubmitSpeaking(ctx, identity, sectionID, files)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)

	case models.SectionWriting:
		var req services.SubmitWritingRequest
		if !h.bindJSON(c, &req) {
			return
		}
		result, err := h.responseService.SubmitWriting(ctx, identity, sectionID, &req)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

// GetScore recomputes the caller's score on a reading or listening section
// @Summary Get section score
// @Tags submissions
// @Produce json
// @Param type path string true "reading or listening"
// @Param id path int true "Section ID"
// @Success 200 {object} services.SectionScoreResponse
// @Router /sections/{type}/{id}/score [get]
func (h *SubmissionHandler) GetScore(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	sectionType, ok := h.parseSectionType(c, c.Param("type"))
	if !ok {
		return
	}
	sectionID := h.parseIDParam(c, "id")
	if sectionID == 0 {
		return
	}

	score, err := h.gradingService.GetSectionScore(c.Request.Context(), identity, sectionType, sectionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, score)
}
