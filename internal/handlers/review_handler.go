package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hezretaly/toefl/internal/services"
	"github.com/hezretaly/toefl/internal/utils"
)

type ReviewHandler struct {
	BaseHandler
	reviewService   services.ReviewService
	feedbackService services.FeedbackService
	exportService   services.ExportService
}

func NewReviewHandler(
	reviewService services.ReviewService,
	feedbackService services.FeedbackService,
	exportService services.ExportService,
	logger utils.Logger,
) *ReviewHandler {
	return &ReviewHandler{
		BaseHandler:     NewBaseHandler(logger),
		reviewService:   reviewService,
		feedbackService: feedbackService,
		exportService:   exportService,
	}
}

// ===== STUDENT REVIEW =====

// GetStudentSummaries lists the sections the caller has submitted work for
// @Summary Student review summaries
// @Tags review
// @Produce json
// @Success 200 {array} models.StudentSectionSummary
// @Router /review/summaries [get]
func (h *ReviewHandler) GetStudentSummaries(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}

	summaries, err := h.reviewService.GetStudentSummaries(c.Request.Context(), identity)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summaries)
}

// GetStudentReview returns the caller's answers with correct answers, scores and feedback
// @Summary Student section review
// @Tags review
// @Produce json
// @Param type path string true "Section type"
// @Param id path int true "Section ID"
// @Success 200 {object} models.StudentReviewView
// @Router /review/{type}/{id} [get]
func (h *ReviewHandler) GetStudentReview(c *gin.Context) {
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

	view, err := h.reviewService.GetStudentReview(c.Request.Context(), identity, sectionType, sectionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ===== ADMIN REVIEW =====

// GetAdminSummaries lists sections of a type with the number of students who submitted
// @Summary Admin review summaries
// @Tags admin-review
// @Produce json
// @Param type query string true "Section type"
// @Success 200 {array} models.AdminSectionSummary
// @Router /admin/review/summaries [get]
func (h *ReviewHandler) GetAdminSummaries(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	sectionType, ok := h.parseSectionType(c, c.Query("type"))
	if !ok {
		return
	}

	summaries, err := h.reviewService.GetAdminSummaries(c.Request.Context(), identity, sectionType)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summaries)
}

// GetAdminSectionDetail returns every submission of a section grouped by student
// @Summary Admin section detail
// @Tags admin-review
// @Produce json
// @Param type path string true "Section type"
// @Param id path int true "Section ID"
// @Success 200 {object} models.AdminSectionDetail
// @Router /admin/review/{type}/{id} [get]
func (h *ReviewHandler) GetAdminSectionDetail(c *gin.Context) {
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

	detail, err := h.reviewService.GetAdminSectionDetail(c.Request.Context(), identity, sectionType, sectionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// ExportSectionResults streams the section results as an xlsx workbook
// @Summary Export section results
// @Tags admin-review
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param type path string true "Section type"
// @Param id path int true "Section ID"
// @Success 200 {file} file
// @Router /admin/review/{type}/{id}/export [get]
func (h *ReviewHandler) ExportSectionResults(c *gin.Context) {
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

	h.LogRequest(c, "Exporting section results", "section_type", sectionType, "section_id", sectionID)

	file, err := h.exportService.ExportSectionResults(c.Request.Context(), identity, sectionType, sectionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// ===== TASK REVIEWS =====

// GetTaskReviews lists speaking or writing tasks with one student's responses and scores.
// Students always get their own responses.
// @Summary Task reviews
// @Tags review
// @Produce json
// @Param type path string true "speaking or writing"
// @Param id path int true "Section ID"
// @Param student_id path int true "Student ID"
// @Success 200 {array} models.TaskReview
// @Router /sections/{type}/{id}/reviews/{student_id} [get]
func (h *ReviewHandler) GetTaskReviews(c *gin.Context) {
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
	studentID := h.parseIDParam(c, "student_id")
	if studentID == 0 {
		return
	}

	tasks, err := h.reviewService.GetTaskReviews(c.Request.Context(), identity, sectionType, sectionID, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

// SubmitBulkReviews scores several task responses of a section at once
// @Summary Submit task reviews
// @Tags review
// @Accept json
// @Produce json
// @Param type path string true "speaking or writing"
// @Param id path int true "Section ID"
// @Param request body services.SubmitTaskReviewsRequest true "Reviews"
// @Success 201 {object} services.BulkReviewResponse
// @Router /sections/{type}/{id}/reviews [post]
func (h *ReviewHandler) SubmitBulkReviews(c *gin.Context) {
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

	var req services.SubmitTaskReviewsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.feedbackService.SubmitBulkReviews(c.Request.Context(), identity, sectionType, sectionID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}
