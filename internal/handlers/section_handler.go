package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/services"
	"github.com/hezretaly/toefl/internal/storage"
	"github.com/hezretaly/toefl/internal/utils"
)

// sectionDataField is the multipart field holding the JSON section definition
const sectionDataField = "sectionData"

type SectionHandler struct {
	BaseHandler
	sectionService services.SectionService
}

func NewSectionHandler(sectionService services.SectionService, logger utils.Logger) *SectionHandler {
	return &SectionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sectionService: sectionService,
	}
}

// ListSections lists the sections of one type
// @Summary List sections
// @Tags sections
// @Produce json
// @Param type path string true "reading, listening, speaking or writing"
// @Success 200 {object} services.SectionListResponse
// @Router /sections/{type} [get]
func (h *SectionHandler) ListSections(c *gin.Context) {
	sectionType, ok := h.parseSectionType(c, c.Param("type"))
	if !ok {
		return
	}

	list, err := h.sectionService.List(c.Request.Context(), sectionType)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetSection returns a section with its full content tree, without answer keys
// @Summary Get section
// @Tags sections
// @Produce json
// @Param type path string true "Section type"
// @Param id path int true "Section ID"
// @Success 200 {object} models.Section
// @Failure 404 {object} ErrorResponse "Section not found"
// @Router /sections/{type}/{id} [get]
func (h *SectionHandler) GetSection(c *gin.Context) {
	sectionType, ok := h.parseSectionType(c, c.Param("type"))
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	section, err := h.sectionService.Get(c.Request.Context(), sectionType, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, section)
}

// CreateSection creates a section. Reading takes a JSON body; the other types
// take multipart form data with the definition in the sectionData field.
// @Summary Create section
// @Tags sections
// @Accept json,mpfd
// @Produce json
// @Param type path string true "Section type"
// @Success 201 {object} services.SectionCreatedResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 403 {object} ErrorResponse "Access denied"
// @Router /sections/{type} [post]
func (h *SectionHandler) CreateSection(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	sectionType, ok := h.parseSectionType(c, c.Param("type"))
	if !ok {
		return
	}

	h.LogRequest(c, "Creating section", "section_type", sectionType, "user_id", identity.UserID)

	ctx := c.Request.Context()
	var (
		created *services.SectionCreatedResponse
		err     error
	)

	if sectionType == models.SectionReading {
		var req services.CreateReadingSectionRequest
		if !h.bindJSON(c, &req) {
			return
		}
		created, err = h.sectionService.CreateReading(ctx, identity, &req)
	} else {
		files, closers, ok := h.readUploads(c)
		if !ok {
			return
		}
		defer closeAll(closers)

		switch sectionType {
		case models.SectionListening:
			var req services.CreateListeningSectionRequest
			if !h.bindSectionData(c, &req) {
				return
			}
			created, err = h.sectionService.CreateListening(ctx, identity, &req, files)
		case models.SectionSpeaking:
			var req services.CreateSpeakingSectionRequest
			if !h.bindSectionData(c, &req) {
				return
			}
			created, err = h.sectionService.CreateSpeaking(ctx, identity, &req, files)
		case models.SectionWriting:
			var req services.CreateWritingSectionRequest
			if !h.bindSectionData(c, &req) {
				return
			}
			created, err = h.sectionService.CreateWriting(ctx, identity, &req, files)
		}
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// UpdateSection renames a section
// @Summary Update section title
// @Tags sections
// @Accept json
// @Produce json
// @Param type path string true "Section type"
// @Param id path int true "Section ID"
// @Param request body services.UpdateSectionRequest true "New title"
// @Success 200 {object} models.Section
// @Router /sections/{type}/{id} [put]
func (h *SectionHandler) UpdateSection(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	sectionType, ok := h.parseSectionType(c, c.Param("type"))
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateSectionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	section, err := h.sectionService.UpdateTitle(c.Request.Context(), identity, sectionType, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, section)
}

// DeleteSection removes a section, its content, its submissions and its files
// @Summary Delete section
// @Tags sections
// @Param type path string true "Section type"
// @Param id path int true "Section ID"
// @Success 200 {object} SuccessResponse
// @Router /sections/{type}/{id} [delete]
func (h *SectionHandler) DeleteSection(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	sectionType, ok := h.parseSectionType(c, c.Param("type"))
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	if err := h.sectionService.Delete(c.Request.Context(), identity, sectionType, id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Section deleted"})
}

// ===== MULTIPART HELPERS =====

// readUploads parses the multipart form and opens the first file of every field
func (h *BaseHandler) readUploads(c *gin.Context) (services.UploadSet, []io.Closer, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid multipart form",
			Details: err.Error(),
		})
		return nil, nil, false
	}

	files := make(services.UploadSet, len(form.File))
	closers := make([]io.Closer, 0, len(form.File))
	for field, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		file, closer, err := storage.FromMultipart(headers[0])
		if err != nil {
			closeAll(closers)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid upload",
				Details: field,
			})
			return nil, nil, false
		}
		files[field] = file
		closers = append(closers, closer)
	}
	return files, closers, true
}

func (h *BaseHandler) bindSectionData(c *gin.Context, dst interface{}) bool {
	raw := c.PostForm(sectionDataField)
	if raw == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing " + sectionDataField,
		})
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + sectionDataField,
			Details: err.Error(),
		})
		return false
	}
	return true
}

func closeAll(closers []io.Closer) {
	for _, closer := range closers {
		_ = closer.Close()
	}
}
