package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/hezretaly/toefl/internal/storage"
	"github.com/hezretaly/toefl/internal/utils"
)

// FileHandler serves stored media by key for either storage driver
type FileHandler struct {
	BaseHandler
	provider storage.StorageProvider
}

func NewFileHandler(provider storage.StorageProvider, logger utils.Logger) *FileHandler {
	return &FileHandler{
		BaseHandler: NewBaseHandler(logger),
		provider:    provider,
	}
}

// ServeFile streams a stored upload
// @Summary Get uploaded file
// @Tags files
// @Param path path string true "Storage key"
// @Success 200 {file} file
// @Failure 404 {object} ErrorResponse "File not found"
// @Router /files/{path} [get]
func (h *FileHandler) ServeFile(c *gin.Context) {
	key, err := storage.CleanKey(c.Param("path"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid file path"})
		return
	}

	reader, err := h.provider.Open(c.Request.Context(), key)
	switch {
	case errors.Is(err, storage.ErrFileNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "File not found"})
		return
	case errors.Is(err, storage.ErrInvalidKey):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid file path"})
		return
	case err != nil:
		h.handleServiceError(c, err)
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, reader, nil)
}
