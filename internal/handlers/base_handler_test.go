package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/hezretaly/toefl/internal/services"
	"github.com/hezretaly/toefl/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation errors", services.NewValidationError("title", "required", ""), http.StatusBadRequest},
		{"wrapped validation errors", fmt.Errorf("create: %w", services.NewValidationError("title", "required", "")), http.StatusBadRequest},
		{"selection", &services.SelectionError{QuestionID: 1, Token: "z", Reason: "unknown letter"}, http.StatusBadRequest},
		{"scope", services.NewScopeError("question", 3, "section", 1), http.StatusUnprocessableEntity},
		{"not found", services.NewNotFoundError("section", 9), http.StatusNotFound},
		{"conflict", services.ErrUserExists, http.StatusConflict},
		{"unauthorized", services.ErrInvalidCredentials, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("create section: %w", services.ErrForbidden), http.StatusForbidden},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError},
	}

	h := NewBaseHandler(discardLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			h.handleServiceError(c, tt.err)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestParseIDParam(t *testing.T) {
	tests := []struct {
		value string
		want  uint
		code  int
	}{
		{"42", 42, http.StatusOK},
		{"0", 0, http.StatusBadRequest},
		{"-1", 0, http.StatusBadRequest},
		{"abc", 0, http.StatusBadRequest},
	}

	h := NewBaseHandler(discardLogger())
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: tt.value}}

		got := h.parseIDParam(c, "id")
		if got != tt.want {
			t.Errorf("parseIDParam(%q) = %d, want %d", tt.value, got, tt.want)
		}
		if got == 0 && w.Code != tt.code {
			t.Errorf("parseIDParam(%q) status = %d, want %d", tt.value, w.Code, tt.code)
		}
	}
}
