package utils

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestLoggerMiddleware_LogsWithRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "req-1")
		c.Next()
	})
	router.Use(ContextLogger(logger))
	router.Use(LoggerMiddleware(logger))
	router.GET("/missing", func(c *gin.Context) {
		if FromContext(c.Request.Context(), nil) == nil {
			t.Error("request context should carry the logger")
		}
		c.Status(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not json: %v (%q)", err, buf.String())
	}

	tests := map[string]any{
		"level":      "WARN",
		"request_id": "req-1",
		"path":       "/missing",
		"status":     float64(http.StatusNotFound),
	}
	for key, want := range tests {
		if entry[key] != want {
			t.Errorf("%s = %v, want %v", key, entry[key], want)
		}
	}
}

func TestGetLogger_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := NewSlogLogger(slog.Default())

	if got := GetLogger(c, fallback); got != fallback {
		t.Error("GetLogger() should return the fallback when no logger was set")
	}
}

func TestLogOutput_Stdout(t *testing.T) {
	if LogOutput("") == nil {
		t.Error("LogOutput(\"\") returned nil")
	}
}
