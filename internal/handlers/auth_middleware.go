package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/services"
	"github.com/hezretaly/toefl/internal/utils"
)

// AuthMiddleware resolves bearer tokens through the auth service, which
// accepts local tokens and, when configured, Casdoor tokens.
type AuthMiddleware struct {
	authService services.AuthService
	logger      utils.Logger
}

func NewAuthMiddleware(authService services.AuthService, logger utils.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		logger:      logger,
	}
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller identity in the request context
func (am *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "authorization header missing",
			})
			return
		}

		// Extract token from "Bearer <token>" format
		tokenParts := strings.Fields(authHeader)
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "invalid authorization header format",
			})
			return
		}

		identity, err := am.authService.Authenticate(c.Request.Context(), tokenParts[1])
		if err != nil {
			utils.GetLogger(c, am.logger).Warn("Authentication failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "invalid or expired token",
			})
			return
		}

		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), identity))
		c.Set("user_id", identity.UserID)
		c.Set("user_role", identity.Role)
		c.Next()
	}
}

// RequireRoleMiddleware checks if user has required role. Admins pass every check.
func (am *AuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.FromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "user not authenticated",
			})
			return
		}

		if !identity.HasRole(requiredRoles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles),
			})
			return
		}

		c.Next()
	}
}
