package middleware

import (
	"context"
	"strings"

	"codearena/internal/gateway/service"
	pkgerrors "codearena/pkg/errors"
	"codearena/pkg/utils/contextkey"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Context keys set on the gin context for an authenticated caller.
const (
	UserIDKey   = "user_id"
	TeamNameKey = "team_name"
)

// AuthMiddleware resolves an optional bearer identity. Requests without a token pass
// through untouched; a present but invalid token is rejected.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}
		if !authService.Enabled() {
			response.AbortWithErrorCode(c, pkgerrors.TokenInvalid, "bearer tokens are not accepted")
			return
		}
		identity, err := authService.Authenticate(token)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		c.Set(UserIDKey, identity.UserID)
		if identity.TeamName != "" {
			c.Set(TeamNameKey, identity.TeamName)
		}
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, identity.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuthenticatedUser returns the identity set by AuthMiddleware, if any.
func AuthenticatedUser(c *gin.Context) (userID, teamName string, ok bool) {
	userID = c.GetString(UserIDKey)
	if userID == "" {
		return "", "", false
	}
	return userID, c.GetString(TeamNameKey), true
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
