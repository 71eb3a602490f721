package middleware

import (
	"context"
	"strings"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/utils"

	"github.com/gin-gonic/gin"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractTokenFromHeader(c.GetHeader("Authorization"))

		// EventSource clients cannot set headers
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		if tokenString == "" {
			utils.RespondWithAppError(c, apperr.ErrUnauthenticated)
			c.Abort()
			return
		}

		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()
		userID, err := a.verifier.Verify(ctx, tokenString)
		if err != nil {
			utils.RespondWithAppError(c, err)
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// ExtractTokenFromHeader returns the token of a "Bearer <token>" header value.
func ExtractTokenFromHeader(authHeader string) string {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// GetUserID returns the authenticated user id set by RequireAuth.
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}
