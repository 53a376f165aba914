package middleware

import (
	"bitwise74/kidney-api/internal/apperr"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserEmailKey is the context key holding the email of the authenticated user
const UserEmailKey = "userEmail"

// TokenVerifier resolves a session token to the email it was issued for
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// NewJWTMiddleware requires an "Authorization: Bearer <token>" header
// holding a valid session token
func NewJWTMiddleware(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Error(apperr.Auth("Access token required"))
			c.Abort()
			return
		}

		email, err := v.VerifyToken(token)
		if err != nil {
			zap.L().Debug("Rejected session token",
				zap.Error(err),
				zap.String("request_id", c.GetString(RequestIDKey)))

			c.Error(apperr.Auth("Invalid token"))
			c.Abort()
			return
		}

		c.Set(UserEmailKey, email)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}
