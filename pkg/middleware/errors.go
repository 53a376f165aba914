package middleware

import (
	"bitwise74/kidney-api/internal/apperr"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorRenderer turns the last error attached with c.Error into a
// {"detail": ...} response. Handlers never write error bodies themselves.
func ErrorRenderer() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		status := apperr.Status(last.Err)

		if status >= http.StatusInternalServerError {
			zap.L().Error("Request failed",
				zap.Error(last.Err),
				zap.String("request_id", c.GetString(RequestIDKey)),
				zap.String("path", c.FullPath()))
		} else {
			zap.L().Debug("Request rejected",
				zap.Error(last.Err),
				zap.Int("status", status),
				zap.String("request_id", c.GetString(RequestIDKey)))
		}

		c.JSON(status, gin.H{
			"detail": apperr.Detail(last.Err),
		})
	}
}

// NoRoute answers unknown paths and known paths requested with the wrong
// method
func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"detail": "Endpoint not found",
	})
}
