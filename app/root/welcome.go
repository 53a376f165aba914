package root

import (
	"bitwise74/kidney-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const WelcomeMessage = "Welcome to the Kidney Stone Predictor API!"

// LogRequest notes a greeting, whether it is served fresh or from cache
func LogRequest(c *gin.Context) {
	zap.L().Info("Request received",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString(middleware.RequestIDKey)))
}

func Welcome(c *gin.Context) {
	LogRequest(c)

	c.JSON(http.StatusOK, gin.H{
		"message": WelcomeMessage,
	})
}
