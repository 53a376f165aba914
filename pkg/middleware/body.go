package middleware

import (
	"bitwise74/kidney-api/internal/apperr"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// BodySizeLimiter caps the request body at maxBytes. Oversized requests
// are answered with a validation error carrying detail.
func BodySizeLimiter(maxBytes int64, detail string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Fast reject for legit requests
		if c.Request.ContentLength > maxBytes {
			c.Error(apperr.Validation(detail))
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()

		if last := c.Errors.Last(); last != nil && tooLarge(last.Err) {
			c.Error(apperr.Validation(detail))
		}
	}
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}

	return strings.Contains(err.Error(), "http: request body too large")
}
