// Package predict contains the image classification endpoint
package predict

import (
	"bitwise74/kidney-api/internal"
	"bitwise74/kidney-api/internal/apperr"
	"bitwise74/kidney-api/pkg/validators"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

func Predict(c *gin.Context, d *internal.Deps) {
	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			// Rewritten by the body size limiter
			c.Error(err)
			return
		}

		c.Error(apperr.Validation(validators.ErrNoFile.Error()))
		return
	}

	f, err := validators.ImageValidator(fh, viper.GetInt64("upload.max_bytes"), viper.GetStringSlice("upload.allowed_types"))
	if err != nil {
		switch {
		case errors.Is(err, validators.ErrFileTooLarge),
			errors.Is(err, validators.ErrFileTypeUnsupported),
			errors.Is(err, validators.ErrFileNameTooLong),
			errors.Is(err, validators.ErrNoFile):
			c.Error(apperr.Validation(err.Error()))
		default:
			c.Error(apperr.Prediction("Failed to read upload", err).WithStatus(http.StatusBadRequest))
		}
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.Error(apperr.Prediction("Failed to read upload", err).WithStatus(http.StatusBadRequest))
		return
	}

	res, err := d.Predictions.Run(c.Request.Context(), fh.Filename, data)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, res)
}
