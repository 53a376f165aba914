// Package user contains the account endpoints
package user

import (
	"bitwise74/kidney-api/internal"
	"bitwise74/kidney-api/internal/apperr"
	"bitwise74/kidney-api/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

var errBadBody = apperr.Validation("Invalid request body")

func UserRegister(c *gin.Context, d *internal.Deps) {
	var data service.RegisterInput
	if err := c.ShouldBindJSON(&data); err != nil {
		c.Error(errBadBody)
		return
	}

	s, err := d.Auth.Register(c.Request.Context(), data)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, s)
}
