package user

import (
	"bitwise74/kidney-api/internal"
	"bitwise74/kidney-api/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func UserLogin(c *gin.Context, d *internal.Deps) {
	var data service.LoginInput
	if err := c.ShouldBindJSON(&data); err != nil {
		c.Error(errBadBody)
		return
	}

	s, err := d.Auth.Login(c.Request.Context(), data)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, s)
}
