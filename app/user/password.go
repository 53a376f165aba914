package user

import (
	"bitwise74/kidney-api/internal"
	"bitwise74/kidney-api/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type forgotBody struct {
	Email string `json:"email"`
}

type verifyBody struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func UserForgotPassword(c *gin.Context, d *internal.Deps) {
	var data forgotBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.Error(errBadBody)
		return
	}

	msg, err := d.Auth.RequestPasswordReset(c.Request.Context(), data.Email)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": msg,
	})
}

func UserVerifyOTP(c *gin.Context, d *internal.Deps) {
	var data verifyBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.Error(errBadBody)
		return
	}

	v, err := d.Auth.VerifyOneTimeCode(data.Email, data.OTP)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, v)
}

func UserResetPassword(c *gin.Context, d *internal.Deps) {
	var data service.ResetInput
	if err := c.ShouldBindJSON(&data); err != nil {
		c.Error(errBadBody)
		return
	}

	msg, err := d.Auth.ResetPassword(c.Request.Context(), data)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": msg,
	})
}
