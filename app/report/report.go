// Package report contains the endpoints working on the reports of the
// authenticated user
package report

import (
	"bitwise74/kidney-api/internal"
	"bitwise74/kidney-api/internal/apperr"
	"bitwise74/kidney-api/internal/service"
	"bitwise74/kidney-api/pkg/middleware"
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func ReportList(c *gin.Context, d *internal.Deps) {
	list, err := d.Reports.List(c.Request.Context(), c.GetString(middleware.UserEmailKey))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func ReportAdd(c *gin.Context, d *internal.Deps) {
	var data service.NewReport
	if err := c.ShouldBindJSON(&data); err != nil {
		c.Error(apperr.Validation("Invalid request body"))
		return
	}

	id, err := d.Reports.Add(c.Request.Context(), c.GetString(middleware.UserEmailKey), data)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": service.MsgReportAdded,
		"id":      id,
	})
}

func ReportDelete(c *gin.Context, d *internal.Deps) {
	err := d.Reports.Remove(c.Request.Context(), c.GetString(middleware.UserEmailKey), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": service.MsgReportDeleted,
	})
}

func ReportExport(c *gin.Context, d *internal.Deps) {
	id := c.Param("id")

	// Buffered so a failure can still be answered with a JSON error
	var buf bytes.Buffer
	if err := d.Reports.Export(c.Request.Context(), c.GetString(middleware.UserEmailKey), id, &buf); err != nil {
		c.Error(err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="report-%s.zip"`, id))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}
