package handler

import (
	"log/slog"

	"royalty-admin/internal/apperr"
	"royalty-admin/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeError maps an error kind onto its HTTP status. Internal causes are
// logged and never sent to the client.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	if status >= 500 {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, response.Error(apperr.PublicMessage(err)))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(400, response.Error("Invalid request payload: "+err.Error()))
}
