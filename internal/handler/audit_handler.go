package handler

import (
	"net/http"

	"royalty-admin/internal/middleware"
	"royalty-admin/internal/permission"
	"royalty-admin/internal/repository"
	"royalty-admin/internal/service"
	"royalty-admin/pkg/pagination"
	"royalty-admin/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	auth         *middleware.Auth
}

func NewAuditHandler(auditService service.AuditService, auth *middleware.Auth) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/audit-logs", h.auth.RequirePermission(permission.AuditRead), h.GetAuditLogs)
}

// GetAuditLogs returns audit records newest first
// @Summary      Get audit logs
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Param        action     query     string  false  "Action, e.g. RESET_ROLE_DEFAULTS"
// @Param        entity_id  query     string  false  "Entity ID"
// @Success      200        {object}  response.Response{data=[]service.AuditLogResponse,meta=pagination.Meta}
// @Router       /api/admin/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)
	filter := repository.AuditFilter{Action: c.Query("action"), EntityID: c.Query("entity_id")}

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), filter, p.Offset, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(logs, p.Meta(total)))
}
