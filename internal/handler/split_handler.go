package handler

import (
	"net/http"

	"royalty-admin/internal/middleware"
	"royalty-admin/internal/permission"
	"royalty-admin/internal/service"
	"royalty-admin/pkg/response"

	"github.com/gin-gonic/gin"
)

type SplitHandler struct {
	splitService service.SplitService
	auth         *middleware.Auth
}

func NewSplitHandler(splitService service.SplitService, auth *middleware.Auth) *SplitHandler {
	return &SplitHandler{splitService: splitService, auth: auth}
}

func (h *SplitHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := h.auth.RequirePermission(permission.SplitRead)

	group := router.Group("/split-config")
	{
		group.GET("", read, h.GetConfig)
		group.PUT("", h.auth.RequirePermission(permission.SplitUpdate), h.UpdateConfig)
		group.POST("/preview", read, h.Preview)
	}
}

// GetConfig returns the active split percentages
// @Summary      Get split config
// @Tags         splits
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.SplitConfigResponse}
// @Router       /api/admin/split-config [get]
func (h *SplitHandler) GetConfig(c *gin.Context) {
	cfg, err := h.splitService.GetConfig(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(cfg))
}

// UpdateConfig stores new split percentages
// @Summary      Update split config
// @Description  Totals are not enforced; inconsistent totals come back as warnings.
// @Tags         splits
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.UpdateSplitConfigRequest  true  "Percentages"
// @Success      200      {object}  response.Response{data=service.SplitConfigResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/admin/split-config [put]
func (h *SplitHandler) UpdateConfig(c *gin.Context) {
	var req service.UpdateSplitConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cfg, err := h.splitService.UpdateConfig(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Message("Split config updated", cfg))
}

// Preview runs the split calculator on a gross amount
// @Summary      Preview split
// @Tags         splits
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.PreviewSplitRequest  true  "Gross amount"
// @Success      200      {object}  response.Response{data=service.PreviewResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/admin/split-config/preview [post]
func (h *SplitHandler) Preview(c *gin.Context) {
	var req service.PreviewSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.splitService.Preview(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}
