package handler

import (
	"net/http"

	"royalty-admin/internal/middleware"
	"royalty-admin/internal/permission"
	"royalty-admin/internal/service"
	"royalty-admin/pkg/pagination"
	"royalty-admin/pkg/response"

	"github.com/gin-gonic/gin"
)

type EarningHandler struct {
	revenueService service.RevenueService
	auth           *middleware.Auth
}

func NewEarningHandler(revenueService service.RevenueService, auth *middleware.Auth) *EarningHandler {
	return &EarningHandler{revenueService: revenueService, auth: auth}
}

func (h *EarningHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := h.auth.RequirePermission(permission.EarningsRead)

	group := router.Group("/earnings")
	{
		group.POST("", h.auth.RequirePermission(permission.EarningsCreate), h.RecordEarning)
		group.GET("", read, h.ListEarnings)
		group.GET("/summary", read, h.Summary)
	}
}

func earningFilter(c *gin.Context) service.EarningFilter {
	return service.EarningFilter{
		LabelKey:  c.Query("label_key"),
		Currency:  c.Query("currency"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}
}

// RecordEarning stores a reported gross amount for an asset
// @Summary      Record earning
// @Tags         earnings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RecordEarningRequest  true  "Earning"
// @Success      201      {object}  response.Response{data=service.EarningResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/admin/earnings [post]
func (h *EarningHandler) RecordEarning(c *gin.Context) {
	var req service.RecordEarningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.revenueService.RecordEarning(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Message("Earning recorded", res))
}

// ListEarnings pages through recorded earnings
// @Summary      List earnings
// @Tags         earnings
// @Security     BearerAuth
// @Produce      json
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Items per page (default 20)"
// @Param        label_key   query     string  false  "Label key"
// @Param        currency    query     string  false  "ISO currency code"
// @Param        start_date  query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        end_date    query     string  false  "RFC3339 or YYYY-MM-DD"
// @Success      200         {object}  response.Response{data=[]service.EarningResponse,meta=pagination.Meta}
// @Router       /api/admin/earnings [get]
func (h *EarningHandler) ListEarnings(c *gin.Context) {
	p := pagination.Parse(c)
	res, total, err := h.revenueService.ListEarnings(c.Request.Context(), earningFilter(c), p.Offset, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(res, p.Meta(total)))
}

// Summary aggregates earnings per label and splits them
// @Summary      Earnings summary
// @Tags         earnings
// @Security     BearerAuth
// @Produce      json
// @Param        label_key   query     string  false  "Label key"
// @Param        currency    query     string  false  "ISO currency code"
// @Param        start_date  query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        end_date    query     string  false  "RFC3339 or YYYY-MM-DD"
// @Success      200         {object}  response.Response{data=service.EarningsSummary}
// @Failure      400         {object}  response.Response
// @Router       /api/admin/earnings/summary [get]
func (h *EarningHandler) Summary(c *gin.Context) {
	res, err := h.revenueService.Summary(c.Request.Context(), earningFilter(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}
