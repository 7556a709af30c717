package handler

import (
	"net/http"

	"royalty-admin/internal/middleware"
	"royalty-admin/internal/service"
	"royalty-admin/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
	auth        *middleware.Auth
	limiter     *middleware.RateLimiter
}

func NewAuthHandler(authService service.AuthService, auth *middleware.Auth, limiter *middleware.RateLimiter) *AuthHandler {
	return &AuthHandler{authService: authService, auth: auth, limiter: limiter}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/auth")
	if h.limiter != nil {
		group.POST("/login", h.limiter.Limit(), h.Login)
	} else {
		group.POST("/login", h.Login)
	}
	group.GET("/me", h.auth.Authenticate(), h.Me)
}

// Login authenticates by email and password
// @Summary      Login
// @Description  Authenticates a user by email and password, returning a bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}

// Me returns the caller and their effective permissions
// @Summary      Current user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.MeResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	res, err := h.authService.Me(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}
