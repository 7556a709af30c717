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

type UserHandler struct {
	userService service.UserService
	auth        *middleware.Auth
}

func NewUserHandler(userService service.UserService, auth *middleware.Auth) *UserHandler {
	return &UserHandler{userService: userService, auth: auth}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := h.auth.RequirePermission(permission.UserRead)
	update := h.auth.RequirePermission(permission.UserUpdate)

	users := router.Group("/users")
	{
		users.GET("/list", read, h.ListUsers)
		users.POST("/create", update, h.CreateUser)
		users.GET("/:id", read, h.GetUser)
		users.POST("/:id/update-role", update, h.UpdateRole)
		users.POST("/:id/update-status", update, h.UpdateStatus)
	}
}

// ListUsers returns users filtered by role and status
// @Summary      List users
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Param        role    query     string  false  "Role name"
// @Param        status  query     string  false  "active, pending, suspended or inactive"
// @Success      200     {object}  response.Response{data=[]service.UserResponse,meta=pagination.Meta}
// @Router       /api/admin/users/list [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	p := pagination.Parse(c)
	filter := repository.UserFilter{Role: c.Query("role"), Status: c.Query("status")}

	users, total, err := h.userService.ListUsers(c.Request.Context(), filter, p.Offset, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(users, p.Meta(total)))
}

// CreateUser creates an account with a hashed password
// @Summary      Create user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateUserRequest  true  "Create User Payload"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/admin/users/create [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Message("User created", user))
}

// GetUser returns a single user
// @Summary      Get user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/admin/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(user))
}

// UpdateRole moves a user to another existing role
// @Summary      Update user role
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "User ID"
// @Param        payload  body      service.UpdateUserRoleRequest  true  "Role"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/admin/users/{id}/update-role [post]
func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req service.UpdateUserRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.userService.UpdateRole(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Message("User role updated", user))
}

// UpdateStatus activates or suspends a user
// @Summary      Update user status
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "User ID"
// @Param        payload  body      service.UpdateUserStatusRequest  true  "Status"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/admin/users/{id}/update-status [post]
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.userService.UpdateStatus(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Message("User status updated", user))
}
