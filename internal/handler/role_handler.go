package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"royalty-admin/internal/middleware"
	"royalty-admin/internal/permission"
	"royalty-admin/internal/service"
	"royalty-admin/pkg/response"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	roleService service.RoleService
	auth        *middleware.Auth
}

func NewRoleHandler(roleService service.RoleService, auth *middleware.Auth) *RoleHandler {
	return &RoleHandler{roleService: roleService, auth: auth}
}

// ResetResponse is the body of a successful reset-default call.
type ResetResponse struct {
	Success            bool     `json:"success"`
	Message            string   `json:"message"`
	PermissionsSet     int      `json:"permissions_set"`
	MissingPermissions []string `json:"missing_permissions"`
	Version            int      `json:"version"`
}

// RegisterRoutes expects an authenticated /api/admin group.
func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := h.auth.RequirePermission(permission.RoleRead)
	manage := h.auth.RequirePermission(permission.RoleManage)

	roles := router.Group("/roles")
	{
		roles.GET("/list", read, h.ListRoles)
		roles.POST("/create", manage, h.CreateRole)
		roles.GET("/:roleId", read, h.GetRole)
		roles.PUT("/:roleId", manage, h.UpdateRole)
		roles.DELETE("/:roleId/delete", manage, h.DeleteRole)
		roles.POST("/:roleId/reset-default", manage, h.ResetToDefault)
		roles.GET("/:roleId/permissions", read, h.ListRolePermissions)
		roles.GET("/:roleId/permissions/:permissionId", read, h.CheckPermission)
		roles.POST("/:roleId/permissions/:permissionId", manage, h.GrantPermission)
		roles.DELETE("/:roleId/permissions/:permissionId", manage, h.RevokePermission)
	}

	router.GET("/permissions/list", read, h.ListPermissions)
}

// ListRoles returns all roles with grant counts
// @Summary      List roles
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.RoleResponse}
// @Failure      403  {object}  response.Response
// @Router       /api/admin/roles/list [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.ListRoles(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(roles))
}

// GetRole returns a single role by ID
// @Summary      Get role
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        roleId  path      string  true  "Role ID"
// @Success      200     {object}  response.Response{data=service.RoleResponse}
// @Failure      404     {object}  response.Response
// @Router       /api/admin/roles/{roleId} [get]
func (h *RoleHandler) GetRole(c *gin.Context) {
	role, err := h.roleService.GetRole(c.Request.Context(), c.Param("roleId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(role))
}

// CreateRole creates a custom role, optionally with initial grants
// @Summary      Create role
// @Description  The name is normalized to a lowercase slug. System role names are reserved.
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRoleRequest  true  "Role"
// @Success      201      {object}  response.Response{data=service.RoleResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/admin/roles/create [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req service.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role, err := h.roleService.CreateRole(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Message("Role created", role))
}

// UpdateRole renames or re-describes a role
// @Summary      Update role
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        roleId   path      string                     true  "Role ID"
// @Param        payload  body      service.UpdateRoleRequest  true  "Changes"
// @Success      200      {object}  response.Response{data=service.RoleResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/admin/roles/{roleId} [put]
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	var req service.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role, err := h.roleService.UpdateRole(c.Request.Context(), middleware.ActorFrom(c), c.Param("roleId"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Message("Role updated", role))
}

// DeleteRole deletes a custom role and its grants
// @Summary      Delete role
// @Description  Users holding the role must be moved with reassign_to.
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        roleId       path      string  true   "Role ID"
// @Param        reassign_to  query     string  false  "Role name that current holders move to"
// @Success      200          {object}  response.Response{data=service.DeleteRoleResult}
// @Failure      400          {object}  response.Response
// @Failure      409          {object}  response.Response
// @Router       /api/admin/roles/{roleId}/delete [delete]
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	res, err := h.roleService.DeleteRole(c.Request.Context(), middleware.ActorFrom(c), c.Param("roleId"), c.Query("reassign_to"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Message("Role deleted successfully", res))
}

// ResetToDefault replaces a system role's grants with its default set
// @Summary      Reset role to defaults
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        roleId  path      string  true  "Role ID"
// @Success      200     {object}  ResetResponse
// @Failure      400     {object}  response.Response
// @Failure      403     {object}  response.Response
// @Failure      404     {object}  response.Response
// @Router       /api/admin/roles/{roleId}/reset-default [post]
func (h *RoleHandler) ResetToDefault(c *gin.Context) {
	res, err := h.roleService.ResetToDefault(c.Request.Context(), middleware.ActorFrom(c), c.Param("roleId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ResetResponse{
		Success:            true,
		Message:            "Role '" + res.RoleName + "' reset to default permissions",
		PermissionsSet:     res.PermissionsSet,
		MissingPermissions: res.MissingPermissions,
		Version:            res.Version,
	})
}

// ListRolePermissions returns the permissions granted to a role
// @Summary      List role permissions
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        roleId  path      string  true  "Role ID"
// @Success      200     {object}  response.Response{data=service.RolePermissionsResponse}
// @Failure      404     {object}  response.Response
// @Router       /api/admin/roles/{roleId}/permissions [get]
func (h *RoleHandler) ListRolePermissions(c *gin.Context) {
	res, err := h.roleService.ListRolePermissions(c.Request.Context(), c.Param("roleId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}

// CheckPermission reports whether a role holds a permission
// @Summary      Check role permission
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        roleId        path      string  true  "Role ID"
// @Param        permissionId  path      string  true  "Permission ID"
// @Success      200           {object}  response.Response{data=service.CheckPermissionResponse}
// @Failure      404           {object}  response.Response
// @Router       /api/admin/roles/{roleId}/permissions/{permissionId} [get]
func (h *RoleHandler) CheckPermission(c *gin.Context) {
	res, err := h.roleService.CheckPermission(c.Request.Context(), c.Param("roleId"), c.Param("permissionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}

// GrantPermission adds a permission to a role. Granting twice is a no-op.
// @Summary      Grant permission
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        roleId        path      string                            true   "Role ID"
// @Param        permissionId  path      string                            true   "Permission ID"
// @Param        payload       body      service.TogglePermissionRequest  false  "Optimistic version"
// @Success      200           {object}  response.Response{data=service.ToggleResult}
// @Failure      404           {object}  response.Response
// @Failure      409           {object}  response.Response
// @Router       /api/admin/roles/{roleId}/permissions/{permissionId} [post]
func (h *RoleHandler) GrantPermission(c *gin.Context) {
	h.toggle(c, true)
}

// RevokePermission removes a permission from a role. Revoking twice is a no-op.
// @Summary      Revoke permission
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        roleId        path      string                            true   "Role ID"
// @Param        permissionId  path      string                            true   "Permission ID"
// @Param        payload       body      service.TogglePermissionRequest  false  "Optimistic version"
// @Success      200           {object}  response.Response{data=service.ToggleResult}
// @Failure      404           {object}  response.Response
// @Failure      409           {object}  response.Response
// @Router       /api/admin/roles/{roleId}/permissions/{permissionId} [delete]
func (h *RoleHandler) RevokePermission(c *gin.Context) {
	h.toggle(c, false)
}

func (h *RoleHandler) toggle(c *gin.Context, grant bool) {
	expected, err := expectedVersion(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	var res *service.ToggleResult
	if grant {
		res, err = h.roleService.GrantPermission(c.Request.Context(), middleware.ActorFrom(c), c.Param("roleId"), c.Param("permissionId"), expected)
	} else {
		res, err = h.roleService.RevokePermission(c.Request.Context(), middleware.ActorFrom(c), c.Param("roleId"), c.Param("permissionId"), expected)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}

// ListPermissions returns the permission catalog
// @Summary      List permissions
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.PermissionResponse}
// @Router       /api/admin/permissions/list [get]
func (h *RoleHandler) ListPermissions(c *gin.Context) {
	perms, err := h.roleService.ListPermissions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(perms))
}

// expectedVersion reads the optional version token from the query string or
// from an optional JSON body.
func expectedVersion(c *gin.Context) (*int, error) {
	if raw := c.Query("expected_version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("expected_version must be an integer")
		}
		return &v, nil
	}
	var req service.TogglePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return req.ExpectedVersion, nil
}
