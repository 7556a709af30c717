package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"royalty-admin/internal/apperr"
	"royalty-admin/internal/permission"
	"royalty-admin/internal/service"
	"royalty-admin/internal/token"
	"royalty-admin/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys set by Authenticate.
const (
	CtxUserID = "userID"
	CtxRole   = "userRole"
	CtxEmail  = "userEmail"
)

// DenialRecorder is told about every failed permission check.
type DenialRecorder interface {
	RecordDenied(ctx context.Context, actor service.Actor, required []string, method, path string)
}

// Auth validates bearer tokens and enforces permission triples on routes.
// The token only names the user; role and status are read from the stored
// account on every request.
type Auth struct {
	tokens   *token.Manager
	accounts service.AccountResolver
	perms    service.PermissionResolver
	denials  DenialRecorder
}

func NewAuth(tokens *token.Manager, accounts service.AccountResolver, perms service.PermissionResolver, denials DenialRecorder) *Auth {
	return &Auth{tokens: tokens, accounts: accounts, perms: perms, denials: denials}
}

// Authenticate rejects requests without a valid "Bearer <token>" header or
// whose account is no longer active.
func (a *Auth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Authorization is missing"))
			return
		}
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Invalid authorization format. Expected 'Bearer <token>'"))
			return
		}

		claims, err := a.tokens.Parse(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Invalid token"))
			return
		}

		acc, err := a.activeAccount(c.Request.Context(), claims.Subject)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(CtxUserID, acc.UserID.String())
		c.Set(CtxRole, acc.Role)
		c.Set(CtxEmail, acc.Email)
		c.Next()
	}
}

// RequirePermission lets the request through only when the caller's role
// grants every listed permission. It must run after Authenticate.
func (a *Auth) RequirePermission(required ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxRole)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Authentication required"))
			return
		}

		set, err := a.perms.PermissionsForRole(c.Request.Context(), role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error("Failed to verify permissions"))
			return
		}

		if missing, ok := firstMissing(set, required); !ok {
			if a.denials != nil {
				a.denials.RecordDenied(c.Request.Context(), ActorFrom(c), required, c.Request.Method, c.Request.URL.Path)
			}
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error("Access denied: missing permission '"+missing+"'"))
			return
		}

		c.Next()
	}
}

// Authorize checks a token subject outside the gin chain and returns its
// current role. Errors carry apperr kinds.
func (a *Auth) Authorize(ctx context.Context, subject string, required ...string) (string, error) {
	acc, err := a.activeAccount(ctx, subject)
	if err != nil {
		return "", err
	}
	set, err := a.perms.PermissionsForRole(ctx, acc.Role)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "failed to verify permissions")
	}
	if missing, ok := firstMissing(set, required); !ok {
		return "", apperr.New(apperr.Authorization, "Access denied: missing permission '%s'", missing)
	}
	return acc.Role, nil
}

func (a *Auth) activeAccount(ctx context.Context, subject string) (*service.Account, error) {
	acc, err := a.accounts.ResolveAccount(ctx, subject)
	if err != nil {
		return nil, err
	}
	if !acc.Active() {
		return nil, apperr.New(apperr.Authorization, "account is %s", acc.Status)
	}
	return acc, nil
}

func firstMissing(set permission.Set, required []string) (string, bool) {
	for _, perm := range required {
		if !set.IsGranted(perm) {
			return perm, false
		}
	}
	return "", true
}

func abort(c *gin.Context, err error) {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "authentication failed", "error", err)
	}
	c.AbortWithStatusJSON(status, response.Error(apperr.PublicMessage(err)))
}

// ActorFrom builds the audit actor from an authenticated request.
func ActorFrom(c *gin.Context) service.Actor {
	id, _ := uuid.Parse(c.GetString(CtxUserID))
	return service.Actor{
		UserID: id,
		Email:  c.GetString(CtxEmail),
		Role:   c.GetString(CtxRole),
	}
}
