// Package app wires repositories, services and HTTP handlers into a router.
package app

import (
	"context"
	"net/http"

	"royalty-admin/internal/config"
	"royalty-admin/internal/handler"
	"royalty-admin/internal/middleware"
	"royalty-admin/internal/repository"
	"royalty-admin/internal/service"
	"royalty-admin/internal/token"
	"royalty-admin/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

type App struct {
	Router  *gin.Engine
	Hub     *websocket.Hub
	Tokens  *token.Manager
	Roles   service.RoleService
	Users   service.UserService
	Splits  service.SplitService
	Revenue service.RevenueService
	Audit   service.AuditService
}

// New builds the application. Background workers stop when ctx is done; the
// caller starts the hub with Hub.Run.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB) *App {
	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}

	hub := websocket.NewHub()
	tokens := token.NewManager(cfg.JWTSecret, cfg.JWTTTL)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	splitRepo := repository.NewSplitConfigRepository(db)
	revenueRepo := repository.NewRevenueRepository(db)

	accounts := service.NewAccountCache(userRepo, cfg.PermCacheSize, cfg.PermCacheTTL)

	roleService := service.NewRoleService(service.RoleServiceDeps{
		Tx:            txManager,
		Roles:         roleRepo,
		Permissions:   permRepo,
		Users:         userRepo,
		Audit:         auditRepo,
		Events:        hub,
		Accounts:      accounts,
		MasterAdminID: cfg.MasterAdminID,
		CacheSize:     cfg.PermCacheSize,
		CacheTTL:      cfg.PermCacheTTL,
	})
	userService := service.NewUserService(txManager, userRepo, roleRepo, auditRepo, hub, accounts)
	auditService := service.NewAuditService(auditRepo)
	authService := service.NewAuthService(userRepo, roleService, tokens)
	splitService := service.NewSplitService(txManager, splitRepo, auditRepo, hub, cfg.SplitCompanyID)
	revenueService := service.NewRevenueService(txManager, revenueRepo, splitService, auditRepo, hub)

	auth := middleware.NewAuth(tokens, accounts, roleService, auditService)
	loginLimiter := middleware.NewRateLimiter(ctx, cfg.LoginRateRPS, cfg.LoginRateBurst)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	corsConfig := cors.DefaultConfig()
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(hub, c, tokens, auth)
	})

	handler.NewAuthHandler(authService, auth, loginLimiter).RegisterRoutes(router.Group(""))

	admin := router.Group("/api/admin", auth.Authenticate())
	handler.NewRoleHandler(roleService, auth).RegisterRoutes(admin)
	handler.NewUserHandler(userService, auth).RegisterRoutes(admin)
	handler.NewSplitHandler(splitService, auth).RegisterRoutes(admin)
	handler.NewEarningHandler(revenueService, auth).RegisterRoutes(admin)
	handler.NewAuditHandler(auditService, auth).RegisterRoutes(admin)

	return &App{
		Router:  router,
		Hub:     hub,
		Tokens:  tokens,
		Roles:   roleService,
		Users:   userService,
		Splits:  splitService,
		Revenue: revenueService,
		Audit:   auditService,
	}
}
