package routes

import (
	"terretahub/controllers"
	"terretahub/middlewares"
	"terretahub/store"
	"terretahub/websocket"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers bundles everything the router needs
type Handlers struct {
	Auth     *controllers.AuthController
	XP       *controllers.XPController
	Admin    *controllers.AdminController
	Hub      *websocket.Hub
	Admins   store.Admins
	Enforcer *casbin.Enforcer
	Health   map[string]controllers.Pinger
	Logger   *zap.Logger
}

// Register mounts every route on router
func Register(router *gin.Engine, h Handlers) {
	// Public routes
	router.POST("/signup", h.Auth.SignUp)
	router.POST("/verifyEmail", h.Auth.VerifyEmail)
	router.POST("/login", h.Auth.Login)
	router.POST("/admin/login", h.Auth.AdminLogin)
	router.GET("/levels", h.XP.GetLevels)
	router.GET("/health", controllers.Health(h.Health))

	// The websocket authenticates with ?token= since browsers cannot set headers
	router.GET("/ws/xp", h.Hub.ServeXP)

	auth := router.Group("/")
	auth.Use(middlewares.AuthMiddleware())
	{
		auth.GET("/user/level", h.XP.GetMyLevel)
		auth.PUT("/user/profile", h.XP.UpdateProfile)
		auth.GET("/user/xp/history", h.XP.GetMyHistory)
		auth.POST("/xp/award", h.XP.AwardXP)
		auth.GET("/leaderboard/xp", h.XP.GetLeaderboard)
	}

	admin := router.Group("/admin")
	admin.Use(middlewares.AdminAuthMiddleware(h.Admins))
	{
		admin.PUT("/users/:id/level", middlewares.RBACMiddleware(h.Enforcer, "level", "write", h.Logger), h.XP.SetUserLevel)
		admin.PUT("/users/:id/experience", middlewares.RBACMiddleware(h.Enforcer, "experience", "write", h.Logger), h.XP.SetUserExperience)
		admin.GET("/users/:id/xp", middlewares.RBACMiddleware(h.Enforcer, "ledger", "read", h.Logger), h.XP.GetUserLedger)
		admin.GET("/logs", middlewares.RBACMiddleware(h.Enforcer, "logs", "read", h.Logger), h.Admin.GetAdminLogs)
	}
}
