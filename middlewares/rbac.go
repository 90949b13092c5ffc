package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"terretahub/models"
	"terretahub/store"
	"terretahub/utils"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	mongodbadapter "github.com/casbin/mongodb-adapter/v3"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// NewEnforcer builds the Casbin enforcer and makes sure every configured
// policy exists. With a non-empty mongoURI policies live in the casbin_rule
// collection and survive restarts; otherwise they are kept in memory.
func NewEnforcer(policies [][]string, mongoURI string, logger *zap.Logger) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create Casbin model: %w", err)
	}

	var enforcer *casbin.Enforcer
	if mongoURI != "" {
		adapter, err := mongodbadapter.NewAdapter(mongoURI)
		if err != nil {
			return nil, fmt.Errorf("failed to create Casbin adapter: %w", err)
		}
		enforcer, err = casbin.NewEnforcer(m, adapter)
		if err != nil {
			return nil, fmt.Errorf("failed to create Casbin enforcer: %w", err)
		}
	} else {
		enforcer, err = casbin.NewEnforcer(m)
		if err != nil {
			return nil, fmt.Errorf("failed to create Casbin enforcer: %w", err)
		}
	}

	// AddPolicy is a no-op for policies that already exist
	for _, p := range policies {
		added, err := enforcer.AddPolicy(p[0], p[1], p[2])
		if err != nil {
			return nil, fmt.Errorf("failed to add policy %v: %w", p, err)
		}
		if added {
			logger.Info("added RBAC policy", zap.Strings("policy", p))
		}
	}
	return enforcer, nil
}

// AdminAuthMiddleware authenticates administrators. The token must carry a
// role and the admin record must still exist; a profile's level plays no part.
func AdminAuthMiddleware(admins store.Admins) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := utils.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		claims, err := utils.ParseJWTToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "message": err.Error()})
			return
		}
		if !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		admin, err := admins.GetAdminByEmail(ctx, claims.Email)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		c.Set(ContextAdminEmail, admin.Email)
		c.Set(ContextAdminID, admin.ID)
		c.Set(ContextAdminRole, admin.Role)
		c.Next()
	}
}

// RBACMiddleware checks if the admin's role may perform action on resource
func RBACMiddleware(enforcer *casbin.Enforcer, resource, action string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextAdminRole)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin role not found"})
			return
		}

		allowed, err := enforcer.Enforce(role, resource, action)
		if err != nil {
			logger.Error("casbin enforce failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Permission check failed"})
			return
		}
		if !allowed {
			logger.Info("permission denied",
				zap.String("role", role),
				zap.String("resource", resource),
				zap.String("action", action),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// LogAdminAction records an admin action for audit purposes
func LogAdminAction(c *gin.Context, admins store.Admins, action string, resourceID primitive.ObjectID, details map[string]interface{}) error {
	adminID, ok := c.Get(ContextAdminID)
	if !ok {
		return fmt.Errorf("adminID not found in context")
	}

	userAgent := c.GetHeader("User-Agent")
	entry := models.AdminActionLog{
		AdminID:      adminID.(primitive.ObjectID),
		AdminEmail:   c.GetString(ContextAdminEmail),
		Action:       action,
		ResourceType: "profile",
		ResourceID:   resourceID,
		IPAddress:    c.ClientIP(),
		UserAgent:    userAgent,
		DeviceInfo:   deviceInfo(userAgent),
		Timestamp:    time.Now(),
		Details:      details,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	return admins.LogAdminAction(ctx, &entry)
}

func deviceInfo(userAgent string) string {
	switch {
	case userAgent == "":
		return "Unknown"
	case strings.Contains(userAgent, "Mobile"):
		return "Mobile"
	case strings.Contains(userAgent, "Tablet"):
		return "Tablet"
	}
	return "Desktop"
}
