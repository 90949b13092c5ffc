package middlewares

import (
	"net/http"

	"terretahub/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Context keys set by the auth middlewares
const (
	ContextUserID     = "userID"
	ContextUserEmail  = "userEmail"
	ContextAdminID    = "adminID"
	ContextAdminEmail = "adminEmail"
	ContextAdminRole  = "adminRole"
)

// AuthMiddleware verifies a member JWT and stores the profile id and email
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing Authorization token"})
			return
		}

		token, ok := utils.BearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid Authorization token format"})
			return
		}

		claims, err := utils.ParseJWTToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "message": err.Error()})
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil || claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token subject"})
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

// UserID returns the authenticated profile id
func UserID(c *gin.Context) (primitive.ObjectID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok
}
