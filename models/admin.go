package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Admin represents an admin or moderator account. Administrator capability
// comes from this record and its role, never from a profile's level.
type Admin struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"` // Never return password in JSON
	Role      string             `bson:"role" json:"role"`  // "admin" or "moderator"
	Name      string             `bson:"name" json:"name"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// ValidRole reports whether role is a known admin role
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleModerator
}

// AdminActionLog represents a log entry for admin actions
type AdminActionLog struct {
	ID           primitive.ObjectID     `bson:"_id,omitempty" json:"id,omitempty"`
	AdminID      primitive.ObjectID     `bson:"adminId" json:"adminId"`
	AdminEmail   string                 `bson:"adminEmail" json:"adminEmail"`
	Action       string                 `bson:"action" json:"action"`             // "set_level", "set_experience"
	ResourceType string                 `bson:"resourceType" json:"resourceType"` // "profile"
	ResourceID   primitive.ObjectID     `bson:"resourceId" json:"resourceId"`
	IPAddress    string                 `bson:"ipAddress" json:"ipAddress"`
	UserAgent    string                 `bson:"userAgent" json:"userAgent"`
	DeviceInfo   string                 `bson:"deviceInfo,omitempty" json:"deviceInfo,omitempty"`
	Timestamp    time.Time              `bson:"timestamp" json:"timestamp"`
	Details      map[string]interface{} `bson:"details,omitempty" json:"details,omitempty"`
}
