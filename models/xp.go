package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// XPEntry is one row of the append-only XP ledger (collection "xp_history")
type XPEntry struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	XPAmount    int                `bson:"xpAmount" json:"xpAmount"`
	Description string             `bson:"description" json:"description"`
	GrantCode   string             `bson:"grantCode,omitempty" json:"grantCode,omitempty"` // one-time grants only, unique per user
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// XPEvent is broadcast to websocket clients after experience or level changes
type XPEvent struct {
	Type          string    `json:"type"` // "xp_awarded", "level_up", "level_down", "level_assigned"
	UserID        string    `json:"userId"`
	XPAmount      int       `json:"xpAmount,omitempty"`
	Description   string    `json:"description,omitempty"`
	NewExperience int       `json:"newExperience"`
	OldLevel      int       `json:"oldLevel,omitempty"`
	NewLevel      int       `json:"newLevel"`
	LevelName     string    `json:"levelName,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
