// Package store is the persistence boundary for profiles, the XP ledger and
// administrator records. Every method that touches both the ledger and a
// profile is atomic from the caller's point of view.
package store

import (
	"context"
	"errors"

	"terretahub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a unique profile or admin already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrDuplicateGrant is returned when a one-time grant code was already issued.
	ErrDuplicateGrant = errors.New("grant already issued")

	// ErrConflict is returned when experience changed between read and write.
	ErrConflict = errors.New("concurrent profile modification")

	// ErrOrphanedEntry is returned when a ledger row could not be removed
	// after the profile write it belonged to failed.
	ErrOrphanedEntry = errors.New("orphaned ledger entry")
)

// LevelChange captures a profile before and after an XP write.
type LevelChange struct {
	Before *models.Profile
	After  *models.Profile
	Entry  *models.XPEntry // nil when no ledger row was written
}

// Profiles reads and edits member profiles.
type Profiles interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	// UpdateProfileFields replaces the editable fields and returns the
	// profile as it was immediately before the write, and after it.
	UpdateProfileFields(ctx context.Context, userID primitive.ObjectID, fields models.ProfileFields) (before, after *models.Profile, err error)
	TopProfiles(ctx context.Context, limit int) ([]models.Profile, error)
}

// Ledger is the append-only XP journal.
type Ledger interface {
	HasGrant(ctx context.Context, userID primitive.ObjectID, grantCode string) (bool, error)
	HasGrantDescription(ctx context.Context, userID primitive.ObjectID, description string) (bool, error)
	AppendGrant(ctx context.Context, entry *models.XPEntry) (primitive.ObjectID, error)
	History(ctx context.Context, userID primitive.ObjectID, prefix string, limit int) ([]models.XPEntry, error)
}

// Levels performs the combined ledger + profile writes.
type Levels interface {
	// ApplyDelta appends entry and adds entry.XPAmount to the profile's
	// experience, recomputing its level from the new total.
	ApplyDelta(ctx context.Context, entry models.XPEntry) (*LevelChange, error)
	// AssignLevel sets the profile's level, topping experience up to the
	// level's threshold (and journaling the top-up) when it falls short.
	AssignLevel(ctx context.Context, userID primitive.ObjectID, level int, description string) (*LevelChange, error)
	// SetExperience overwrites experience, journals the signed difference
	// and recomputes the level from the new total.
	SetExperience(ctx context.Context, userID primitive.ObjectID, experience int, description string) (*LevelChange, error)
}

// Admins manages administrator accounts and their audit trail.
type Admins interface {
	CreateAdmin(ctx context.Context, admin *models.Admin) error
	GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error)
	LogAdminAction(ctx context.Context, entry *models.AdminActionLog) error
	AdminLogs(ctx context.Context, limit int) ([]models.AdminActionLog, error)
}

// Store is everything the services need.
type Store interface {
	Profiles
	Ledger
	Levels
	Admins
}

// normalizeFields applies the same trimming a Profile applies to itself.
func normalizeFields(fields models.ProfileFields) models.ProfileFields {
	var p models.Profile
	p.ApplyFields(fields)
	return p.Fields()
}
