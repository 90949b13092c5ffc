package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"terretahub/leveling"
	"terretahub/models"
	"terretahub/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Event types published after a level write.
const (
	EventXPAwarded     = "xp_awarded"
	EventLevelUp       = "level_up"
	EventLevelDown     = "level_down"
	EventLevelAssigned = "level_assigned"
)

const maxConflictRetries = 3

// LevelUpdate is the outcome of a successful level write.
type LevelUpdate struct {
	Profile  *models.Profile
	OldLevel int
	NewLevel int
	Entry    *models.XPEntry // nil when no ledger row was needed
}

// LevelChanged reports whether the write moved the profile to another level.
func (u *LevelUpdate) LevelChanged() bool {
	return u.OldLevel != u.NewLevel
}

// ProfileLevelSync keeps Profile.experience and Profile.level consistent.
//
// ApplyDelta derives the level from experience. AssignLevel does the
// opposite: it forces a level and tops experience up to its threshold,
// leaving experience untouched when it is already ahead.
type ProfileLevelSync struct {
	levels   store.Levels
	notifier Notifier
	logger   *zap.Logger
}

func NewProfileLevelSync(levels store.Levels, notifier Notifier, logger *zap.Logger) *ProfileLevelSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileLevelSync{levels: levels, notifier: notifier, logger: logger}
}

// ApplyDelta journals delta and adds it to the profile's experience in one
// atomic write, recomputing the level from the new total. Negative totals
// are valid. grantCode may be empty for repeatable awards.
func (s *ProfileLevelSync) ApplyDelta(ctx context.Context, userID primitive.ObjectID, delta int, description, grantCode string) (*LevelUpdate, error) {
	change, err := s.levels.ApplyDelta(ctx, models.XPEntry{
		UserID:      userID,
		XPAmount:    delta,
		Description: description,
		GrantCode:   grantCode,
	})
	if err != nil {
		return nil, levelError("apply xp delta", err)
	}

	update := newLevelUpdate(change)
	s.logger.Debug("xp applied",
		zap.String("userId", userID.Hex()),
		zap.Int("delta", delta),
		zap.String("description", description),
		zap.Int("experience", update.Profile.Experience),
		zap.Int("level", update.NewLevel),
	)

	s.publish(ctx, update, EventXPAwarded, delta, description)
	switch {
	case update.NewLevel > update.OldLevel:
		s.publish(ctx, update, EventLevelUp, 0, "")
	case update.NewLevel < update.OldLevel:
		s.publish(ctx, update, EventLevelDown, 0, "")
	}
	return update, nil
}

// AssignLevel forces the profile's level. When experience is below the
// level's threshold the difference is journaled and added; experience
// already ahead of the level is never reduced.
func (s *ProfileLevelSync) AssignLevel(ctx context.Context, userID primitive.ObjectID, level int) (*LevelUpdate, error) {
	if !leveling.ValidLevel(level) {
		return nil, fmt.Errorf("%w: %d", leveling.ErrInvalidLevel, level)
	}
	description := "Admin: Level set to " + strconv.Itoa(level)

	var change *store.LevelChange
	err := retryOnConflict(func() error {
		var err error
		change, err = s.levels.AssignLevel(ctx, userID, level, description)
		return err
	})
	if err != nil {
		return nil, levelError("assign level", err)
	}

	update := newLevelUpdate(change)
	topUp := 0
	if update.Entry != nil {
		topUp = update.Entry.XPAmount
	}
	s.logger.Info("level assigned",
		zap.String("userId", userID.Hex()),
		zap.Int("oldLevel", update.OldLevel),
		zap.Int("newLevel", update.NewLevel),
		zap.Int("topUp", topUp),
	)
	s.publish(ctx, update, EventLevelAssigned, topUp, description)
	return update, nil
}

// SetExperience overwrites experience, journals the signed difference and
// recomputes the level from the new total.
func (s *ProfileLevelSync) SetExperience(ctx context.Context, userID primitive.ObjectID, experience int) (*LevelUpdate, error) {
	description := "Admin: Experience adjusted to " + strconv.Itoa(experience)

	var change *store.LevelChange
	err := retryOnConflict(func() error {
		var err error
		change, err = s.levels.SetExperience(ctx, userID, experience, description)
		return err
	})
	if err != nil {
		return nil, levelError("set experience", err)
	}

	update := newLevelUpdate(change)
	diff := 0
	if update.Entry != nil {
		diff = update.Entry.XPAmount
	}
	s.logger.Info("experience adjusted",
		zap.String("userId", userID.Hex()),
		zap.Int("experience", experience),
		zap.Int("diff", diff),
		zap.Int("level", update.NewLevel),
	)
	if diff != 0 {
		s.publish(ctx, update, EventXPAwarded, diff, description)
	}
	if update.LevelChanged() {
		eventType := EventLevelUp
		if update.NewLevel < update.OldLevel {
			eventType = EventLevelDown
		}
		s.publish(ctx, update, eventType, 0, "")
	}
	return update, nil
}

// publish never fails the write; the change is already committed.
func (s *ProfileLevelSync) publish(ctx context.Context, update *LevelUpdate, eventType string, amount int, description string) {
	if s.notifier == nil {
		return
	}
	event := models.XPEvent{
		Type:          eventType,
		UserID:        update.Profile.ID.Hex(),
		XPAmount:      amount,
		Description:   description,
		NewExperience: update.Profile.Experience,
		OldLevel:      update.OldLevel,
		NewLevel:      update.NewLevel,
		LevelName:     leveling.LevelName(update.NewLevel),
		Timestamp:     time.Now(),
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish xp event",
			zap.String("type", eventType),
			zap.String("userId", event.UserID),
			zap.Error(err),
		)
	}
}

func newLevelUpdate(change *store.LevelChange) *LevelUpdate {
	return &LevelUpdate{
		Profile:  change.After,
		OldLevel: change.Before.Level,
		NewLevel: change.After.Level,
		Entry:    change.Entry,
	}
}

func retryOnConflict(fn func() error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		if err = fn(); !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return err
}

// levelError classifies store failures the same way ledgerError does: every
// failure that is not a known outcome means the ledger write did not happen.
func levelError(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrOrphanedEntry):
		// the ledger now disagrees with the profile
	case errors.Is(err, store.ErrNotFound):
		return ErrProfileNotFound
	case errors.Is(err, store.ErrDuplicateGrant),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, leveling.ErrInvalidLevel):
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrLedgerUnavailable, op, err)
}
