package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"terretahub/leveling"
	"terretahub/models"
	"terretahub/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ProfileUpdate is returned after a profile save.
type ProfileUpdate struct {
	Profile  *models.Profile  `json:"profile"`
	Level    leveling.Summary `json:"level"`
	Rewards  []RewardOutcome  `json:"rewards"`
	Messages []string         `json:"messages"`
}

// ProfileService owns profile lifecycle and the level read model.
type ProfileService struct {
	profiles store.Profiles
	rewarder *ProfileChangeRewarder
	logger   *zap.Logger
}

func NewProfileService(profiles store.Profiles, rewarder *ProfileChangeRewarder, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{profiles: profiles, rewarder: rewarder, logger: logger}
}

// CreateProfile creates a profile at level 1 with no experience. An existing
// profile with the same email is returned unchanged.
func (s *ProfileService) CreateProfile(ctx context.Context, email, displayName string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	p := &models.Profile{Email: email, DisplayName: strings.TrimSpace(displayName)}
	err := s.profiles.CreateProfile(ctx, p)
	if errors.Is(err, store.ErrAlreadyExists) {
		return s.profiles.GetProfileByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	s.logger.Info("profile created", zap.String("userId", p.ID.Hex()))
	return p, nil
}

// GetProfile returns the profile and its level summary.
func (s *ProfileService) GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.Profile, leveling.Summary, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, leveling.Summary{}, ErrProfileNotFound
		}
		return nil, leveling.Summary{}, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, leveling.Summarize(p.Experience, p.Level), nil
}

// GetProfileByEmail looks a profile up by its login email.
func (s *ProfileService) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	p, err := s.profiles.GetProfileByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return p, err
}

// UpdateProfile saves the editable fields and then grants any profile
// completion rewards. Reward failures are reported in the result and never
// undo the save.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, fields models.ProfileFields) (*ProfileUpdate, error) {
	before, after, err := s.profiles.UpdateProfileFields(ctx, userID, fields)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	rewards := s.rewarder.Reward(ctx, userID, before.Fields(), after.Fields())
	profile := after
	if len(rewards) > 0 {
		if reloaded, err := s.profiles.GetProfile(ctx, userID); err == nil {
			profile = reloaded
		} else {
			s.logger.Warn("failed to reload profile after rewards", zap.String("userId", userID.Hex()), zap.Error(err))
		}
	}

	return &ProfileUpdate{
		Profile:  profile,
		Level:    leveling.Summarize(profile.Experience, profile.Level),
		Rewards:  rewards,
		Messages: Messages(rewards),
	}, nil
}

// LeaderboardEntry is one row of the XP leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Experience  int    `json:"experience"`
	Level       int    `json:"level"`
	LevelName   string `json:"levelName"`
}

// Leaderboard returns the top profiles by experience.
func (s *ProfileService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	profiles, err := s.profiles.TopProfiles(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	entries := make([]LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		name := p.DisplayName
		if name == "" {
			name = p.Username
		}
		entries = append(entries, LeaderboardEntry{
			Rank:        i + 1,
			ID:          p.ID.Hex(),
			DisplayName: name,
			AvatarURL:   p.AvatarURL,
			Experience:  p.Experience,
			Level:       p.Level,
			LevelName:   leveling.LevelName(p.Level),
		})
	}
	return entries, nil
}
