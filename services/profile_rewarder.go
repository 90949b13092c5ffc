package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"terretahub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// RewardCategory is a profile attribute that earns a one-time XP grant the
// first time it is filled in.
type RewardCategory struct {
	Name        string
	Label       string
	GrantCode   string
	Description string
	XP          int
	filled      func(f models.ProfileFields) bool
}

var rewardCategories = []RewardCategory{
	{
		Name: "avatar", Label: "Avatar", GrantCode: "profile.avatar",
		Description: "Profile: Added Avatar", XP: 50,
		filled: func(f models.ProfileFields) bool { return notBlank(f.AvatarURL) },
	},
	{
		Name: "username", Label: "Username", GrantCode: "profile.username",
		Description: "Profile: Added Username", XP: 25,
		filled: func(f models.ProfileFields) bool { return notBlank(f.Username) },
	},
	{
		Name: "website", Label: "Website", GrantCode: "profile.website",
		Description: "Profile: Added Website", XP: 25,
		filled: func(f models.ProfileFields) bool { return notBlank(f.Website) },
	},
	{
		Name: "bio", Label: "Bio", GrantCode: "profile.bio",
		Description: "Profile: Added Bio", XP: 50,
		filled: func(f models.ProfileFields) bool { return notBlank(f.Bio) },
	},
	{
		Name: "social_links", Label: "Social Links", GrantCode: "profile.social_links",
		Description: "Profile: Added Social Links", XP: 30,
		filled: func(f models.ProfileFields) bool {
			for _, link := range f.SocialLinks {
				if notBlank(link) {
					return true
				}
			}
			return false
		},
	},
	{
		Name: "speaks_languages", Label: "Spoken Languages", GrantCode: "profile.speaks_languages",
		Description: "Profile: Added Spoken Languages", XP: 20,
		filled: func(f models.ProfileFields) bool { return anyNotBlank(f.Speaks) },
	},
	{
		Name: "learning_languages", Label: "Learning Languages", GrantCode: "profile.learning_languages",
		Description: "Profile: Added Learning Languages", XP: 20,
		filled: func(f models.ProfileFields) bool { return anyNotBlank(f.Learning) },
	},
}

// RewardCategories returns the watched categories in evaluation order.
func RewardCategories() []RewardCategory {
	out := make([]RewardCategory, len(rewardCategories))
	copy(out, rewardCategories)
	return out
}

// RewardOutcome reports what happened to one newly filled category.
type RewardOutcome struct {
	Category string `json:"category"`
	Granted  bool   `json:"granted"`
	Skipped  bool   `json:"skipped"` // already granted earlier
	XP       int    `json:"xp,omitempty"`
	Message  string `json:"message,omitempty"`
	Err      error  `json:"-"`
	Error    string `json:"error,omitempty"`
}

// ProfileChangeRewarder grants the one-time profile completion rewards.
// Each category is independent: a failure in one is reported in its outcome
// and never blocks the others or the profile save.
type ProfileChangeRewarder struct {
	ledger *XpLedger
	sync   *ProfileLevelSync
	logger *zap.Logger
}

func NewProfileChangeRewarder(ledger *XpLedger, sync *ProfileLevelSync, logger *zap.Logger) *ProfileChangeRewarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileChangeRewarder{ledger: ledger, sync: sync, logger: logger}
}

// Reward compares the fields before and after a save and grants every
// category that went from empty to filled. Categories that were already
// filled, or are still empty, produce no outcome.
func (r *ProfileChangeRewarder) Reward(ctx context.Context, userID primitive.ObjectID, before, after models.ProfileFields) []RewardOutcome {
	outcomes := []RewardOutcome{}
	for _, category := range rewardCategories {
		if category.filled(before) || !category.filled(after) {
			continue
		}
		outcome := r.grant(ctx, userID, category)
		if outcome.Err != nil {
			outcome.Error = outcome.Err.Error()
			r.logger.Warn("profile reward failed",
				zap.String("userId", userID.Hex()),
				zap.String("category", category.Name),
				zap.Error(outcome.Err),
			)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (r *ProfileChangeRewarder) grant(ctx context.Context, userID primitive.ObjectID, category RewardCategory) RewardOutcome {
	outcome := RewardOutcome{Category: category.Name}

	issued, err := r.ledger.HasGrant(ctx, userID, category.GrantCode)
	if err == nil && !issued {
		issued, err = r.ledger.HasGrantDescription(ctx, userID, category.Description)
	}
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if issued {
		outcome.Skipped = true
		return outcome
	}

	_, err = r.sync.ApplyDelta(ctx, userID, category.XP, category.Description, category.GrantCode)
	switch {
	case errors.Is(err, ErrDuplicateGrant):
		// a concurrent save got there first
		outcome.Skipped = true
	case err != nil:
		outcome.Err = err
	default:
		outcome.Granted = true
		outcome.XP = category.XP
		outcome.Message = fmt.Sprintf("+%d XP (%s)", category.XP, category.Label)
	}
	return outcome
}

// Messages collects the display messages of the granted outcomes.
func Messages(outcomes []RewardOutcome) []string {
	messages := []string{}
	for _, o := range outcomes {
		if o.Granted {
			messages = append(messages, o.Message)
		}
	}
	return messages
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}

func anyNotBlank(values []string) bool {
	for _, v := range values {
		if notBlank(v) {
			return true
		}
	}
	return false
}
