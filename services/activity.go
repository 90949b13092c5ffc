package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	// ErrUnknownAction is returned for an action missing from the award table.
	ErrUnknownAction = errors.New("unknown xp action")

	// ErrRateLimited is returned when a user repeats an action too often.
	ErrRateLimited = errors.New("xp action rate limited")

	// ErrReservedDescription is returned when a custom description claims a
	// namespace written only by profile rewards or administrators.
	ErrReservedDescription = errors.New("reserved xp description")
)

// reservedPrefixes are matched case-insensitively against custom descriptions.
var reservedPrefixes = []string{"profile:", "admin:"}

// Action is an entry of the activity award table.
type Action struct {
	Name        string `json:"action"`
	XP          int    `json:"xp"`
	Description string `json:"description"`
}

var actions = map[string]Action{
	"debate_created":    {Name: "debate_created", XP: 15, Description: "Forum: Created a debate"},
	"comment_created":   {Name: "comment_created", XP: 5, Description: "Forum: Posted a comment"},
	"vote_cast":         {Name: "vote_cast", XP: 1, Description: "Forum: Voted"},
	"vote_received":     {Name: "vote_received", XP: 2, Description: "Forum: Received a vote"},
	"event_attended":    {Name: "event_attended", XP: 20, Description: "Events: Attended an event"},
	"content_published": {Name: "content_published", XP: 25, Description: "Content: Published an article"},
	"domain_claimed":    {Name: "domain_claimed", XP: 40, Description: "Domains: Claimed a domain page"},
	"content_removed":   {Name: "content_removed", XP: -20, Description: "Moderation: Content removed"},
}

// LookupAction returns the award for name.
func LookupAction(name string) (Action, bool) {
	a, ok := actions[name]
	return a, ok
}

// Actions returns the award table sorted by name.
func Actions() []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RateLimiter counts actions per user within a window.
type RateLimiter interface {
	Allow(ctx context.Context, userID, action string) (bool, error)
}

// ActivityService is the single server-side "award XP" entry point.
type ActivityService struct {
	sync    *ProfileLevelSync
	limiter RateLimiter
	logger  *zap.Logger
}

// NewActivityService creates the service. limiter may be nil to disable rate limiting.
func NewActivityService(sync *ProfileLevelSync, limiter RateLimiter, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{sync: sync, limiter: limiter, logger: logger}
}

// AddUserXP awards the fixed amount of action to the user in one atomic
// write. customDescription replaces the default ledger description when set.
// Penalties bypass the rate limiter.
func (s *ActivityService) AddUserXP(ctx context.Context, userID primitive.ObjectID, action, customDescription string) (*LevelUpdate, error) {
	a, ok := LookupAction(action)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	custom := strings.TrimSpace(customDescription)
	if custom != "" && reservedDescription(custom) {
		return nil, fmt.Errorf("%w: %q", ErrReservedDescription, custom)
	}

	if a.XP > 0 && s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, userID.Hex(), a.Name)
		if err != nil {
			// a limiter outage must not block awards
			s.logger.Warn("rate limiter unavailable", zap.String("action", a.Name), zap.Error(err))
		} else if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, a.Name)
		}
	}

	description := a.Description
	if custom != "" {
		description = custom
	}
	return s.sync.ApplyDelta(ctx, userID, a.XP, description, "")
}

func reservedDescription(description string) bool {
	lower := strings.ToLower(description)
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
