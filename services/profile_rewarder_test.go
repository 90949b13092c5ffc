package services

import (
	"context"
	"testing"

	"terretahub/models"
	"terretahub/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewardFirstBio(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.newProfile(t, "neus@example.com")

	result, err := f.profiles.UpdateProfile(ctx, p.ID, models.ProfileFields{Bio: "Visc a Alacant"})
	require.NoError(t, err)
	require.Len(t, result.Rewards, 1)
	assert.True(t, result.Rewards[0].Granted)
	assert.Equal(t, []string{"+50 XP (Bio)"}, result.Messages)
	assert.Equal(t, 50, result.Profile.Experience)

	// Same bio again: nothing newly populated.
	result, err = f.profiles.UpdateProfile(ctx, p.ID, models.ProfileFields{Bio: "Visc a Alacant"})
	require.NoError(t, err)
	assert.Empty(t, result.Rewards)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Profile: Added Bio", entries[0].Description)
	assert.Equal(t, "profile.bio", entries[0].GrantCode)
}

func TestRewardIsIdempotentAcrossClearAndRefill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.newProfile(t, "quique@example.com")

	empty := models.ProfileFields{}
	filled := models.ProfileFields{Bio: "Hola"}

	outcomes := f.rewarder.Reward(ctx, p.ID, empty, filled)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Granted)

	outcomes = f.rewarder.Reward(ctx, p.ID, empty, filled)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Skipped)
	assert.False(t, outcomes[0].Granted)

	got, err := f.store.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Experience)
	assert.Len(t, f.store.Entries(), 1)
}

func TestRewardAllCategories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.newProfile(t, "andreu@example.com")

	after := models.ProfileFields{
		Username:    "andreu",
		AvatarURL:   "https://cdn.example/a.png",
		Bio:         "Bon dia",
		Website:     "https://andreu.example",
		SocialLinks: map[string]string{"mastodon": "@andreu"},
		Speaks:      []string{"ca", "es"},
		Learning:    []string{"en"},
	}
	outcomes := f.rewarder.Reward(ctx, p.ID, models.ProfileFields{}, after)
	require.Len(t, outcomes, len(RewardCategories()))

	total := 0
	for _, o := range outcomes {
		assert.True(t, o.Granted, o.Category)
		total += o.XP
	}
	assert.Equal(t, 220, total)

	got, err := f.store.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 220, got.Experience)
	assert.Equal(t, 2, got.Level)
}

func TestRewardTreatsBlankValuesAsEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.newProfile(t, "rafa@example.com")

	after := models.ProfileFields{
		Bio:         "   ",
		SocialLinks: map[string]string{"web": " "},
		Speaks:      []string{""},
		Learning:    []string{},
	}
	assert.Empty(t, f.rewarder.Reward(ctx, p.ID, models.ProfileFields{}, after))

	// Editing an already filled field is not a first population.
	assert.Empty(t, f.rewarder.Reward(ctx, p.ID, models.ProfileFields{Bio: "a"}, models.ProfileFields{Bio: "b"}))
	assert.Empty(t, f.store.Entries())
}

func TestRewardHonoursLegacyDescriptions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.newProfile(t, "lola@example.com")

	// A row written before grant codes existed.
	_, err := f.ledger.AppendGrant(ctx, p.ID, 50, "Profile: Added Avatar", "")
	require.NoError(t, err)

	outcomes := f.rewarder.Reward(ctx, p.ID, models.ProfileFields{}, models.ProfileFields{AvatarURL: "a.png"})
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Skipped)
}

func TestRewardFailureDoesNotBlockOtherCategories(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	p := &models.Profile{Email: "pau@example.com"}
	require.NoError(t, m.CreateProfile(ctx, p))

	ledger := NewXpLedger(&failingLedger{Memory: m, failHasGrant: true})
	rewarder := NewProfileChangeRewarder(ledger, NewProfileLevelSync(m, nil, nil), nil)

	outcomes := rewarder.Reward(ctx, p.ID, models.ProfileFields{}, models.ProfileFields{Bio: "x", Website: "y"})
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.False(t, o.Granted)
		assert.ErrorIs(t, o.Err, ErrLedgerUnavailable)
		assert.NotEmpty(t, o.Error)
	}
}

func TestUpdateProfileUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.profiles.UpdateProfile(context.Background(), [12]byte{1}, models.ProfileFields{Bio: "x"})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
