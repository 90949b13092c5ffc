package services

import (
	"context"
	"testing"

	"terretahub/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestXpLedgerAppendAndHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.newProfile(t, "carmen@example.com")

	_, err := f.ledger.AppendGrant(ctx, p.ID, 50, "Profile: Added Bio", "profile.bio")
	require.NoError(t, err)
	_, err = f.ledger.AppendGrant(ctx, p.ID, -20, "Moderation: Content removed", "")
	require.NoError(t, err)

	ok, err := f.ledger.HasGrant(ctx, p.ID, "profile.bio")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.ledger.HasGrantDescription(ctx, p.ID, "Profile: Added Bio")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := f.ledger.History(ctx, p.ID, "Profile: ", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 50, entries[0].XPAmount)

	all, err := f.ledger.History(ctx, p.ID, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, -20, all[0].XPAmount, "newest first")
}

func TestXpLedgerDuplicateIsNotUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.newProfile(t, "ximo@example.com")

	_, err := f.ledger.AppendGrant(ctx, p.ID, 25, "Profile: Added Website", "profile.website")
	require.NoError(t, err)

	_, err = f.ledger.AppendGrant(ctx, p.ID, 25, "Profile: Added Website", "profile.website")
	assert.ErrorIs(t, err, ErrDuplicateGrant)
	assert.NotErrorIs(t, err, ErrLedgerUnavailable)
}

func TestXpLedgerWrapsStoreFailures(t *testing.T) {
	ctx := context.Background()
	ledger := NewXpLedger(&failingLedger{Memory: store.NewMemory(), failHasGrant: true})

	_, err := ledger.HasGrant(ctx, primitive.NewObjectID(), "profile.bio")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
	assert.ErrorIs(t, err, errStoreDown, "the cause stays in the chain")
	assert.NotErrorIs(t, err, ErrDuplicateGrant)
}
