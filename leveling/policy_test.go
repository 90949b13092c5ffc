package leveling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdTable(t *testing.T) {
	table := Thresholds()
	require.Len(t, table, MaxLevel)
	assert.Equal(t, 0, table[0], "level 1 is free")
	for i := 1; i < len(table); i++ {
		assert.GreaterOrEqual(t, table[i], table[i-1], "thresholds must be non-decreasing at index %d", i)
	}

	table[0] = 999
	assert.Equal(t, 0, Thresholds()[0], "Thresholds must return a copy")
}

func TestLevelForExperience(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{-500, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{299, 2},
		{300, 3},
		{1000, 5},
		{1200, 5},
		{7999, 12},
		{8000, 13},
		{1_000_000, 13},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForExperience(tt.xp), "xp=%d", tt.xp)
	}
}

func TestLevelForExperienceMonotonic(t *testing.T) {
	prev := LevelForExperience(0)
	for xp := 1; xp <= 10_000; xp++ {
		got := LevelForExperience(xp)
		require.GreaterOrEqual(t, got, prev, "level dropped at xp=%d", xp)
		prev = got
	}
}

func TestThresholdRoundTrip(t *testing.T) {
	for level := MinLevel; level <= MaxLevel; level++ {
		minXP, err := MinimumXPForLevel(level)
		require.NoError(t, err)
		assert.Equal(t, level, LevelForExperience(minXP), "level %d", level)
		if level > MinLevel {
			assert.Less(t, LevelForExperience(minXP-1), level, "level %d", level)
		}
	}
}

func TestMinimumXPForLevelRejectsOutOfRange(t *testing.T) {
	for _, level := range []int{-1, 0, 14, 100} {
		_, err := MinimumXPForLevel(level)
		assert.ErrorIs(t, err, ErrInvalidLevel, "level %d", level)
	}

	xp, err := MinimumXPForLevel(5)
	require.NoError(t, err)
	assert.Equal(t, 1000, xp)
}

func TestNextLevelThreshold(t *testing.T) {
	next, err := NextLevelThreshold(4)
	require.NoError(t, err)
	assert.Equal(t, 1000, next)

	next, err = NextLevelThreshold(MaxLevel)
	require.NoError(t, err)
	assert.Equal(t, Infinite, next)

	_, err = NextLevelThreshold(0)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestProgressWithinLevel(t *testing.T) {
	for level := MinLevel; level < MaxLevel; level++ {
		low, _ := MinimumXPForLevel(level)
		high, _ := NextLevelThreshold(level)

		p, err := ProgressWithinLevel(low, level)
		require.NoError(t, err)
		assert.Zero(t, p, "level %d at its threshold", level)

		p, err = ProgressWithinLevel(high-1, level)
		require.NoError(t, err)
		assert.Less(t, p, 100.0, "level %d just below next threshold", level)
		assert.Greater(t, p, 90.0, "level %d just below next threshold", level)
	}

	p, err := ProgressWithinLevel(1200, 5)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, p, 0.0001)

	// Experience ahead of an administrator-assigned lower level clamps.
	p, err = ProgressWithinLevel(1200, 3)
	require.NoError(t, err)
	assert.Equal(t, 100.0, p)

	p, err = ProgressWithinLevel(-50, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)

	p, err = ProgressWithinLevel(0, MaxLevel)
	require.NoError(t, err)
	assert.Equal(t, 100.0, p)

	_, err = ProgressWithinLevel(10, 14)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestLevelNameSoftFails(t *testing.T) {
	assert.Equal(t, "Newcomer", LevelName(1))
	assert.Equal(t, "Active Member", LevelName(5))
	assert.Equal(t, "Admin", LevelName(MaxLevel))
	assert.Equal(t, UnknownLevelName, LevelName(0))
	assert.Equal(t, UnknownLevelName, LevelName(42))
}

func TestTopUp(t *testing.T) {
	up, err := TopUp(0, 5)
	require.NoError(t, err)
	assert.Equal(t, 1000, up)

	up, err = TopUp(1200, 3)
	require.NoError(t, err)
	assert.Zero(t, up)

	up, err = TopUp(-40, 2)
	require.NoError(t, err)
	assert.Equal(t, 140, up)

	_, err = TopUp(0, 0)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestSummarize(t *testing.T) {
	s := Summarize(1200, 5)
	assert.Equal(t, "Active Member", s.Name)
	assert.Equal(t, 1000, s.CurrentThreshold)
	require.NotNil(t, s.NextThreshold)
	assert.Equal(t, 1500, *s.NextThreshold)
	assert.Equal(t, 300, s.XPToNext)
	assert.False(t, s.MaxLevel)

	s = Summarize(9000, MaxLevel)
	assert.True(t, s.MaxLevel)
	assert.Nil(t, s.NextThreshold)
	assert.Equal(t, 100.0, s.Progress)

	s = Summarize(50, 99)
	assert.Equal(t, UnknownLevelName, s.Name)
	assert.True(t, s.MaxLevel)
}

func TestTiers(t *testing.T) {
	tiers := Tiers()
	require.Len(t, tiers, MaxLevel)
	assert.Equal(t, Tier{Level: 5, Name: "Active Member", MinXP: 1000}, tiers[4])
}
