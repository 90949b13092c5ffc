package leveling

import (
	"fmt"
	"math"
)

// LevelForExperience returns the highest level whose threshold is <= xp.
// Totals below the first threshold map to level 1 and anything past the
// last threshold stays at MaxLevel.
func LevelForExperience(xp int) int {
	level := MinLevel
	for i := 1; i < MaxLevel; i++ {
		if levelThresholds[i] > xp {
			break
		}
		level = i + 1
	}
	return level
}

// MinimumXPForLevel returns the cumulative XP required to hold level.
func MinimumXPForLevel(level int) (int, error) {
	if !ValidLevel(level) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	return levelThresholds[level-1], nil
}

// NextLevelThreshold returns the threshold of level+1, or Infinite at the cap.
func NextLevelThreshold(level int) (int, error) {
	if !ValidLevel(level) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	if level == MaxLevel {
		return Infinite, nil
	}
	return levelThresholds[level], nil
}

// ProgressWithinLevel returns how far xp has travelled from the current
// level's threshold towards the next one, as a percentage in [0, 100].
func ProgressWithinLevel(xp, level int) (float64, error) {
	low, err := MinimumXPForLevel(level)
	if err != nil {
		return 0, err
	}
	if level == MaxLevel {
		return 100, nil
	}
	high := levelThresholds[level]
	span := high - low
	if span <= 0 {
		return 100, nil
	}

	pct := float64(xp-low) / float64(span) * 100
	return math.Max(0, math.Min(100, pct)), nil
}

// LevelName returns the display name of a level. Out-of-range levels get
// UnknownLevelName instead of an error so that display code never fails.
func LevelName(level int) string {
	if !ValidLevel(level) {
		return UnknownLevelName
	}
	return levelNames[level-1]
}

// TopUp returns the XP that must be added to experience for it to satisfy
// the threshold of level. Zero when experience already covers it.
func TopUp(experience, level int) (int, error) {
	minXP, err := MinimumXPForLevel(level)
	if err != nil {
		return 0, err
	}
	if experience >= minXP {
		return 0, nil
	}
	return minXP - experience, nil
}

// Summary is the display bundle for a profile's level.
type Summary struct {
	Level            int     `json:"level"`
	Name             string  `json:"name"`
	Experience       int     `json:"experience"`
	CurrentThreshold int     `json:"currentThreshold"`
	NextThreshold    *int    `json:"nextThreshold"`
	XPToNext         int     `json:"xpToNext"`
	Progress         float64 `json:"progress"`
	MaxLevel         bool    `json:"maxLevel"`
}

// Summarize builds a Summary. Stored levels outside the table are clamped
// for the numeric fields while the name still reports them as unknown.
func Summarize(xp, level int) Summary {
	s := Summary{
		Level:      level,
		Name:       LevelName(level),
		Experience: xp,
	}

	effective := level
	if effective < MinLevel {
		effective = MinLevel
	} else if effective > MaxLevel {
		effective = MaxLevel
	}

	s.CurrentThreshold = levelThresholds[effective-1]
	s.Progress, _ = ProgressWithinLevel(xp, effective)
	if effective == MaxLevel {
		s.MaxLevel = true
		return s
	}

	next := levelThresholds[effective]
	s.NextThreshold = &next
	if remaining := next - xp; remaining > 0 {
		s.XPToNext = remaining
	}
	return s
}

// Tier describes one row of the threshold table.
type Tier struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
	MinXP int    `json:"minXp"`
}

// Tiers returns the whole table in level order.
func Tiers() []Tier {
	tiers := make([]Tier, 0, MaxLevel)
	for i := 0; i < MaxLevel; i++ {
		tiers = append(tiers, Tier{Level: i + 1, Name: levelNames[i], MinXP: levelThresholds[i]})
	}
	return tiers
}
