package leveling

import (
	"errors"
	"math"
)

const (
	MinLevel = 1
	MaxLevel = 13

	// Infinite is returned as the next threshold at the level cap.
	Infinite = math.MaxInt

	// UnknownLevelName is shown for levels outside the table.
	UnknownLevelName = "Unknown"
)

// ErrInvalidLevel is returned when a level is outside [MinLevel, MaxLevel].
var ErrInvalidLevel = errors.New("invalid level")

// levelThresholds holds the cumulative XP required to hold each level.
// Index 0 = level 1 (0 XP), index 4 = level 5 (1000 XP), etc.
var levelThresholds = [MaxLevel]int{
	0,    // Level 1
	100,  // Level 2
	300,  // Level 3
	600,  // Level 4
	1000, // Level 5
	1500, // Level 6
	2100, // Level 7
	2800, // Level 8
	3600, // Level 9
	4500, // Level 10
	5500, // Level 11
	6600, // Level 12
	8000, // Level 13
}

var levelNames = [MaxLevel]string{
	"Newcomer",
	"Neighbour",
	"Contributor",
	"Regular",
	"Active Member",
	"Trusted Member",
	"Veteran",
	"Expert",
	"Mentor",
	"Guardian",
	"Ambassador",
	"Legend",
	"Admin",
}

// Thresholds returns a copy of the threshold table.
func Thresholds() []int {
	out := make([]int, MaxLevel)
	copy(out, levelThresholds[:])
	return out
}

// ValidLevel reports whether level is inside the table.
func ValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}
