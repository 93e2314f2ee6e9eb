package model

import "time"

// MaxLevel is the level cap.
const MaxLevel = 50

// LevelRecord tracks XP progression for one member.
type LevelRecord struct {
	XP              int        `json:"xp"`
	Level           int        `json:"level"`
	RewardExpiresAt *time.Time `json:"echo_time"`
}

// NewLevelRecord returns the lazily created record for a first-time author.
func NewLevelRecord() LevelRecord {
	return LevelRecord{XP: 0, Level: 1}
}
