package model

import "time"

// Warning is one entry of a member's append-only warning history.
type Warning struct {
	Reason    string    `json:"reason"`
	WarnedBy  string    `json:"warned_by"`
	Timestamp time.Time `json:"timestamp"`
}

// WarningThreshold is the count at which all roles are stripped.
const WarningThreshold = 5
