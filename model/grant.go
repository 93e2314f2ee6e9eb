package model

import "time"

// Grant is a durable (subject, resource, expiry) record. The reconciliation
// loop revokes the resource once ExpiresAt has passed and then removes it.
type Grant struct {
	UserID    string    `json:"user_id"`
	GuildID   string    `json:"guild_id"`
	RoleID    string    `json:"role_id,omitempty"`
	ExpiresAt time.Time `json:"end_time"`
	GrantedBy string    `json:"added_by,omitempty"`
	Duration  string    `json:"duration,omitempty"`

	// AFK overlay
	OriginalNickname string `json:"original_nickname,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// Expired reports whether the grant is due for revocation at now.
func (g Grant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// Remaining is the time left before expiry, zero or negative once due.
func (g Grant) Remaining(now time.Time) time.Duration {
	return g.ExpiresAt.Sub(now)
}
