package model

import "time"

// TicketType is the kind of help request a ticket was opened for.
type TicketType string

const (
	TicketSupport      TicketType = "Support Tickets"
	TicketMedia        TicketType = "Media Applications"
	TicketPlayerReport TicketType = "Player Reports"
	TicketAppeal       TicketType = "Appeals"
)

// TicketTypes lists the selectable ticket types in panel order.
var TicketTypes = []TicketType{TicketSupport, TicketMedia, TicketPlayerReport, TicketAppeal}

// Ticket is the persisted state of one open ticket channel, keyed by channel ID.
type Ticket struct {
	ChannelID    string     `json:"channel_id"`
	UserID       string     `json:"user_id"`
	Username     string     `json:"username"`
	Type         TicketType `json:"type"`
	Category     string     `json:"category"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
	ClaimedBy    *string    `json:"claimed_by"`
	WarningSent  bool       `json:"warning_sent"`
	Closing      bool       `json:"closing,omitempty"`
	// CreditedTo is set by the first close attempt and kept across retries.
	CreditedTo string `json:"credited_to,omitempty"`
}

// Claimed reports whether a staff member currently holds the ticket.
func (t *Ticket) Claimed() bool {
	return t.ClaimedBy != nil && *t.ClaimedBy != ""
}

// Claimant returns the claimant ID or "" when unclaimed.
func (t *Ticket) Claimant() string {
	if t.ClaimedBy == nil {
		return ""
	}
	return *t.ClaimedBy
}

// ClosedTicket is the summary kept after a ticket channel is deleted.
type ClosedTicket struct {
	ChannelID   string     `json:"channel_id"`
	ChannelName string     `json:"channel_name"`
	Type        TicketType `json:"type"`
	Category    string     `json:"category"`
	UserID      string     `json:"user_id"`
	ClosedBy    string     `json:"closed_by"`
	CreditedTo  string     `json:"credited_to"`
	ClosedAt    time.Time  `json:"closed_at"`
}
