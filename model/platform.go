package model

import (
	"errors"
	"time"
)

// ErrChannelNotFound is returned by platform adapters for a channel that no longer exists.
var ErrChannelNotFound = errors.New("channel not found")

// Actor is the member invoking a transition.
type Actor struct {
	ID    string
	Name  string
	Roles []string
}

// HasRole reports whether the actor carries roleID.
func (a Actor) HasRole(roleID string) bool {
	if roleID == "" {
		return false
	}
	for _, r := range a.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// ChannelInfo is the ambient metadata of a channel.
type ChannelInfo struct {
	ID         string
	GuildID    string
	Name       string
	Topic      string
	ParentID   string
	ParentName string
}

// PrincipalKind distinguishes role and member visibility rules.
type PrincipalKind int

const (
	PrincipalRole PrincipalKind = iota
	PrincipalMember
)

// VisibilityRule is an allow/deny entry for one principal on a channel.
type VisibilityRule struct {
	PrincipalID string
	Kind        PrincipalKind
	Allow       bool
}

// Attachment is a file posted alongside a notice.
type Attachment struct {
	Name    string
	Content []byte
}

// NoticeField is a titled line inside a notice.
type NoticeField struct {
	Name   string
	Value  string
	Inline bool
}

// Notice is a platform-neutral message; the adapter decides how to render it.
type Notice struct {
	Content  string
	Title    string
	Body     string
	Color    int
	Fields   []NoticeField
	Files    []Attachment
	Controls []Control
}

// ControlStyle mirrors the platform's button styles.
type ControlStyle int

const (
	ControlPrimary ControlStyle = iota + 1
	ControlSecondary
	ControlSuccess
	ControlDanger
)

// Control is an action button attached to a notice.
type Control struct {
	CustomID string
	Label    string
	Style    ControlStyle
}

// HistoryMessage is one message of a channel history read.
type HistoryMessage struct {
	AuthorName string
	Content    string
	Timestamp  time.Time
}
