// Package platform implements the consumer-side platform interfaces on top
// of a discordgo session.
package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"echo-helper/grants"
	"echo-helper/model"

	"github.com/bwmarrin/discordgo"
)

const (
	historyPage = 100

	viewPermissions = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory | discordgo.PermissionAttachFiles
)

// Discord is the live platform adapter.
type Discord struct {
	s *discordgo.Session
}

func NewDiscord(s *discordgo.Session) *Discord {
	return &Discord{s: s}
}

func (d *Discord) Session() *discordgo.Session {
	return d.s
}

// IsNotFound reports whether err is a REST 404 or an unknown-entity code.
func IsNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownRole, discordgo.ErrCodeUnknownChannel,
			discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownUser:
			return true
		}
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

func isForbidden(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeMissingPermissions {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden
}

func (d *Discord) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return d.s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
}

// RemoveRole treats a member or role that is already gone as removed.
func (d *Discord) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	err := d.s.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
	if err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

// StripRoles removes every role from the member.
func (d *Discord) StripRoles(ctx context.Context, guildID, userID string) error {
	empty := []string{}
	_, err := d.s.GuildMemberEdit(guildID, userID, &discordgo.GuildMemberParams{Roles: &empty}, discordgo.WithContext(ctx))
	if err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

func (d *Discord) SetNickname(ctx context.Context, guildID, userID, nick string) error {
	err := d.s.GuildMemberNickname(guildID, userID, nick, discordgo.WithContext(ctx))
	switch {
	case err == nil, IsNotFound(err):
		return nil
	case isForbidden(err):
		return fmt.Errorf("%w: %v", grants.ErrNicknameForbidden, err)
	default:
		return err
	}
}

func (d *Discord) SystemChannel(ctx context.Context, guildID string) (string, error) {
	if g, err := d.s.State.Guild(guildID); err == nil {
		return g.SystemChannelID, nil
	}
	g, err := d.s.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return g.SystemChannelID, nil
}

func (d *Discord) SendNotice(ctx context.Context, channelID string, n model.Notice) (string, error) {
	msg, err := d.s.ChannelMessageSendComplex(channelID, MessageSend(n), discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (d *Discord) EditNotice(ctx context.Context, channelID, messageID string, n model.Notice) error {
	embeds := []*discordgo.MessageEmbed{}
	if e := Embed(n); e != nil {
		embeds = append(embeds, e)
	}
	components := Components(n.Controls)
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err := d.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Content:    &n.Content,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) SendDirect(ctx context.Context, userID string, n model.Notice) error {
	ch, err := d.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open DM channel: %w", err)
	}
	_, err = d.s.ChannelMessageSendComplex(ch.ID, MessageSend(n), discordgo.WithContext(ctx))
	return err
}

func (d *Discord) channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if ch, err := d.s.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return d.s.Channel(channelID, discordgo.WithContext(ctx))
}

func (d *Discord) Channel(ctx context.Context, channelID string) (model.ChannelInfo, error) {
	ch, err := d.channel(ctx, channelID)
	if err != nil {
		if IsNotFound(err) {
			return model.ChannelInfo{}, fmt.Errorf("%w: %s", model.ErrChannelNotFound, channelID)
		}
		return model.ChannelInfo{}, err
	}
	info := model.ChannelInfo{
		ID:       ch.ID,
		GuildID:  ch.GuildID,
		Name:     ch.Name,
		Topic:    ch.Topic,
		ParentID: ch.ParentID,
	}
	if ch.ParentID != "" {
		if parent, err := d.channel(ctx, ch.ParentID); err == nil {
			info.ParentName = parent.Name
		}
	}
	return info, nil
}

// Overwrites converts visibility rules into channel permission overwrites.
func Overwrites(rules []model.VisibilityRule) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(rules))
	for _, r := range rules {
		if r.PrincipalID == "" {
			continue
		}
		ow := &discordgo.PermissionOverwrite{ID: r.PrincipalID, Type: discordgo.PermissionOverwriteTypeRole}
		if r.Kind == model.PrincipalMember {
			ow.Type = discordgo.PermissionOverwriteTypeMember
		}
		if r.Allow {
			ow.Allow = viewPermissions
		} else {
			ow.Deny = discordgo.PermissionViewChannel
		}
		out = append(out, ow)
	}
	return out
}

func (d *Discord) CreateChannel(ctx context.Context, guildID, name, parentID, topic string, rules []model.VisibilityRule) (model.ChannelInfo, error) {
	ch, err := d.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                topic,
		ParentID:             parentID,
		PermissionOverwrites: Overwrites(rules),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return model.ChannelInfo{}, err
	}
	return model.ChannelInfo{ID: ch.ID, GuildID: ch.GuildID, Name: ch.Name, Topic: ch.Topic, ParentID: ch.ParentID}, nil
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := d.s.ChannelDelete(channelID, discordgo.WithContext(ctx))
	if err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

func (d *Discord) RenameChannel(ctx context.Context, channelID, name string) error {
	_, err := d.s.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) SetVisibility(ctx context.Context, channelID string, rules ...model.VisibilityRule) error {
	for _, ow := range Overwrites(rules) {
		if err := d.s.ChannelPermissionSet(channelID, ow.ID, ow.Type, ow.Allow, ow.Deny, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("set overwrite for %s: %w", ow.ID, err)
		}
	}
	return nil
}

// History pages backwards through the channel and returns messages oldest first.
func (d *Discord) History(ctx context.Context, channelID string) ([]model.HistoryMessage, error) {
	return collectHistory(ctx, func(before string) ([]*discordgo.Message, error) {
		return d.s.ChannelMessages(channelID, historyPage, before, "", "", discordgo.WithContext(ctx))
	})
}

// collectHistory pages newest-first until a short page and returns the
// whole history oldest-first.
func collectHistory(ctx context.Context, fetch func(before string) ([]*discordgo.Message, error)) ([]model.HistoryMessage, error) {
	var (
		out    []model.HistoryMessage
		before string
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(before)
		if err != nil {
			return nil, err
		}
		for _, m := range page {
			name := "Unknown"
			if m.Author != nil {
				name = m.Author.Username
			}
			out = append(out, model.HistoryMessage{AuthorName: name, Content: m.Content, Timestamp: m.Timestamp})
		}
		if len(page) < historyPage {
			break
		}
		before = page[len(page)-1].ID
	}
	slices.Reverse(out)
	return out, nil
}

// Member resolves a guild member into an Actor.
func (d *Discord) Member(ctx context.Context, guildID, userID string) (model.Actor, error) {
	m, err := d.s.State.Member(guildID, userID)
	if err != nil {
		if m, err = d.s.GuildMember(guildID, userID, discordgo.WithContext(ctx)); err != nil {
			return model.Actor{}, err
		}
	}
	return ActorFromMember(m), nil
}

// ActorFromMember maps a member to its id, username and roles.
func ActorFromMember(m *discordgo.Member) model.Actor {
	if m == nil || m.User == nil {
		return model.Actor{}
	}
	return model.Actor{ID: m.User.ID, Name: m.User.Username, Roles: m.Roles}
}

// Embed converts a notice to an embed; nil when the notice has no embed part.
func Embed(n model.Notice) *discordgo.MessageEmbed {
	if n.Title == "" && n.Body == "" && len(n.Fields) == 0 {
		return nil
	}
	e := &discordgo.MessageEmbed{Title: n.Title, Description: n.Body, Color: n.Color}
	for _, f := range n.Fields {
		value := f.Value
		if value == "" {
			value = "\u200b"
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: value, Inline: f.Inline})
	}
	return e
}

// NoticeFromEmbed is the inverse of Embed, used when rewriting posted cards.
func NoticeFromEmbed(e *discordgo.MessageEmbed) model.Notice {
	if e == nil {
		return model.Notice{}
	}
	n := model.Notice{Title: e.Title, Body: e.Description, Color: e.Color}
	for _, f := range e.Fields {
		n.Fields = append(n.Fields, model.NoticeField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return n
}

// Components lays controls out five to a row.
func Components(controls []model.Control) []discordgo.MessageComponent {
	if len(controls) == 0 {
		return nil
	}
	var rows []discordgo.MessageComponent
	for start := 0; start < len(controls); start += 5 {
		end := min(start+5, len(controls))
		row := discordgo.ActionsRow{}
		for _, c := range controls[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				CustomID: c.CustomID,
				Label:    c.Label,
				Style:    buttonStyle(c.Style),
			})
		}
		rows = append(rows, row)
	}
	return rows
}

func buttonStyle(s model.ControlStyle) discordgo.ButtonStyle {
	switch s {
	case model.ControlSecondary:
		return discordgo.SecondaryButton
	case model.ControlSuccess:
		return discordgo.SuccessButton
	case model.ControlDanger:
		return discordgo.DangerButton
	default:
		return discordgo.PrimaryButton
	}
}

// MessageSend builds a full message from a notice.
func MessageSend(n model.Notice) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{Content: n.Content, Components: Components(n.Controls)}
	if e := Embed(n); e != nil {
		msg.Embeds = []*discordgo.MessageEmbed{e}
	}
	for _, f := range n.Files {
		msg.Files = append(msg.Files, &discordgo.File{Name: f.Name, ContentType: "text/plain", Reader: bytes.NewReader(f.Content)})
	}
	return msg
}
