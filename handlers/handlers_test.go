package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"echo-helper/applications"
	"echo-helper/model"
	"echo-helper/moderation"
	"echo-helper/tickets"
	"echo-helper/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRoles = model.RoleConfig{Helper: "helper", TicketAdmin: "admin", Council: "council"}

func TestErrorTextShowsClaimHolderOnlyToTicketAdmins(t *testing.T) {
	err := fmt.Errorf("claim: %w", &tickets.AlreadyClaimedError{ClaimedBy: "S"})

	admin := model.Actor{ID: "A", Roles: []string{"admin"}}
	helper := model.Actor{ID: "H", Roles: []string{"helper"}}
	assert.Equal(t, "This ticket is already claimed by <@S>", errorText(err, admin, testRoles))
	assert.Equal(t, "This ticket is already claimed!", errorText(err, helper, testRoles))
}

func TestErrorTextUsesSentinelMessage(t *testing.T) {
	actor := model.Actor{ID: "U"}
	wrapped := fmt.Errorf("%w: unit %q not one of %q", utils.ErrInvalidDuration, 'x', utils.GrantUnits)

	assert.Equal(t, "Invalid duration", errorText(wrapped, actor, testRoles))
	assert.Equal(t, "This command can only be used in ticket channels", errorText(tickets.ErrNotTicketChannel, actor, testRoles))
	assert.Equal(t, "No pending evidence", errorText(moderation.ErrNoEvidence, actor, testRoles))
	assert.Equal(t, "I couldn't send you a direct message. Please make sure your DMs are open",
		errorText(fmt.Errorf("%w: blocked", applications.ErrDMClosed), actor, testRoles))
	assert.Equal(t, "You don't have permission to do that!", errorText(tickets.ErrForbidden, actor, testRoles))
	assert.Equal(t, "An error occurred. Please try again.", errorText(os.ErrClosed, actor, testRoles))
}

func TestEvidenceOf(t *testing.T) {
	media := &discordgo.Message{Attachments: []*discordgo.MessageAttachment{
		{URL: "https://cdn/a.txt", ContentType: "text/plain"},
		{URL: "https://cdn/b.png", ContentType: "image/png"},
	}}
	assert.Equal(t, "https://cdn/b.png", evidenceOf(media))

	link := &discordgo.Message{Content: " https://youtu.be/clip "}
	assert.Equal(t, "https://youtu.be/clip", evidenceOf(link))

	assert.Empty(t, evidenceOf(&discordgo.Message{Content: "look at this"}))
}

func TestModalValues(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		CustomID: ticketModalPrefix + string(model.TicketAppeal),
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{&discordgo.TextInput{CustomID: "username", Value: "Steve"}}},
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{&discordgo.TextInput{CustomID: "proof", Value: "banned by mistake"}}},
		},
	}
	assert.Equal(t, map[string]string{"username": "Steve", "proof": "banned by mistake"}, modalValues(data))
}

func TestTicketPanelOffersEveryType(t *testing.T) {
	msg := ticketPanel()
	require.Len(t, msg.Components, 1)
	row := msg.Components[0].(discordgo.ActionsRow)
	menu := row.Components[0].(discordgo.SelectMenu)
	assert.Equal(t, ticketSelectID, menu.CustomID)
	require.Len(t, menu.Options, len(model.TicketTypes))
	for n, tt := range model.TicketTypes {
		assert.Equal(t, string(tt), menu.Options[n].Value)
	}
}

func TestStatsEmbed(t *testing.T) {
	e := statsEmbed(tickets.Stats{
		Active:       map[model.TicketType]int{model.TicketSupport: 2},
		ActiveTotal:  2,
		Claimed:      1,
		Closed:       3,
		ClosedByType: map[model.TicketType]int{model.TicketAppeal: 3},
		TopClosers:   []moderation.Entry{{UserID: "S", Count: 3}},
	})
	require.Len(t, e.Fields, 3)
	assert.Equal(t, "Open Tickets (2, 1 claimed)", e.Fields[0].Name)
	assert.Contains(t, e.Fields[0].Value, "**Support Tickets:** 2")
	assert.Contains(t, e.Fields[1].Value, "**Appeals:** 3")
	assert.Equal(t, "1. <@S> - 3\n", e.Fields[2].Value)

	empty := statsEmbed(tickets.Stats{})
	assert.Equal(t, "No tickets closed yet", empty.Fields[2].Value)
}

func TestPluralAndCapitalize(t *testing.T) {
	assert.Equal(t, "1 ticket", plural(1, "ticket"))
	assert.Equal(t, "0 reports", plural(0, "report"))
	assert.Equal(t, "Abc", capitalize("abc"))
	assert.Equal(t, "", capitalize(""))
	assert.Equal(t, "I couldn't", capitalize("I couldn't"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Nick", displayName(&discordgo.Member{Nick: "Nick", User: &discordgo.User{Username: "user"}}))
	assert.Equal(t, "Global", displayName(&discordgo.Member{User: &discordgo.User{Username: "user", GlobalName: "Global"}}))
	assert.Equal(t, "user", displayName(&discordgo.Member{User: &discordgo.User{Username: "user"}}))
	assert.Equal(t, "", displayName(nil))
}

func TestDataSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tickets.json"), make([]byte, 100), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "x.db"), make([]byte, 28), 0o644))

	assert.EqualValues(t, 128, dataSize(dir))
	assert.Zero(t, dataSize(filepath.Join(dir, "missing")))
}
