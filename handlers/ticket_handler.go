package handlers

import (
	"fmt"
	"strings"
	"time"

	"echo-helper/bot"
	"echo-helper/model"
	"echo-helper/tickets"
	"echo-helper/utils"
	"echo-helper/utils/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func ticketPanel() *discordgo.MessageSend {
	options := make([]discordgo.SelectMenuOption, 0, len(model.TicketTypes))
	emojis := map[model.TicketType]string{
		model.TicketSupport:      "❓",
		model.TicketMedia:        "🎥",
		model.TicketPlayerReport: "🚨",
		model.TicketAppeal:       "⚖️",
	}
	for _, t := range model.TicketTypes {
		options = append(options, discordgo.SelectMenuOption{
			Label: string(t),
			Value: string(t),
			Emoji: &discordgo.ComponentEmoji{Name: emojis[t]},
		})
	}
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "🎫 Echo Network Support",
			Description: "Need help? Select the type of ticket you want to open from the menu below.",
			Color:       0x5865F2,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    ticketSelectID,
					Placeholder: "Select a ticket type",
					Options:     options,
				},
			}},
		},
	}
}

func handleSetupTickets(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	channel := optionMap(i)["channel"].ChannelValue(s)
	if channel == nil {
		utils.SendErrorResponse(s, i, "Channel not found.")
		return
	}
	if _, err := s.ChannelMessageSendComplex(channel.ID, ticketPanel()); err != nil {
		logger.Error("Failed to send ticket panel", zap.String("channel", channel.ID), zap.Error(err))
		utils.SendErrorResponse(s, i, "Failed to send the ticket panel. Check my permissions in that channel.")
		return
	}
	utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ Ticket panel sent to <#%s>", channel.ID))
}

// handleTicketSelect opens the ticket form for the chosen type.
func handleTicketSelect(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	values := i.MessageComponentData().Values
	ticketType := string(model.TicketSupport)
	if len(values) > 0 {
		ticketType = values[0]
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: ticketModalPrefix + ticketType,
			Title:    "Create a Ticket",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  "username",
						Label:     "Minecraft Username",
						Style:     discordgo.TextInputShort,
						Required:  true,
						MaxLength: 16,
					},
				}},
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  "proof",
						Label:     "Describe your issue",
						Style:     discordgo.TextInputParagraph,
						Required:  true,
						MaxLength: 1000,
					},
				}},
			},
		},
	})
	if err != nil {
		logger.Warn("Failed to open ticket modal", zap.Error(err))
	}
}

func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	out := make(map[string]string)
	for _, row := range data.Components {
		r, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range r.Components {
			if input, ok := c.(*discordgo.TextInput); ok {
				out[input.CustomID] = input.Value
			}
		}
	}
	return out
}

func handleTicketModal(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	actor := actorOf(i)
	if !b.TicketCooldown.Allow(actor.ID) {
		utils.SendErrorResponse(s, i, fmt.Sprintf("Please wait %s before opening another ticket.", utils.FormatRemaining(b.TicketCooldown.Remaining(actor.ID))))
		return
	}
	if err := utils.DeferResponse(s, i, true); err != nil {
		b.TicketCooldown.Forget(actor.ID)
		logger.Warn("Failed to defer ticket creation", zap.Error(err))
		return
	}

	data := i.ModalSubmitData()
	values := modalValues(data)
	ctx, cancel := handlerContext()
	defer cancel()

	_, ch, err := b.Tickets.Create(ctx, tickets.CreateRequest{
		GuildID:          i.GuildID,
		Type:             model.TicketType(strings.TrimPrefix(data.CustomID, ticketModalPrefix)),
		Requester:        actor,
		DeclaredUsername: values["username"],
		Evidence:         values["proof"],
	})
	if err != nil {
		// 没开成功不算冷却
		b.TicketCooldown.Forget(actor.ID)
		logger.Error("Failed to create ticket", zap.String("user", actor.ID), zap.Error(err))
		utils.SendFollowUpError(s, i.Interaction, errorText(err, actor, b.GetConfig().Roles))
		return
	}
	utils.SendFollowUp(s, i.Interaction, fmt.Sprintf("✅ Ticket created! <#%s>", ch.ID))
}

func handleClaimButton(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	actor := actorOf(i)
	ctx, cancel := handlerContext()
	defer cancel()

	if _, err := b.Tickets.Claim(ctx, i.ChannelID, actor); err != nil {
		utils.SendErrorResponse(s, i, errorText(err, actor, b.GetConfig().Roles))
		return
	}
	utils.SendSimpleResponse(s, i, "✅ You have claimed this ticket.")
}

func handleUnclaimButton(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	actor := actorOf(i)
	ctx, cancel := handlerContext()
	defer cancel()

	if _, err := b.Tickets.Unclaim(ctx, i.ChannelID, actor); err != nil {
		utils.SendErrorResponse(s, i, errorText(err, actor, b.GetConfig().Roles))
		return
	}
	utils.SendSimpleResponse(s, i, "✅ Ticket unclaimed.")
}

func closeTicket(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	actor := actorOf(i)
	if err := utils.DeferResponse(s, i, true); err != nil {
		logger.Warn("Failed to defer close", zap.Error(err))
		return
	}
	ctx, cancel := handlerContext()
	defer cancel()

	res, err := b.Tickets.Close(ctx, i.ChannelID, actor)
	if err != nil {
		logger.Warn("Ticket close rejected", zap.String("channel", i.ChannelID), zap.String("user", actor.ID), zap.Error(err))
		utils.SendFollowUpError(s, i.Interaction, errorText(err, actor, b.GetConfig().Roles))
		return
	}
	utils.SendFollowUp(s, i.Interaction, fmt.Sprintf("✅ Ticket closed. Credited to <@%s> (%d tickets).", res.CreditedTo, res.Count))
}

func handleCloseButton(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	closeTicket(s, i, b)
}

func handleCloseCommand(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	closeTicket(s, i, b)
}

func handleRename(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	actor := actorOf(i)
	ctx, cancel := handlerContext()
	defer cancel()

	name, err := b.Tickets.Rename(ctx, i.ChannelID, actor, optionMap(i)["new_name"].StringValue())
	if err != nil {
		utils.SendErrorResponse(s, i, errorText(err, actor, b.GetConfig().Roles))
		return
	}
	utils.SendPublicResponse(s, i, fmt.Sprintf("✅ Ticket renamed to **%s**", name))
}

func handleAddUser(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	actor := actorOf(i)
	user := optionMap(i)["user"].UserValue(s)
	ctx, cancel := handlerContext()
	defer cancel()

	if err := b.Tickets.AddParticipant(ctx, i.ChannelID, actor, user.ID); err != nil {
		utils.SendErrorResponse(s, i, errorText(err, actor, b.GetConfig().Roles))
		return
	}
	utils.SendPublicResponse(s, i, fmt.Sprintf("✅ Added <@%s> to the ticket", user.ID))
}

func handleRemoveUser(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	actor := actorOf(i)
	user := optionMap(i)["user"].UserValue(s)
	ctx, cancel := handlerContext()
	defer cancel()

	if err := b.Tickets.RemoveParticipant(ctx, i.ChannelID, actor, user.ID); err != nil {
		utils.SendErrorResponse(s, i, errorText(err, actor, b.GetConfig().Roles))
		return
	}
	utils.SendPublicResponse(s, i, fmt.Sprintf("✅ Removed <@%s> from the ticket", user.ID))
}

func handleTicketStats(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	ctx, cancel := handlerContext()
	defer cancel()

	st, err := b.Tickets.Stats(ctx, 5)
	if err != nil {
		logger.Error("Failed to load ticket stats", zap.Error(err))
		utils.SendErrorResponse(s, i, "Failed to load ticket statistics.")
		return
	}
	utils.SendEmbedResponse(s, i, statsEmbed(st), nil, true)
}

func statsEmbed(st tickets.Stats) *discordgo.MessageEmbed {
	var active, closed strings.Builder
	for _, t := range model.TicketTypes {
		fmt.Fprintf(&active, "**%s:** %d\n", t, st.Active[t])
		fmt.Fprintf(&closed, "**%s:** %d\n", t, st.ClosedByType[t])
	}
	top := "No tickets closed yet"
	if len(st.TopClosers) > 0 {
		var sb strings.Builder
		for n, e := range st.TopClosers {
			fmt.Fprintf(&sb, "%d. <@%s> - %d\n", n+1, e.UserID, e.Count)
		}
		top = sb.String()
	}
	return &discordgo.MessageEmbed{
		Title: "📊 Ticket Statistics",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: fmt.Sprintf("Open Tickets (%d, %d claimed)", st.ActiveTotal, st.Claimed), Value: active.String()},
			{Name: fmt.Sprintf("Closed Tickets (%d)", st.Closed), Value: closed.String()},
			{Name: "Top Closers", Value: top},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
