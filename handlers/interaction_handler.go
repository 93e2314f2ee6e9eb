package handlers

import (
	"strings"

	"echo-helper/applications"
	"echo-helper/bot"
	"echo-helper/tickets"
	"echo-helper/utils/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	ticketSelectID    = "ticket_type_select"
	ticketModalPrefix = "ticket_modal:"
	ticketLBPrefix    = "ticket_lb"
	reportLBPrefix    = "report_lb"
)

func handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic in interaction handler", zap.Any("panic", r))
		}
	}()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if h, ok := b.CommandHandlers[i.ApplicationCommandData().Name]; ok {
			h(s, i)
		}
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		switch {
		case customID == ticketSelectID:
			handleTicketSelect(s, i, b)
		case customID == tickets.ControlClaim:
			handleClaimButton(s, i, b)
		case customID == tickets.ControlUnclaim:
			handleUnclaimButton(s, i, b)
		case customID == tickets.ControlClose:
			handleCloseButton(s, i, b)
		case customID == applications.ApplyControl:
			handleApplyButton(s, i, b)
		case strings.HasPrefix(customID, applications.AcceptPrefix), strings.HasPrefix(customID, applications.DenyPrefix):
			handleApplicationDecision(s, i, b)
		case strings.HasPrefix(customID, ticketLBPrefix+":"):
			handleLeaderboardPage(s, i, b, ticketLBPrefix)
		case strings.HasPrefix(customID, reportLBPrefix+":"):
			handleLeaderboardPage(s, i, b, reportLBPrefix)
		}
	case discordgo.InteractionModalSubmit:
		if strings.HasPrefix(i.ModalSubmitData().CustomID, ticketModalPrefix) {
			handleTicketModal(s, i, b)
		}
	}
}
