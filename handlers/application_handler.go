package handlers

import (
	"fmt"

	"echo-helper/applications"
	"echo-helper/bot"
	"echo-helper/platform"
	"echo-helper/utils"
	"echo-helper/utils/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func handleSetupStaffApplications(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	channel := optionMap(i)["channel"].ChannelValue(s)
	if channel == nil {
		utils.SendErrorResponse(s, i, "Channel not found.")
		return
	}
	if _, err := s.ChannelMessageSendComplex(channel.ID, platform.MessageSend(applications.PanelNotice())); err != nil {
		logger.Error("Failed to send application panel", zap.String("channel", channel.ID), zap.Error(err))
		utils.SendErrorResponse(s, i, "Failed to send the application panel.")
		return
	}
	utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ Staff application panel sent to <#%s>", channel.ID))
}

func handleApplyButton(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	actor := actorOf(i)
	ctx, cancel := handlerContext()
	defer cancel()

	if err := b.Applications.Begin(ctx, actor.ID, actor.Name); err != nil {
		utils.SendErrorResponse(s, i, errorText(err, actor, b.GetConfig().Roles))
		return
	}
	utils.SendSimpleResponse(s, i, "✅ Check your DMs! The application has started.")
}

func handleApplicationDecision(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	actor := actorOf(i)
	applicantID, accept, ok := applications.ParseDecision(i.MessageComponentData().CustomID)
	if !ok || i.Message == nil || len(i.Message.Embeds) == 0 {
		utils.SendErrorResponse(s, i, "This application card is no longer valid.")
		return
	}

	ctx, cancel := handlerContext()
	defer cancel()
	_, err := b.Applications.Decide(ctx, applications.Decision{
		ChannelID:   i.ChannelID,
		MessageID:   i.Message.ID,
		ApplicantID: applicantID,
		Reviewer:    actor,
		Accept:      accept,
		Original:    platform.NoticeFromEmbed(i.Message.Embeds[0]),
	})
	if err != nil {
		utils.SendErrorResponse(s, i, errorText(err, actor, b.GetConfig().Roles))
		return
	}
	verdict := "denied"
	if accept {
		verdict = "accepted"
	}
	utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ Application from <@%s> %s.", applicantID, verdict))
}
