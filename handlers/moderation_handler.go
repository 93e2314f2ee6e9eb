package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"echo-helper/bot"
	"echo-helper/model"
	"echo-helper/moderation"
	"echo-helper/utils"
	"echo-helper/utils/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// latestEvidence returns the media URL or link of the newest message in the evidence channel.
func latestEvidence(s *discordgo.Session, channelID string) string {
	if channelID == "" {
		return ""
	}
	msgs, err := s.ChannelMessages(channelID, 1, "", "", "")
	if err != nil || len(msgs) == 0 {
		if err != nil {
			logger.Warn("Failed to read evidence channel", zap.String("channel", channelID), zap.Error(err))
		}
		return ""
	}
	return evidenceOf(msgs[0])
}

// evidenceOf picks the first image or video attachment, else a link in the content.
func evidenceOf(m *discordgo.Message) string {
	for _, a := range m.Attachments {
		if moderation.IsEvidenceMedia(a.ContentType) {
			return a.URL
		}
	}
	if content := strings.TrimSpace(m.Content); moderation.IsEvidenceLink(content) {
		return content
	}
	return ""
}

func handleReport(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	actor := actorOf(i)
	opts := optionMap(i)
	cfg := b.GetConfig()
	bypass := utils.HasCapability(actor.Roles, utils.TeamCapability, cfg.Roles)

	bypassEvidence := ""
	if bypass {
		bypassEvidence = latestEvidence(s, cfg.Channels.Evidence)
	}

	ctx, cancel := handlerContext()
	defer cancel()
	evidence, count, err := b.Reports.File(ctx, actor.ID, bypass, bypassEvidence)
	if err != nil {
		if errors.Is(err, moderation.ErrNoEvidence) {
			utils.SendErrorResponse(s, i, fmt.Sprintf("Please upload your evidence in <#%s> first!", cfg.Channels.Evidence))
			return
		}
		logger.Error("Failed to file report", zap.String("user", actor.ID), zap.Error(err))
		utils.SendErrorResponse(s, i, errorText(err, actor, cfg.Roles))
		return
	}

	utils.SendEmbedResponse(s, i, &discordgo.MessageEmbed{
		Title: "🚨 Player Report",
		Color: 0xff0000,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reported Player", Value: opts["username"].StringValue(), Inline: true},
			{Name: "Duration", Value: opts["duration"].StringValue(), Inline: true},
			{Name: "Reason", Value: opts["reason"].StringValue()},
			{Name: "Evidence", Value: evidence},
			{Name: "Reported By", Value: fmt.Sprintf("<@%s> (%s)", actor.ID, plural(count, "report")), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}, nil, false)
}

func handleWarn(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	actor := actorOf(i)
	opts := optionMap(i)
	user := opts["user"].UserValue(s)
	reason := opts["reason"].StringValue()
	ctx, cancel := handlerContext()
	defer cancel()

	res, err := b.Warnings.Warn(ctx, i.GuildID, user.ID, reason, actor.ID)
	if err != nil {
		logger.Error("Failed to warn user", zap.String("user", user.ID), zap.Error(err))
		utils.SendErrorResponse(s, i, "Failed to record the warning.")
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: "⚠️ User Warned",
		Color: 0xff9900,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: "<@" + user.ID + ">", Inline: true},
			{Name: "Warned By", Value: "<@" + actor.ID + ">", Inline: true},
			{Name: "Warning Count", Value: fmt.Sprintf("%d/%d", res.Count, model.WarningThreshold), Inline: true},
			{Name: "Reason", Value: reason},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	switch {
	case res.Stripped:
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Action Taken", Value: "All roles have been stripped."})
	case res.StripErr != nil:
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Action Failed", Value: "Could not strip roles. Check my role position."})
	}
	b.Audit.Warn(ctx, "Warnings", "Warn", fmt.Sprintf("<@%s> warned <@%s> (%d/%d): %s", actor.ID, user.ID, res.Count, model.WarningThreshold, reason))
	utils.SendEmbedResponse(s, i, embed, nil, false)
}

func handleWarnings(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	user := optionMap(i)["user"].UserValue(s)
	ctx, cancel := handlerContext()
	defer cancel()

	list, err := b.Warnings.List(ctx, user.ID)
	if err != nil {
		logger.Error("Failed to list warnings", zap.String("user", user.ID), zap.Error(err))
		utils.SendErrorResponse(s, i, "Failed to load warnings.")
		return
	}
	if len(list) == 0 {
		utils.SendSimpleResponse(s, i, fmt.Sprintf("<@%s> has no warnings.", user.ID))
		return
	}

	fields := make([]*discordgo.MessageEmbedField, 0, len(list))
	for n, w := range list {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Warning %d", n+1),
			Value: fmt.Sprintf("**Reason:** %s\n**By:** <@%s>\n**When:** <t:%d:R>", w.Reason, w.WarnedBy, w.Timestamp.Unix()),
		})
	}
	// embed 最多 25 个字段
	if len(fields) > 25 {
		fields = fields[len(fields)-25:]
	}
	utils.SendEmbedResponse(s, i, &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("⚠️ Warnings for %s", user.Username),
		Color:     0xff9900,
		Fields:    fields,
		Footer:    &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Total: %d/%d", len(list), model.WarningThreshold)},
		Timestamp: time.Now().Format(time.RFC3339),
	}, nil, true)
}

func handleTempRole(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	actor := actorOf(i)
	opts := optionMap(i)
	user := opts["user"].UserValue(s)
	role := opts["role"].RoleValue(s, i.GuildID)
	label := opts["duration"].StringValue()

	d, err := utils.ParseDuration(label, utils.GrantUnits)
	if err != nil {
		utils.SendErrorResponse(s, i, "Invalid duration format! Use: 1m, 1h, 1d, 1w")
		return
	}
	if role == nil {
		utils.SendErrorResponse(s, i, "Role not found.")
		return
	}

	ctx, cancel := handlerContext()
	defer cancel()
	g, err := b.TempRoles.Grant(ctx, i.GuildID, user.ID, role.ID, d, label, actor.ID)
	if err != nil {
		logger.Error("Failed to grant temp role", zap.String("user", user.ID), zap.String("role", role.ID), zap.Error(err))
		utils.SendErrorResponse(s, i, "Failed to add the role. Check my role position.")
		return
	}
	utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ Gave <@&%s> to <@%s> until <t:%d:f>", role.ID, user.ID, g.ExpiresAt.Unix()))
}

func handleUnTempRole(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	actor := actorOf(i)
	user := optionMap(i)["user"].UserValue(s)
	ctx, cancel := handlerContext()
	defer cancel()

	g, err := b.TempRoles.Revoke(ctx, user.ID, actor.ID)
	if err != nil {
		logger.Warn("Failed to revoke temp role", zap.String("user", user.ID), zap.Error(err))
		utils.SendErrorResponse(s, i, errorText(err, actor, b.GetConfig().Roles))
		return
	}
	utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ Removed <@&%s> from <@%s>", g.RoleID, user.ID))
}
