package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"echo-helper/bot"
	"echo-helper/leveling"
	"echo-helper/model"
	"echo-helper/streams"
	"echo-helper/utils"
	"echo-helper/utils/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func displayName(m *discordgo.Member) string {
	if m == nil || m.User == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func handleAFK(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	opts := optionMap(i)
	reason := opts["reason"].StringValue()
	label := opts["duration"].StringValue()

	d, err := utils.ParseDuration(label, utils.GrantUnits)
	if err != nil {
		utils.SendErrorResponse(s, i, "Invalid duration format! Use: 30m, 1h, 1d, 1w")
		return
	}

	ctx, cancel := handlerContext()
	defer cancel()
	g, err := b.AFK.Set(ctx, i.GuildID, i.Member.User.ID, i.Member.User.Username, displayName(i.Member), reason, d)
	if err != nil {
		logger.Warn("Failed to set AFK", zap.String("user", i.Member.User.ID), zap.Error(err))
		utils.SendErrorResponse(s, i, errorText(err, actorOf(i), b.GetConfig().Roles))
		return
	}
	utils.SendEmbedResponse(s, i, &discordgo.MessageEmbed{
		Title:       "💤 AFK Status Set",
		Description: fmt.Sprintf("<@%s> is now AFK", i.Member.User.ID),
		Color:       0xffa500,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reason", Value: reason},
			{Name: "Until", Value: fmt.Sprintf("<t:%d:f>", g.ExpiresAt.Unix()), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}, nil, false)
}

func handleLive(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	opts := optionMap(i)
	ctx, cancel := handlerContext()
	defer cancel()

	ann, err := b.Streams.Start(ctx, i.Member.User.ID, displayName(i.Member),
		opts["platform"].StringValue(), opts["url"].StringValue(), opts["title"].StringValue())
	if err != nil {
		logger.Warn("Failed to announce live stream", zap.String("user", i.Member.User.ID), zap.Error(err))
		if errors.Is(err, streams.ErrInvalidURL) {
			utils.SendErrorResponse(s, i, "Please provide a valid stream URL (http or https).")
			return
		}
		utils.SendErrorResponse(s, i, "Failed to send the live announcement.")
		return
	}
	utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ Your stream has been announced in <#%s>! I'll update it when you go offline.", ann.ChannelID))
}

func handleEndLive(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	ctx, cancel := handlerContext()
	defer cancel()

	if _, err := b.Streams.End(ctx, i.Member.User.ID); err != nil {
		utils.SendErrorResponse(s, i, errorText(err, actorOf(i), b.GetConfig().Roles))
		return
	}
	utils.SendSimpleResponse(s, i, "✅ Your live announcement has been ended.")
}

func handleWhois(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	user := targetUser(s, i, optionMap(i))
	member, err := s.GuildMember(i.GuildID, user.ID)
	if err != nil {
		utils.SendErrorResponse(s, i, "Member not found in this server.")
		return
	}

	ctx, cancel := handlerContext()
	defer cancel()
	rec, err := b.Leveling.Get(ctx, user.ID)
	if err != nil {
		logger.Warn("Failed to read level record", zap.String("user", user.ID), zap.Error(err))
		rec = model.NewLevelRecord()
	}

	roles := make([]string, 0, len(member.Roles))
	for _, r := range member.Roles {
		roles = append(roles, "<@&"+r+">")
	}
	roleList := "None"
	if len(roles) > 0 {
		roleList = strings.Join(roles, " ")
		if len(roleList) > 1024 {
			roleList = fmt.Sprintf("%d roles", len(roles))
		}
	}

	progress := "Max level"
	if rec.Level < model.MaxLevel {
		progress = fmt.Sprintf("%d/%d XP", rec.XP, leveling.XPNeeded(rec.Level))
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Username", Value: user.Username, Inline: true},
		{Name: "ID", Value: user.ID, Inline: true},
		{Name: "Level", Value: fmt.Sprintf("%d (%s)", rec.Level, progress), Inline: true},
		{Name: "Account Created", Value: fmt.Sprintf("<t:%d:R>", snowflakeTime(user.ID).Unix()), Inline: true},
		{Name: "Joined Server", Value: fmt.Sprintf("<t:%d:R>", member.JoinedAt.Unix()), Inline: true},
		{Name: "Roles", Value: roleList},
	}
	if rec.RewardExpiresAt != nil {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Level 50 Reward Expires", Value: fmt.Sprintf("<t:%d:R>", rec.RewardExpiresAt.Unix()), Inline: true})
	}
	utils.SendEmbedResponse(s, i, &discordgo.MessageEmbed{
		Title:     "👤 User Information",
		Color:     0x5865F2,
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: user.AvatarURL("256")},
		Fields:    fields,
		Timestamp: time.Now().Format(time.RFC3339),
	}, nil, false)
}

func snowflakeTime(id string) time.Time {
	t, err := discordgo.SnowflakeTimestamp(id)
	if err != nil {
		return time.Time{}
	}
	return t
}
