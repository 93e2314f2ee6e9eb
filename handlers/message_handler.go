package handlers

import (
	"context"
	"fmt"
	"time"

	"echo-helper/bot"
	"echo-helper/utils"
	"echo-helper/utils/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const evidenceConfirmTTL = 5 * time.Second

func handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate, b *bot.Bot) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	// 私信只用于员工申请问卷
	if m.GuildID == "" {
		b.Applications.Answer(m.Author.ID, m.Content)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	cfg := b.GetConfig()
	if m.ChannelID == cfg.Channels.Evidence {
		handleEvidence(ctx, s, m, b)
	}

	if _, err := b.AFK.OnMessage(ctx, m.ChannelID, m.Author.ID); err != nil {
		logger.Warn("Failed to clear AFK status", zap.String("user", m.Author.ID), zap.Error(err))
	}

	if len(m.Mentions) > 0 {
		ids := make([]string, 0, len(m.Mentions))
		for _, u := range m.Mentions {
			if u.ID != m.Author.ID {
				ids = append(ids, u.ID)
			}
		}
		for _, st := range b.AFK.Mentioned(ctx, ids) {
			_, err := s.ChannelMessageSendEmbed(m.ChannelID, &discordgo.MessageEmbed{
				Description: fmt.Sprintf("💤 <@%s> is AFK: %s\nBack in %s", st.UserID, st.Reason, utils.FormatRemaining(st.Remaining)),
				Color:       0xffa500,
			})
			if err != nil {
				logger.Warn("Failed to send AFK notice", zap.String("channel", m.ChannelID), zap.Error(err))
			}
		}
	}

	if _, _, err := b.Leveling.OnMessage(ctx, m.Author.ID); err != nil {
		logger.Warn("Failed to credit XP", zap.String("user", m.Author.ID), zap.Error(err))
	}
}

// handleEvidence stores the newest evidence of the author for /report.
func handleEvidence(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, b *bot.Bot) {
	url := evidenceOf(m.Message)
	if url == "" {
		return
	}
	if err := b.Reports.RecordEvidence(ctx, m.Author.ID, url); err != nil {
		logger.Error("Failed to record evidence", zap.String("user", m.Author.ID), zap.Error(err))
		return
	}
	if err := s.MessageReactionAdd(m.ChannelID, m.ID, "✅"); err != nil {
		logger.Debug("Failed to react to evidence", zap.Error(err))
	}
	msg, err := s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("✅ <@%s> Evidence saved! You can now use /report in <#%s>", m.Author.ID, b.GetConfig().Channels.Report))
	if err != nil {
		return
	}
	time.AfterFunc(evidenceConfirmTTL, func() {
		if err := s.ChannelMessageDelete(m.ChannelID, msg.ID); err != nil {
			logger.Debug("Failed to delete evidence confirmation", zap.Error(err))
		}
	})
}
