package handlers

import (
	"echo-helper/bot"
	"echo-helper/utils/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func Register(b *bot.Bot) {
	b.CommandHandlers = commandHandlers(b)
	addHandlers(b)
}

func addHandlers(b *bot.Bot) {
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info("Logged in", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
		if err := s.UpdateWatchStatus(0, "🎫 support tickets"); err != nil {
			logger.Warn("Failed to set presence", zap.Error(err))
		}
	})
	b.Session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		handleInteractionCreate(s, i, b)
	})
	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		handleMessageCreate(s, m, b)
	})
}
