package bot

import (
	"context"
	"fmt"

	"echo-helper/utils/logger"

	"go.uber.org/zap"
)

// Run connects, registers commands and starts the background loops. It
// blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	cfg := b.GetConfig()
	if !cfg.DisableCommandUnregister {
		logger.Info("Unregistering global commands...")
		b.UnregisterCommands("")
	}
	if err := b.RefreshCommands(cfg.GuildID); err != nil {
		logger.Error("Command registration failed", zap.Error(err))
	}

	b.scheduler.Start(ctx)

	logger.Info("Bot is now running. Press CTRL-C to exit.")
	b.Audit.Info(ctx, "System", "Startup", "Bot has started successfully.")
	<-ctx.Done()
	return b.Close()
}
