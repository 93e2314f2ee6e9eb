package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"echo-helper/bot"
	"echo-helper/config"
	"echo-helper/handlers"
	"echo-helper/utils/database"
	"echo-helper/utils/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const programName = "echo-helper"

var configFile string

func runBot(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.DataDir, os.ModePerm); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	db, err := database.Open(cfg.StoreBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer db.Close()

	b, err := bot.New(cfg, db)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	handlers.Register(b)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return b.Run(ctx)
}

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Ticket, moderation and leveling bot for the Echo Network Discord",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// .env 还没加载，先按进程环境初始化，config.Load 之后再覆盖
		return logger.Init(envOr("LOG_LEVEL", "info"), envOr("LOG_FORMAT", "console"))
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "path to config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve commands (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	})
	rootCmd.AddCommand(storeCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("Exiting", zap.Error(err))
		os.Exit(1)
	}
}
