package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"echo-helper/model"
	"echo-helper/utils/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const DefaultPath = "config.yaml"

var ErrMissingToken = errors.New("BOT_TOKEN environment variable not set")

type categoryConfig struct {
	Support      string `mapstructure:"support"`
	Media        string `mapstructure:"media"`
	PlayerReport string `mapstructure:"player_report"`
	Appeal       string `mapstructure:"appeal"`
}

// fileConfig is the shape of config.yaml.
type fileConfig struct {
	GuildID             string               `mapstructure:"guild_id"`
	Roles               model.RoleConfig     `mapstructure:"roles"`
	Channels            model.ChannelConfig  `mapstructure:"channels"`
	Intervals           model.IntervalConfig `mapstructure:"intervals"`
	Categories          categoryConfig       `mapstructure:"categories"`
	LevelRoles          map[int]string       `mapstructure:"level_roles"`
	AFKExcludedChannels []string             `mapstructure:"afk_excluded_channels"`
}

var defaults = map[string]any{
	"guild_id":                     "",
	"intervals.grant_reconcile":    time.Minute,
	"intervals.reward_reconcile":   10 * time.Minute,
	"intervals.stream_probe":       5 * time.Minute,
	"intervals.ticket_close_delay": 5 * time.Second,
	"intervals.application_answer": time.Hour,
	"intervals.reward_window":      30 * 24 * time.Hour,
	"intervals.ticket_sweep":       10 * time.Minute,
	"afk_excluded_channels":        []string{},
}

// every id key is registered so ECHO_* variables can override it
var idKeys = []string{
	"roles.trial_helper", "roles.helper", "roles.moderator", "roles.ticket_admin", "roles.council",
	"roles.team", "roles.community", "roles.media", "roles.reward",
	"channels.log", "channels.ticket_logs", "channels.report", "channels.evidence",
	"channels.live_announcement", "channels.level_announce", "channels.applications",
	"categories.support", "categories.media", "categories.player_report", "categories.appeal",
}

// Load reads .env and the YAML file at path, then applies ECHO_ overrides.
// A missing file leaves every id empty.
func Load(path string) (*model.Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info(".env file not found, relying on environment variables")
	}

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		return nil, ErrMissingToken
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range idKeys {
		v.SetDefault(k, "")
	}
	v.SetEnvPrefix("ECHO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	} else {
		logger.Warn("Config file not found, using defaults", zap.String("path", path))
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	cfg := &model.Config{
		BotToken:                 token,
		GuildID:                  envOr("GUILD_ID", fc.GuildID),
		StoreBackend:             envOr("STORE_BACKEND", "json"),
		DataDir:                  envOr("DATA_DIR", "data"),
		MetricsAddr:              os.Getenv("METRICS_ADDR"),
		LogLevel:                 envOr("LOG_LEVEL", "info"),
		LogFormat:                envOr("LOG_FORMAT", "console"),
		DisableCommandUnregister: os.Getenv("DISABLE_COMMAND_UNREGISTER") == "true",
		Roles:                    fc.Roles,
		Channels:                 fc.Channels,
		Intervals:                fc.Intervals,
		Categories: map[model.TicketType]string{
			model.TicketSupport:      fc.Categories.Support,
			model.TicketMedia:        fc.Categories.Media,
			model.TicketPlayerReport: fc.Categories.PlayerReport,
			model.TicketAppeal:       fc.Categories.Appeal,
		},
		LevelRoles:          fc.LevelRoles,
		AFKExcludedChannels: fc.AFKExcludedChannels,
	}
	if cfg.LevelRoles == nil {
		cfg.LevelRoles = map[int]string{}
	}
	if cfg.GuildID == "" {
		logger.Warn("GUILD_ID not set, guild-scoped features will be disabled")
	}
	if cfg.Channels.Log == "" {
		logger.Warn("Log channel not set, audit lines will only go to the process log")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
