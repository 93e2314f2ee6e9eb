package model

import "time"

// RoleConfig 存储各权限层级对应的身份组 ID
type RoleConfig struct {
	TrialHelper string `mapstructure:"trial_helper"`
	Helper      string `mapstructure:"helper"`
	Moderator   string `mapstructure:"moderator"`
	TicketAdmin string `mapstructure:"ticket_admin"`
	Council     string `mapstructure:"council"`
	Team        string `mapstructure:"team"`
	Community   string `mapstructure:"community"`
	Media       string `mapstructure:"media"`
	Reward      string `mapstructure:"reward"`
}

// StaffTiers are the roles that lose read access when a ticket is claimed.
func (r RoleConfig) StaffTiers() []string {
	return compact(r.TrialHelper, r.Helper, r.Moderator)
}

// Staff is every role that counts as ticket staff.
func (r RoleConfig) Staff() []string {
	return compact(r.TrialHelper, r.Helper, r.Moderator, r.TicketAdmin)
}

// ChannelConfig 存储机器人使用的频道 ID
type ChannelConfig struct {
	Log              string `mapstructure:"log"`
	TicketLogs       string `mapstructure:"ticket_logs"`
	Report           string `mapstructure:"report"`
	Evidence         string `mapstructure:"evidence"`
	LiveAnnouncement string `mapstructure:"live_announcement"`
	LevelAnnounce    string `mapstructure:"level_announce"`
	Applications     string `mapstructure:"applications"`
}

// IntervalConfig holds loop periods and timeouts.
type IntervalConfig struct {
	GrantReconcile    time.Duration `mapstructure:"grant_reconcile"`
	RewardReconcile   time.Duration `mapstructure:"reward_reconcile"`
	StreamProbe       time.Duration `mapstructure:"stream_probe"`
	TicketCloseDelay  time.Duration `mapstructure:"ticket_close_delay"`
	ApplicationAnswer time.Duration `mapstructure:"application_answer"`
	RewardWindow      time.Duration `mapstructure:"reward_window"`
	TicketSweep       time.Duration `mapstructure:"ticket_sweep"`
}

// Config 存储应用程序的配置
type Config struct {
	BotToken                 string
	GuildID                  string
	StoreBackend             string
	DataDir                  string
	MetricsAddr              string
	LogLevel                 string
	LogFormat                string
	DisableCommandUnregister bool

	Roles      RoleConfig
	Channels   ChannelConfig
	Intervals  IntervalConfig
	Categories map[TicketType]string
	// level -> role ID granted on reaching it
	LevelRoles          map[int]string
	AFKExcludedChannels []string
}

// CategoryID returns the configured category for a ticket type, falling back to support.
func (c *Config) CategoryID(t TicketType) string {
	if id, ok := c.Categories[t]; ok && id != "" {
		return id
	}
	return c.Categories[TicketSupport]
}

func compact(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
