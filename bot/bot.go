package bot

import (
	"fmt"
	"sync/atomic"
	"time"

	"echo-helper/applications"
	"echo-helper/commands/defs"
	"echo-helper/grants"
	"echo-helper/leveling"
	"echo-helper/model"
	"echo-helper/moderation"
	"echo-helper/platform"
	"echo-helper/streams"
	"echo-helper/tickets"
	"echo-helper/utils"
	"echo-helper/utils/database"
	"echo-helper/utils/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// 每个用户开票的冷却时间
const ticketCooldown = 30 * time.Second

type Bot struct {
	Session            *discordgo.Session
	Platform           *platform.Discord
	RegisteredCommands []*discordgo.ApplicationCommand
	config             atomic.Value // *model.Config
	CommandHandlers    map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate)
	DB                 *database.DB
	Audit              *utils.ChannelLogger

	Tickets      *tickets.Service
	TicketCounts *moderation.Counters
	ReportCounts *moderation.Counters
	Reports      *moderation.Reports
	Warnings     *moderation.Warnings
	TempRoles    *grants.TempRoles
	AFK          *grants.AFK
	Leveling     *leveling.Service
	Streams      *streams.Service
	Applications *applications.Service

	// TicketCooldown spaces out ticket creation per user.
	TicketCooldown *utils.Cooldown

	scheduler *Scheduler
}

func (b *Bot) GetConfig() *model.Config {
	return b.config.Load().(*model.Config)
}

func (b *Bot) GetSession() *discordgo.Session {
	return b.Session
}

func New(cfg *model.Config, db *database.DB) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	p := platform.NewDiscord(dg)
	audit := utils.NewChannelLogger(p, cfg.Channels.Log)
	ticketCounts := moderation.NewCounters(db, database.DomainTicketCounts)
	reportCounts := moderation.NewCounters(db, database.DomainReportCounts)

	b := &Bot{
		Session:      dg,
		Platform:     p,
		DB:           db,
		Audit:        audit,
		TicketCounts: ticketCounts,
		ReportCounts: reportCounts,
		Tickets: tickets.NewService(db, ticketCounts, p, tickets.Config{
			GuildID:    cfg.GuildID,
			Categories: cfg.Categories,
			Roles:      cfg.Roles,
			LogChannel: cfg.Channels.TicketLogs,
			CloseDelay: cfg.Intervals.TicketCloseDelay,
		}, nil),
		Reports:   moderation.NewReports(db, reportCounts),
		Warnings:  moderation.NewWarnings(db, p, nil),
		TempRoles: grants.NewTempRoles(db, p, audit, cfg.GuildID, cfg.Intervals.GrantReconcile, nil),
		AFK:       grants.NewAFK(db, p, cfg.GuildID, cfg.AFKExcludedChannels, cfg.Intervals.GrantReconcile, nil),
		Leveling: leveling.NewService(db, p, leveling.Config{
			GuildID:         cfg.GuildID,
			AnnounceChannel: cfg.Channels.LevelAnnounce,
			LevelRoles:      cfg.LevelRoles,
			RewardRole:      cfg.Roles.Reward,
			RewardWindow:    cfg.Intervals.RewardWindow,
			RewardInterval:  cfg.Intervals.RewardReconcile,
		}, nil),
		Streams:        streams.NewService(p, streams.HTTPProber{}, cfg.Channels.LiveAnnouncement, cfg.Intervals.StreamProbe, nil),
		Applications:   applications.NewService(p, cfg.Channels.Applications, cfg.Roles, cfg.Intervals.ApplicationAnswer, nil),
		TicketCooldown: utils.NewCooldown(ticketCooldown, nil),
	}
	b.config.Store(cfg)
	b.scheduler = NewScheduler(b)
	return b, nil
}

// Close stops every loop and watcher, then the gateway session.
func (b *Bot) Close() error {
	logger.Info("Gracefully shutting down.")
	err := b.scheduler.Stop()
	b.Streams.Close()
	b.Applications.Close()
	b.Tickets.Wait()
	b.Leveling.Close()
	if cerr := b.Session.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// RefreshCommands overwrites the guild's slash commands with the current set.
func (b *Bot) RefreshCommands(guildID string) error {
	if guildID == "" {
		return fmt.Errorf("no guild configured")
	}
	cmds := defs.All()
	logger.Info("Registering commands", zap.Int("count", len(cmds)), zap.String("guild", guildID))
	registered, err := b.Session.ApplicationCommandBulkOverwrite(b.Session.State.User.ID, guildID, cmds)
	if err != nil {
		return fmt.Errorf("cannot update commands for guild %s: %w", guildID, err)
	}
	b.RegisteredCommands = registered
	return nil
}

// UnregisterCommands removes every command this bot registered in guildID.
func (b *Bot) UnregisterCommands(guildID string) {
	cmds, err := b.Session.ApplicationCommands(b.Session.State.User.ID, guildID)
	if err != nil {
		logger.Warn("Could not fetch commands", zap.String("guild", guildID), zap.Error(err))
		return
	}
	for _, c := range cmds {
		if err := b.Session.ApplicationCommandDelete(b.Session.State.User.ID, guildID, c.ID); err != nil {
			logger.Warn("Cannot delete command", zap.String("command", c.Name), zap.Error(err))
		}
	}
}
