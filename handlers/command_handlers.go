package handlers

import (
	"echo-helper/bot"
	"echo-helper/model"
	"echo-helper/utils"

	"github.com/bwmarrin/discordgo"
)

func commandHandlers(b *bot.Bot) map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	liveChannel := func(cfg *model.Config) string { return cfg.Channels.LiveAnnouncement }
	reportChannel := func(cfg *model.Config) string { return cfg.Channels.Report }

	table := map[string]interactionHandler{
		// tickets; capability checks for transitions live in the ticket service
		"setup_tickets": requireAll(handleSetupTickets, utils.CouncilCapability),
		"close":         handleCloseCommand,
		"rename":        handleRename,
		"add_user":      handleAddUser,
		"remove_user":   handleRemoveUser,
		"ticket_stats":  requireAll(handleTicketStats, utils.TicketAdminCapability),

		// counters
		"ticket_check":       handleTicketCheck,
		"report_check":       handleReportCheck,
		"ticket_leaderboard": handleTicketLeaderboard,
		"report_leaderboard": handleReportLeaderboard,
		"add_ticket":         requireAll(handleAddTicket, utils.CouncilCapability),
		"remove_ticket":      requireAll(handleRemoveTicket, utils.CouncilCapability),
		"add_report":         requireAll(handleAddReport, utils.CouncilCapability),
		"remove_report":      requireAll(handleRemoveReport, utils.CouncilCapability),

		// moderation
		"report":     inChannel(handleReport, reportChannel),
		"warn":       requireAll(handleWarn, utils.CouncilCapability),
		"warnings":   requireAny(handleWarnings, utils.CouncilCapability, utils.TeamCapability),
		"temprole":   requireAll(handleTempRole, utils.CouncilCapability, utils.TeamCapability),
		"untemprole": requireAll(handleUnTempRole, utils.CouncilCapability),

		// community
		"afk":      requireAll(handleAFK, utils.CommunityCapability),
		"live":     requireAll(inChannel(handleLive, liveChannel), utils.MediaCapability),
		"end_live": requireAll(inChannel(handleEndLive, liveChannel), utils.MediaCapability),
		"whois":    handleWhois,

		"setup_staff_applications": requireAll(handleSetupStaffApplications, utils.CouncilCapability),
		"system_info":              requireAll(SystemInfoHandler, utils.TicketAdminCapability),
	}

	out := make(map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate), len(table))
	for name, h := range table {
		out[name] = func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			h(s, i, b)
		}
	}
	return out
}
