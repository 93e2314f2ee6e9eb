package defs

import "github.com/bwmarrin/discordgo"

func userOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: description,
		Required:    required,
	}
}

func stringOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    true,
	}
}

func amountOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "amount",
		Description: description,
		Required:    true,
		MinValue:    &minAmount,
	}
}

var minAmount = 1.0

// All is every slash command the bot registers.
func All() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		SetupTickets, Close, Rename, AddUser, RemoveUser, TicketStats,
		TicketCheck, ReportCheck, TicketLeaderboard, ReportLeaderboard,
		AddTicket, RemoveTicket, AddReport, RemoveReport,
		Report, Warn, Warnings, TempRole, UnTempRole,
		AFK, Live, EndLive, Whois,
		SetupStaffApplications, SystemInfo,
	}
}
