package defs

import "github.com/bwmarrin/discordgo"

var TicketCheck = &discordgo.ApplicationCommand{
	Name:        "ticket_check",
	Description: "Check how many tickets you have closed",
	Options:     []*discordgo.ApplicationCommandOption{userOption("The user to check", false)},
}

var ReportCheck = &discordgo.ApplicationCommand{
	Name:        "report_check",
	Description: "Check how many reports you have submitted",
	Options:     []*discordgo.ApplicationCommandOption{userOption("The user to check", false)},
}

var TicketLeaderboard = &discordgo.ApplicationCommand{
	Name:        "ticket_leaderboard",
	Description: "View the ticket closing leaderboard",
}

var ReportLeaderboard = &discordgo.ApplicationCommand{
	Name:        "report_leaderboard",
	Description: "View the report submission leaderboard",
}

var AddTicket = &discordgo.ApplicationCommand{
	Name:        "add_ticket",
	Description: "Add tickets to a user's count (Council only)",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The user to add tickets to", true),
		amountOption("Number of tickets to add"),
	},
}

var RemoveTicket = &discordgo.ApplicationCommand{
	Name:        "remove_ticket",
	Description: "Remove tickets from a user's count (Council only)",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The user to remove tickets from", true),
		amountOption("Number of tickets to remove"),
	},
}

var AddReport = &discordgo.ApplicationCommand{
	Name:        "add_report",
	Description: "Add reports to a user's count (Council only)",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The user to add reports to", true),
		amountOption("Number of reports to add"),
	},
}

var RemoveReport = &discordgo.ApplicationCommand{
	Name:        "remove_report",
	Description: "Remove reports from a user's count (Council only)",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The user to remove reports from", true),
		amountOption("Number of reports to remove"),
	},
}
