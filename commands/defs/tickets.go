package defs

import "github.com/bwmarrin/discordgo"

var SetupTickets = &discordgo.ApplicationCommand{
	Name:        "setup_tickets",
	Description: "Setup the ticket system",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         "channel",
			Description:  "Channel to send the ticket embed to",
			Required:     true,
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
		},
	},
}

var Close = &discordgo.ApplicationCommand{
	Name:        "close",
	Description: "Close the current ticket",
}

var Rename = &discordgo.ApplicationCommand{
	Name:        "rename",
	Description: "Rename the current ticket",
	Options: []*discordgo.ApplicationCommandOption{
		stringOption("new_name", "The new name for the ticket (without the prefix)"),
	},
}

var AddUser = &discordgo.ApplicationCommand{
	Name:        "add_user",
	Description: "Add a user to the current ticket",
	Options:     []*discordgo.ApplicationCommandOption{userOption("The user to add to the ticket", true)},
}

var RemoveUser = &discordgo.ApplicationCommand{
	Name:        "remove_user",
	Description: "Remove a user from the current ticket",
	Options:     []*discordgo.ApplicationCommandOption{userOption("The user to remove from the ticket", true)},
}

var TicketStats = &discordgo.ApplicationCommand{
	Name:        "ticket_stats",
	Description: "View ticket statistics (Admin only)",
}
