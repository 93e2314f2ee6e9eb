package defs

import "github.com/bwmarrin/discordgo"

var Report = &discordgo.ApplicationCommand{
	Name:        "report",
	Description: "Report a player",
	Options: []*discordgo.ApplicationCommandOption{
		stringOption("username", "The Minecraft username of the player to report"),
		stringOption("duration", "How long they should be punished for"),
		stringOption("reason", "The reason for the report"),
	},
}

var Warn = &discordgo.ApplicationCommand{
	Name:        "warn",
	Description: "Warn a user",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The user to warn", true),
		stringOption("reason", "The reason for the warning"),
	},
}

var Warnings = &discordgo.ApplicationCommand{
	Name:        "warnings",
	Description: "Check warnings for a user",
	Options:     []*discordgo.ApplicationCommandOption{userOption("The user to check", true)},
}

var TempRole = &discordgo.ApplicationCommand{
	Name:        "temprole",
	Description: "Give a role to a user temporarily",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The user to give the role to", true),
		{
			Type:        discordgo.ApplicationCommandOptionRole,
			Name:        "role",
			Description: "The role to give",
			Required:    true,
		},
		stringOption("duration", "Duration (e.g., 1h, 30m, 1d, 1w)"),
	},
}

var UnTempRole = &discordgo.ApplicationCommand{
	Name:        "untemprole",
	Description: "Remove a temporary role before it expires",
	Options:     []*discordgo.ApplicationCommandOption{userOption("The user whose temporary role to remove", true)},
}
