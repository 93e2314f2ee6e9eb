package defs

import "github.com/bwmarrin/discordgo"

var AFK = &discordgo.ApplicationCommand{
	Name:        "afk",
	Description: "Set yourself as AFK",
	Options: []*discordgo.ApplicationCommandOption{
		stringOption("reason", "Reason for being AFK"),
		stringOption("duration", "Duration (e.g., 1h, 30m, 1d)"),
	},
}

var Live = &discordgo.ApplicationCommand{
	Name:        "live",
	Description: "Announce that you're going live",
	Options: []*discordgo.ApplicationCommandOption{
		stringOption("platform", "The platform you're streaming on"),
		stringOption("url", "Your live stream URL"),
		stringOption("title", "The title of your stream"),
	},
}

var EndLive = &discordgo.ApplicationCommand{
	Name:        "end_live",
	Description: "End your live stream announcement",
}

var Whois = &discordgo.ApplicationCommand{
	Name:        "whois",
	Description: "Get information about a user",
	Options:     []*discordgo.ApplicationCommandOption{userOption("The user to look up", false)},
}
