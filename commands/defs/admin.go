package defs

import "github.com/bwmarrin/discordgo"

var SetupStaffApplications = &discordgo.ApplicationCommand{
	Name:        "setup_staff_applications",
	Description: "Setup the staff applications system",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         "channel",
			Description:  "Channel to send the application embed to",
			Required:     true,
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
		},
	},
}

var SystemInfo = &discordgo.ApplicationCommand{
	Name:        "system_info",
	Description: "Display bot and system status information",
}
