package utils

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// PageSize is the number of rows shown per leaderboard page.
const PageSize = 10

// TotalPages is at least one.
func TotalPages(items int) int {
	if items <= 0 {
		return 1
	}
	return (items + PageSize - 1) / PageSize
}

// PageBounds clamps page into range and returns its slice bounds.
func PageBounds(page, items int) (clamped, start, end int) {
	clamped = min(max(page, 1), TotalPages(items))
	start = (clamped - 1) * PageSize
	end = min(start+PageSize, items)
	if start > end {
		start = end
	}
	return clamped, start, end
}

// CreatePaginationComponents creates a set of pagination buttons.
func CreatePaginationComponents(currentPage, totalPages int, customIDPrefix string, args ...string) []discordgo.MessageComponent {
	if totalPages <= 1 {
		return nil
	}

	buttonArgs := ""
	for _, arg := range args {
		buttonArgs += ":" + arg
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Previous",
					Style:    discordgo.PrimaryButton,
					Disabled: currentPage == 1,
					CustomID: fmt.Sprintf("%s:%d%s", customIDPrefix, currentPage-1, buttonArgs),
				},
				discordgo.Button{
					Label:    "Next",
					Style:    discordgo.PrimaryButton,
					Disabled: currentPage == totalPages,
					CustomID: fmt.Sprintf("%s:%d%s", customIDPrefix, currentPage+1, buttonArgs),
				},
			},
		},
	}
}
