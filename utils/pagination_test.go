package utils

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageBounds(t *testing.T) {
	page, start, end := PageBounds(0, 25)
	assert.Equal(t, []int{1, 0, 10}, []int{page, start, end})

	page, start, end = PageBounds(3, 25)
	assert.Equal(t, []int{3, 20, 25}, []int{page, start, end})

	page, start, end = PageBounds(9, 25)
	assert.Equal(t, []int{3, 20, 25}, []int{page, start, end})

	page, start, end = PageBounds(1, 0)
	assert.Equal(t, []int{1, 0, 0}, []int{page, start, end})
}

func TestCreatePaginationComponents(t *testing.T) {
	assert.Nil(t, CreatePaginationComponents(1, 1, "lb"))

	rows := CreatePaginationComponents(1, 3, "lb", "tickets")
	require.Len(t, rows, 1)
	buttons := rows[0].(discordgo.ActionsRow).Components
	prev := buttons[0].(discordgo.Button)
	next := buttons[1].(discordgo.Button)
	assert.True(t, prev.Disabled)
	assert.Equal(t, "lb:2:tickets", next.CustomID)
}
