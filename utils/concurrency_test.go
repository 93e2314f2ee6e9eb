package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldown(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCooldown(time.Minute, func() time.Time { return now })

	assert.True(t, c.Allow("u"))
	assert.False(t, c.Allow("u"))
	assert.True(t, c.Allow("v"))
	assert.Equal(t, time.Minute, c.Remaining("u"))

	now = now.Add(30 * time.Second)
	assert.False(t, c.Allow("u"))
	assert.Equal(t, 30*time.Second, c.Remaining("u"))

	now = now.Add(30 * time.Second)
	assert.True(t, c.Allow("u"))
	assert.Zero(t, c.Remaining("nobody"))
}

func TestCooldownForgetAfterFailedAction(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCooldown(30*time.Second, func() time.Time { return now })

	assert.True(t, c.Allow("u"))
	assert.False(t, c.Allow("u"), "a second submit while the first runs is refused")
	c.Forget("u")
	assert.Zero(t, c.Remaining("u"))
	assert.True(t, c.Allow("u"), "a failed attempt does not lock the user out")

	now = now.Add(10 * time.Second)
	assert.False(t, c.Allow("u"))
	assert.Equal(t, 20*time.Second, c.Remaining("u"))
	c.Forget("nobody")
}
