package defs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllCommandsAreUniqueAndDescribed(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range All() {
		assert.False(t, seen[c.Name], c.Name)
		seen[c.Name] = true
		assert.NotEmpty(t, c.Description, c.Name)
		assert.LessOrEqual(t, len(c.Description), 100, c.Name)
		required := true
		for _, o := range c.Options {
			if !o.Required {
				required = false
				continue
			}
			assert.True(t, required, "%s: required option %s after optional", c.Name, o.Name)
		}
	}
	assert.Len(t, seen, 25)
}
