package leveling

import (
	"math/rand"
	"testing"

	"echo-helper/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXPNeededBands(t *testing.T) {
	cases := map[int]int{
		1: 200, 9: 600,
		10: 1000, 19: 3250,
		20: 3500, 29: 12500,
		30: 13500, 39: 36000,
		40: 38500, 49: 83500,
		50: 88500,
	}
	for level, want := range cases {
		assert.Equal(t, want, XPNeeded(level), "level %d", level)
	}
}

func TestGainBands(t *testing.T) {
	assert.Equal(t, 10, Gain(1))
	assert.Equal(t, 10, Gain(9))
	assert.Equal(t, 5, Gain(10))
	assert.Equal(t, 2, Gain(29))
	assert.Equal(t, 1, Gain(30))
	assert.Equal(t, 1, Gain(49))
	assert.Equal(t, 0, Gain(50))
}

func TestApplySingleLevelUp(t *testing.T) {
	rec, crossed := Apply(model.LevelRecord{Level: 1, XP: 195}, 10)
	assert.Equal(t, []int{2}, crossed)
	assert.Equal(t, 2, rec.Level)
	assert.Equal(t, 5, rec.XP)
}

func TestApplyAtCapIsNoop(t *testing.T) {
	rec, crossed := Apply(model.LevelRecord{Level: 50, XP: 7}, 1000)
	assert.Empty(t, crossed)
	assert.Equal(t, 50, rec.Level)
	assert.Equal(t, 7, rec.XP)
}

func TestApplyConservesXP(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		level := 1 + r.Intn(49)
		start := model.LevelRecord{Level: level, XP: r.Intn(XPNeeded(level))}
		gain := r.Intn(200000)

		rec, crossed := Apply(start, gain)

		spent := 0
		for _, l := range crossed {
			spent += XPNeeded(l - 1)
		}
		require.Equal(t, start.XP+gain-spent, rec.XP, "xp is neither created nor destroyed")
		require.Equal(t, start.Level+len(crossed), rec.Level)
		require.GreaterOrEqual(t, rec.Level, start.Level)
		require.LessOrEqual(t, rec.Level, model.MaxLevel)
		if rec.Level < model.MaxLevel {
			require.Less(t, rec.XP, XPNeeded(rec.Level))
		}
	}
}
