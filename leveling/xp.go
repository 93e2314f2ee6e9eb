// Package leveling tracks message XP and the level-gated roles it unlocks.
package leveling

import "echo-helper/model"

// XPNeeded is the XP required to advance from level to level+1.
// The band boundaries and increments are a compatibility contract with
// existing level data and must not change.
func XPNeeded(level int) int {
	switch {
	case level < 10:
		return 200 + (level-1)*50
	case level < 20:
		return 1000 + (level-10)*250
	case level < 30:
		return 3500 + (level-20)*1000
	case level < 40:
		return 13500 + (level-30)*2500
	case level < 50:
		return 38500 + (level-40)*5000
	default:
		return 88500
	}
}

// Gain is the XP awarded per qualifying message at level.
func Gain(level int) int {
	switch {
	case level < 10:
		return 10
	case level < 20:
		return 5
	case level < 30:
		return 2
	case level < model.MaxLevel:
		return 1
	default:
		return 0
	}
}

// Apply adds gain to rec and carries overflow into level-ups. It returns
// the updated record and every level reached, in order.
func Apply(rec model.LevelRecord, gain int) (model.LevelRecord, []int) {
	if rec.Level < 1 {
		rec.Level = 1
	}
	if rec.Level >= model.MaxLevel || gain <= 0 {
		return rec, nil
	}
	rec.XP += gain
	var crossed []int
	for rec.Level < model.MaxLevel {
		need := XPNeeded(rec.Level)
		if rec.XP < need {
			break
		}
		rec.XP -= need
		rec.Level++
		crossed = append(crossed, rec.Level)
	}
	return rec, crossed
}
