// ABOUTME: Play modifiers mapping to playback rate settings
// ABOUTME: DoubleTime and HalfTime keep pitch; NightCore and DayCore shift it
package player

import (
	"fmt"
	"strings"
)

// PlayMod is a named playback speed preset
type PlayMod int

const (
	ModNone PlayMod = iota
	ModDoubleTime
	ModNightCore
	ModHalfTime
	ModDayCore
)

// AllMods in cycling order
var AllMods = []PlayMod{ModNone, ModDoubleTime, ModNightCore, ModHalfTime, ModDayCore}

func (m PlayMod) String() string {
	switch m {
	case ModDoubleTime:
		return "dt"
	case ModNightCore:
		return "nc"
	case ModHalfTime:
		return "ht"
	case ModDayCore:
		return "dc"
	default:
		return "none"
	}
}

// Playback returns the rate and whether pitch is kept
func (m PlayMod) Playback() (rate float64, useTempo bool) {
	switch m {
	case ModDoubleTime:
		return 1.5, true
	case ModNightCore:
		return 1.5, false
	case ModHalfTime:
		return 0.75, true
	case ModDayCore:
		return 0.75, false
	default:
		return 1, true
	}
}

// Next returns the following mod in AllMods
func (m PlayMod) Next() PlayMod {
	for i, mod := range AllMods {
		if mod == m {
			return AllMods[(i+1)%len(AllMods)]
		}
	}
	return ModNone
}

// ParsePlayMod accepts short or long names, case-insensitive
func ParsePlayMod(s string) (PlayMod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ModNone, nil
	case "dt", "doubletime":
		return ModDoubleTime, nil
	case "nc", "nightcore":
		return ModNightCore, nil
	case "ht", "halftime":
		return ModHalfTime, nil
	case "dc", "daycore":
		return ModDayCore, nil
	default:
		return ModNone, fmt.Errorf("unknown play mod %q", s)
	}
}
