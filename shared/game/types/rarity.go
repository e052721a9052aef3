package types

import (
	"fmt"
	"strings"
)

type Rarity int

const (
	RarityCommon Rarity = iota
	RarityRare
	RarityEpic
	RarityLegendary
)

// MaxLevel caps card upgrades for every rarity.
const MaxLevel = 10

func (r Rarity) String() string {
	switch r {
	case RarityCommon:
		return "common"
	case RarityRare:
		return "rare"
	case RarityEpic:
		return "epic"
	case RarityLegendary:
		return "legendary"
	default:
		return fmt.Sprintf("rarity(%d)", int(r))
	}
}

func (r Rarity) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Rarity) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "common", "":
		*r = RarityCommon
	case "rare":
		*r = RarityRare
	case "epic":
		*r = RarityEpic
	case "legendary":
		*r = RarityLegendary
	default:
		return fmt.Errorf("unknown rarity %q", string(b))
	}
	return nil
}

// GemsPerLevel is the base gem price of one upgrade step.
func (r Rarity) GemsPerLevel() int64 {
	switch r {
	case RarityCommon:
		return 3
	case RarityRare:
		return 10
	case RarityEpic, RarityLegendary:
		return 25
	default:
		return 999999
	}
}

// UpgradeCost returns the gem price to raise a card from level to level+1.
func (r Rarity) UpgradeCost(level int) int64 {
	if level < 1 {
		level = 1
	}
	return r.GemsPerLevel() * int64(level)
}
