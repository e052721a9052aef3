package types

import (
	"fmt"
	"strings"
)

// Card is an in-hand or in-play card instance.
type Card struct {
	Type  string `json:"type"`
	Level int    `json:"level"`
}

func (c Card) String() string { return fmt.Sprintf("%s@%d", c.Type, c.Level) }

type Kind int

const (
	KindTroop Kind = iota
	KindStructure
	KindSpell
)

var kindNames = map[Kind]string{KindTroop: "troop", KindStructure: "structure", KindSpell: "spell"}

func (k Kind) String() string { return kindNames[k] }

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	for v, name := range kindNames {
		if strings.EqualFold(name, string(b)) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown card kind %q", string(b))
}

type AttackType int

const (
	AttackSingle AttackType = iota
	AttackArea
)

func (a AttackType) String() string {
	if a == AttackArea {
		return "area"
	}
	return "single"
}

func (a AttackType) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AttackType) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "single", "":
		*a = AttackSingle
	case "area":
		*a = AttackArea
	default:
		return fmt.Errorf("unknown attack type %q", string(b))
	}
	return nil
}

// DropRegion constrains where a card may be played.
type DropRegion int

const (
	RegionWholeMap DropRegion = iota
	RegionOwnHalf
	RegionEnemyHalf
	RegionSpawnColumn
)

var regionNames = map[DropRegion]string{
	RegionWholeMap:    "whole_map",
	RegionOwnHalf:     "own_half",
	RegionEnemyHalf:   "enemy_half",
	RegionSpawnColumn: "spawn_column",
}

func (r DropRegion) String() string { return regionNames[r] }

func (r DropRegion) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *DropRegion) UnmarshalText(b []byte) error {
	for v, name := range regionNames {
		if strings.EqualFold(name, string(b)) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown drop region %q", string(b))
}

// Stats are the combat numbers of a card at one level.
type Stats struct {
	Health       float64 `json:"health"`
	Damage       float64 `json:"damage"`
	Reload       float64 `json:"reload"`
	MoveTime     float64 `json:"move_time"`
	RotationTime float64 `json:"rotation_time"`
}

func (s Stats) add(o Stats, times float64) Stats {
	return Stats{
		Health:       s.Health + o.Health*times,
		Damage:       s.Damage + o.Damage*times,
		Reload:       s.Reload + o.Reload*times,
		MoveTime:     s.MoveTime + o.MoveTime*times,
		RotationTime: s.RotationTime + o.RotationTime*times,
	}
}

// Template is the immutable definition of a card type.
type Template struct {
	Type             string     `json:"type"`
	Name             string     `json:"name"`
	Kind             Kind       `json:"kind"`
	Rarity           Rarity     `json:"rarity"`
	Cost             int        `json:"cost"`
	Region           DropRegion `json:"drop_region"`
	CanDropOverUnits bool       `json:"can_drop_over_units"`
	MainStructure    bool       `json:"main_structure,omitempty"`
	Playable         *bool      `json:"playable,omitempty"`
	SubEntities      int        `json:"sub_entities,omitempty"`
	Attack           AttackType `json:"attack_type"`
	Radius           float64    `json:"radius,omitempty"`
	Base             Stats      `json:"base"`
	PerLevel         Stats      `json:"per_level"`
}

// StatsAt returns base stats plus (level-1) increments.
func (t *Template) StatsAt(level int) Stats {
	if level < 1 {
		level = 1
	}
	return t.Base.add(t.PerLevel, float64(level-1))
}

// Mobile reports whether units of this template can leave their node.
func (t *Template) Mobile() bool { return t.Kind == KindTroop }

// InDeck reports whether the card may appear in a player's deck. Towers may not.
func (t *Template) InDeck() bool {
	if t.Playable != nil {
		return *t.Playable
	}
	return t.Kind != KindStructure || !t.MainStructure
}
