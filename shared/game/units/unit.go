package units

import (
	"fmt"
	"math"

	"tidewar/shared/game/board"
	"tidewar/shared/game/types"
)

// Key addresses a unit. IDs are unique per side and never reused.
type Key struct {
	Side types.Side `json:"side"`
	ID   int        `json:"id"`
}

func (k Key) String() string { return fmt.Sprintf("%s#%d", k.Side, k.ID) }

func (k Key) less(o Key) bool {
	if k.Side != o.Side {
		return k.Side < o.Side
	}
	return k.ID < o.ID
}

type State int

const (
	StateIdle State = iota
	StateApproaching
	StateEngaged
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateApproaching:
		return "approaching"
	case StateEngaged:
		return "engaged"
	case StateDestroyed:
		return "destroyed"
	}
	return "idle"
}

// SubEntity is one independently damageable member of a composite unit.
type SubEntity struct {
	Health float64
}

type Unit struct {
	Key      Key
	OwnerID  string
	Card     types.Card
	Template *types.Template
	Stats    types.Stats
	Node     *board.Node

	Health float64
	Subs   []SubEntity

	Heading     float64
	WeaponReady bool
	ReloadLeft  float64
	MoveLeft    float64

	State     State
	Target    Key
	HasTarget bool

	destroyed bool
}

func newUnit(key Key, owner string, card types.Card, tpl *types.Template, node *board.Node) *Unit {
	u := &Unit{
		Key:         key,
		OwnerID:     owner,
		Card:        card,
		Template:    tpl,
		Stats:       tpl.StatsAt(card.Level),
		Node:        node,
		WeaponReady: true,
	}
	if tpl.SubEntities > 1 {
		u.Subs = make([]SubEntity, tpl.SubEntities)
		for i := range u.Subs {
			u.Subs[i].Health = u.Stats.Health
		}
	} else {
		u.Health = u.Stats.Health
	}
	// face the enemy side
	if key.Side == types.SideRed {
		u.Heading = math.Pi
	}
	return u
}

func (u *Unit) Alive() bool { return u != nil && !u.destroyed }

func (u *Unit) Composite() bool { return u.Subs != nil }

// TotalHealth is the aggregate health, summed over sub-entities for composites.
func (u *Unit) TotalHealth() float64 {
	if !u.Composite() {
		return u.Health
	}
	var sum float64
	for _, s := range u.Subs {
		sum += s.Health
	}
	return sum
}

func (u *Unit) Mobile() bool { return u.Template.Mobile() }

func (u *Unit) IsMain() bool { return u.Template.MainStructure }

func (u *Unit) Pos() board.Point { return u.Node.Pos }

// Tick advances the reload and move countdowns.
func (u *Unit) Tick(dt float64) {
	if !u.WeaponReady {
		u.ReloadLeft -= dt
		if u.ReloadLeft <= 0 {
			u.ReloadLeft = 0
			u.WeaponReady = true
		}
	}
	if u.MoveLeft > 0 {
		u.MoveLeft = math.Max(0, u.MoveLeft-dt)
	}
}

// hit applies damage to one sub-entity (or the whole unit) and reports
// whether the unit is now dead.
func (u *Unit) hit(sub int, dmg float64) bool {
	if !u.Composite() {
		u.Health -= dmg
		return u.Health <= 0
	}
	if sub < 0 || sub >= len(u.Subs) {
		sub = 0
	}
	u.Subs[sub].Health -= dmg
	if u.Subs[sub].Health <= 0 {
		u.Subs = append(u.Subs[:sub], u.Subs[sub+1:]...)
	}
	return len(u.Subs) == 0
}

// hitAll applies the same damage to every sub-entity in one pass.
func (u *Unit) hitAll(dmg float64) bool {
	if !u.Composite() {
		return u.hit(0, dmg)
	}
	alive := u.Subs[:0]
	for _, s := range u.Subs {
		s.Health -= dmg
		if s.Health > 0 {
			alive = append(alive, s)
		}
	}
	u.Subs = alive
	return len(u.Subs) == 0
}
