package units

import (
	"fmt"
	"math"
	"sort"

	"tidewar/shared/game/board"
	"tidewar/shared/game/types"
)

// Registry owns every live unit of a match, keyed by (side, id).
type Registry struct {
	board   *board.Board
	catalog *types.Catalog

	units  map[Key]*Unit
	nextID [2]int

	onDestroyed []func(*Unit)
}

func NewRegistry(b *board.Board, c *types.Catalog) *Registry {
	return &Registry{board: b, catalog: c, units: map[Key]*Unit{}, nextID: [2]int{1, 1}}
}

// Allocate hands out the next id for side. Only the host allocates.
func (r *Registry) Allocate(side types.Side) Key {
	k := Key{Side: side, ID: r.nextID[side]}
	r.nextID[side]++
	return k
}

// OnDestroyed registers a callback run after a unit leaves the registry.
func (r *Registry) OnDestroyed(fn func(*Unit)) { r.onDestroyed = append(r.onDestroyed, fn) }

func (r *Registry) Get(k Key) *Unit { return r.units[k] }

func (r *Registry) Len() int { return len(r.units) }

// All returns live units ordered by (side, id).
func (r *Registry) All() []*Unit {
	out := make([]*Unit, 0, len(r.units))
	for _, u := range r.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out
}

func (r *Registry) Side(side types.Side) []*Unit {
	var out []*Unit
	for _, u := range r.All() {
		if u.Key.Side == side {
			out = append(out, u)
		}
	}
	return out
}

// Spawn applies a spawn commit. Reusing an id or landing on an occupied
// node means host and peer disagree, so both panic.
func (r *Registry) Spawn(k Key, owner string, card types.Card, node *board.Node) *Unit {
	if _, dup := r.units[k]; dup || k.ID < 1 {
		panic(fmt.Sprintf("units: spawn reuses id %s", k))
	}
	if node == nil {
		panic(fmt.Sprintf("units: spawn %s off board", k))
	}
	tpl := r.catalog.MustTemplate(card.Type)
	u := newUnit(k, owner, card, tpl, node)
	node.SetOccupant(u)
	r.units[k] = u
	if k.ID >= r.nextID[k.Side] {
		r.nextID[k.Side] = k.ID + 1
	}
	return u
}

// Move applies a move commit and starts the unit's move countdown.
func (r *Registry) Move(k Key, to *board.Node) *Unit {
	u := r.mustGet(k, "move")
	if to == nil {
		panic(fmt.Sprintf("units: move %s off board", k))
	}
	if to == u.Node {
		return u
	}
	from := u.Node
	to.SetOccupant(u)
	from.Clear()
	u.Node = to
	heading := from.Pos.Angle(to.Pos)
	u.MoveLeft = u.Stats.MoveTime
	if math.Abs(angleDiff(heading, u.Heading)) > 1e-6 {
		u.MoveLeft += u.Stats.RotationTime
		u.Heading = heading
	}
	return u
}

// Attack is a resolved attack commit.
type Attack struct {
	Attacker  Key
	Target    Key
	SubEntity int
	Damage    float64
	Type      types.AttackType
	Radius    float64
}

// ApplyAttack resolves an attack commit identically on every peer and
// returns the units it destroyed.
func (r *Registry) ApplyAttack(a Attack) []*Unit {
	attacker := r.mustGet(a.Attacker, "attack")
	attacker.WeaponReady = false
	attacker.ReloadLeft = attacker.Stats.Reload

	target := r.mustGet(a.Target, "attack target")
	attacker.Heading = attacker.Node.Pos.Angle(target.Node.Pos)
	if a.Type == types.AttackArea {
		return r.ApplyArea(attacker.Key.Side, target.Node.Pos, a.Radius, a.Damage)
	}
	if target.hit(a.SubEntity, a.Damage) {
		r.destroy(target)
		return []*Unit{target}
	}
	return nil
}

// ApplyArea damages every unit of the other side within radius of center.
// Composite units take the damage on every sub-entity.
func (r *Registry) ApplyArea(caster types.Side, center board.Point, radius, dmg float64) []*Unit {
	var dead []*Unit
	for _, u := range r.All() {
		if u.Key.Side == caster || u.Node.Pos.Dist(center) > radius+1e-9 {
			continue
		}
		if u.hitAll(dmg) {
			dead = append(dead, u)
		}
	}
	for _, u := range dead {
		r.destroy(u)
	}
	return dead
}

// NearestEnemy returns the closest live unit of the opposing side.
func (r *Registry) NearestEnemy(u *Unit) *Unit {
	var best *Unit
	bestD := math.Inf(1)
	for _, o := range r.Side(u.Key.Side.Opponent()) {
		if d := u.Node.Pos.Dist(o.Node.Pos); d < bestD {
			best, bestD = o, d
		}
	}
	return best
}

func (r *Registry) destroy(u *Unit) {
	u.destroyed = true
	u.State = StateDestroyed
	u.HasTarget = false
	if u.Node != nil {
		u.Node.Clear()
	}
	delete(r.units, u.Key)
	for _, fn := range r.onDestroyed {
		fn(u)
	}
}

func (r *Registry) mustGet(k Key, op string) *Unit {
	u, ok := r.units[k]
	if !ok {
		panic(fmt.Sprintf("units: %s references unknown unit %s", op, k))
	}
	return u
}

func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b+math.Pi, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return d - math.Pi
}
