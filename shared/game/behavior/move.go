package behavior

import (
	"math"

	"tidewar/shared/game/board"
	"tidewar/shared/game/units"
)

// Step is one move of a rearrangement chain.
type Step struct {
	Unit *units.Unit
	To   *board.Node
}

// PlanMove picks u's next node towards target. chain lists moves other
// friendly units must make first, deepest first. A nil next means u stays.
func (e *Engine) PlanMove(u, target *units.Unit) (chain []Step, next *board.Node) {
	if !u.Mobile() {
		return nil, nil
	}
	common := e.board.CommonNeighbors(u.Node, target.Node)
	for _, n := range common {
		if !n.Occupied() {
			return nil, n
		}
	}
	for _, n := range common {
		f, ok := n.Occupant().(*units.Unit)
		if !ok || f.Key.Side != u.Key.Side {
			continue
		}
		if plan, ok := e.vacate(f, target, []units.Key{u.Key}); ok {
			return plan, n
		}
	}
	return nil, e.bestAngle(u, target)
}

// vacate plans moves that get f off its node. Units still cooling down from
// a move hold their node. visited is copied on every
// level so sibling branches do not see each other's units.
func (e *Engine) vacate(f, target *units.Unit, visited []units.Key) ([]Step, bool) {
	if !f.Mobile() || f.MoveLeft > 0 || len(visited) > e.units.Len() {
		return nil, false
	}
	for _, k := range visited {
		if k == f.Key {
			return nil, false
		}
	}
	visited = append(visited[:len(visited):len(visited)], f.Key)

	var free *board.Node
	for _, n := range f.Node.Neighbors() {
		if n.Occupied() {
			continue
		}
		if e.board.Adjacent(n, target.Node) {
			return []Step{{Unit: f, To: n}}, true
		}
		if free == nil {
			free = n
		}
	}
	if free != nil {
		return []Step{{Unit: f, To: free}}, true
	}
	for _, n := range f.Node.Neighbors() {
		g, ok := n.Occupant().(*units.Unit)
		if !ok || g.Key.Side != f.Key.Side {
			continue
		}
		if sub, ok := e.vacate(g, target, visited); ok {
			return append(sub, Step{Unit: f, To: n}), true
		}
	}
	return nil, false
}

// bestAngle returns the free neighbor whose heading is closest to the
// target's direction among those strictly closer to the target.
func (e *Engine) bestAngle(u, target *units.Unit) *board.Node {
	dir := u.Pos().Angle(target.Pos())
	cur := u.Pos().Dist(target.Pos())
	var best *board.Node
	bestDiff := math.Inf(1)
	for _, n := range u.Node.Neighbors() {
		if n.Occupied() || n.Pos.Dist(target.Pos()) >= cur-1e-9 {
			continue
		}
		if d := math.Abs(angleDiff(u.Node.Links[n].Angle, dir)); d < bestDiff {
			best, bestDiff = n, d
		}
	}
	return best
}

func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b+math.Pi, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return d - math.Pi
}
