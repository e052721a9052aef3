package behavior

import (
	"testing"

	"tidewar/shared/game/board"
	"tidewar/shared/game/types"
	"tidewar/shared/game/units"
)

// applyEmitter applies decisions straight to the registry, the way the
// host's self-delivery does.
type applyEmitter struct {
	reg     *units.Registry
	moves   []string
	attacks int
}

func (a *applyEmitter) EmitMove(u *units.Unit, to *board.Node) {
	a.moves = append(a.moves, u.Key.String()+"->"+to.String())
	a.reg.Move(u.Key, to)
}

func (a *applyEmitter) EmitAttack(u, t *units.Unit) {
	a.attacks++
	a.reg.ApplyAttack(units.Attack{Attacker: u.Key, Target: t.Key, Damage: u.Stats.Damage, Type: u.Template.Attack, Radius: u.Template.Radius})
}

// pocket is a small graph where the enemy at T can only be reached through
// A and B, both next to the approacher at S. C hangs off A, D off C.
type pocket struct {
	b                *board.Board
	t, a, bn, s, c, d *board.Node
}

func newPocket(linkCB bool) pocket {
	bl := board.NewBuilder()
	p := pocket{}
	p.t = bl.Add(4, 1, board.Point{X: 4, Z: 1})
	p.a = bl.Add(3, 0, board.Point{X: 3, Z: 0.5})
	p.bn = bl.Add(3, 2, board.Point{X: 3, Z: 1.5})
	p.s = bl.Add(2, 1, board.Point{X: 2, Z: 1})
	p.c = bl.Add(2, 0, board.Point{X: 2, Z: 0})
	p.d = bl.Add(1, 0, board.Point{X: 1, Z: 0})
	bl.Link(p.t, p.a)
	bl.Link(p.t, p.bn)
	bl.Link(p.s, p.a)
	bl.Link(p.s, p.bn)
	bl.Link(p.a, p.c)
	bl.Link(p.c, p.d)
	if linkCB {
		bl.Link(p.c, p.bn)
	}
	p.b = bl.Build()
	return p
}

func spawn(r *units.Registry, side types.Side, typ string, n *board.Node) *units.Unit {
	owner := "amy"
	if side == types.SideRed {
		owner = "bob"
	}
	return r.Spawn(r.Allocate(side), owner, types.Card{Type: typ, Level: 1}, n)
}

func TestRearrangementFreesOneAdjacentNode(t *testing.T) {
	p := newPocket(false)
	r := units.NewRegistry(p.b, types.DefaultCatalog())
	f1 := spawn(r, types.SideBlue, "sloop", p.a)
	spawn(r, types.SideBlue, "sloop", p.bn)
	u := spawn(r, types.SideBlue, "sloop", p.s)
	enemy := spawn(r, types.SideRed, "brig", p.t)

	e := New(p.b, r, &applyEmitter{reg: r})
	chain, next := e.PlanMove(u, enemy)
	if next != p.a {
		t.Fatalf("next = %v, want A", next)
	}
	if len(chain) != 1 || chain[0].Unit != f1 || chain[0].To != p.c {
		t.Fatalf("chain = %+v", chain)
	}
}

func TestRearrangementRecursesDeepestFirst(t *testing.T) {
	p := newPocket(false)
	r := units.NewRegistry(p.b, types.DefaultCatalog())
	f1 := spawn(r, types.SideBlue, "sloop", p.a)
	spawn(r, types.SideBlue, "sloop", p.bn)
	f3 := spawn(r, types.SideBlue, "sloop", p.c)
	u := spawn(r, types.SideBlue, "sloop", p.s)
	enemy := spawn(r, types.SideRed, "brig", p.t)

	chain, next := New(p.b, r, nil).PlanMove(u, enemy)
	if next != p.a || len(chain) != 2 {
		t.Fatalf("next=%v chain=%+v", next, chain)
	}
	if chain[0].Unit != f3 || chain[0].To != p.d || chain[1].Unit != f1 || chain[1].To != p.c {
		t.Fatalf("chain order wrong: %+v", chain)
	}
}

func TestRearrangementYieldsNilWhenBlockersCannotMove(t *testing.T) {
	p := newPocket(false)
	r := units.NewRegistry(p.b, types.DefaultCatalog())
	spawn(r, types.SideBlue, "watchtower", p.a)
	spawn(r, types.SideBlue, "watchtower", p.bn)
	u := spawn(r, types.SideBlue, "sloop", p.s)
	enemy := spawn(r, types.SideRed, "brig", p.t)

	em := &applyEmitter{reg: r}
	e := New(p.b, r, em)
	if chain, next := e.PlanMove(u, enemy); next != nil || chain != nil {
		t.Fatalf("expected no move, got %v %+v", next, chain)
	}
	e.Step(0.05)
	if u.Node != p.s || len(em.moves) != 0 {
		t.Fatalf("u should stay put, moves=%v", em.moves)
	}
	if u.State != units.StateApproaching {
		t.Fatalf("state = %s", u.State)
	}
}

func TestRearrangementSkipsBlockersCoolingDown(t *testing.T) {
	p := newPocket(false)
	r := units.NewRegistry(p.b, types.DefaultCatalog())
	f1 := spawn(r, types.SideBlue, "sloop", p.a)
	f2 := spawn(r, types.SideBlue, "sloop", p.bn)
	u := spawn(r, types.SideBlue, "sloop", p.s)
	enemy := spawn(r, types.SideRed, "brig", p.t)
	f1.MoveLeft, f2.MoveLeft = 0.4, 0.4

	if chain, next := New(p.b, r, nil).PlanMove(u, enemy); next != nil || chain != nil {
		t.Fatalf("blockers mid-move were asked to move: next=%v chain=%+v", next, chain)
	}
	f1.MoveLeft = 0
	if chain, next := New(p.b, r, nil).PlanMove(u, enemy); next != p.a || len(chain) != 1 || chain[0].Unit != f1 {
		t.Fatalf("ready blocker not moved: next=%v chain=%+v", next, chain)
	}
}

func TestRearrangementTerminatesOnCycles(t *testing.T) {
	p := newPocket(true)
	r := units.NewRegistry(p.b, types.DefaultCatalog())
	spawn(r, types.SideBlue, "sloop", p.a)
	spawn(r, types.SideBlue, "sloop", p.bn)
	spawn(r, types.SideBlue, "sloop", p.c)
	spawn(r, types.SideBlue, "watchtower", p.d)
	u := spawn(r, types.SideBlue, "sloop", p.s)
	enemy := spawn(r, types.SideRed, "brig", p.t)

	if chain, next := New(p.b, r, nil).PlanMove(u, enemy); next != nil || chain != nil {
		t.Fatalf("expected nil move, got %v %+v", next, chain)
	}
}

func TestStepExecutesChainThenMovesApproacher(t *testing.T) {
	p := newPocket(false)
	r := units.NewRegistry(p.b, types.DefaultCatalog())
	f1 := spawn(r, types.SideBlue, "sloop", p.a)
	spawn(r, types.SideBlue, "sloop", p.bn)
	u := spawn(r, types.SideBlue, "sloop", p.s)
	spawn(r, types.SideRed, "brig", p.t)

	em := &applyEmitter{reg: r}
	New(p.b, r, em).Step(0.05)
	if f1.Node != p.c || u.Node != p.a {
		t.Fatalf("f1 at %v, u at %v", f1.Node, u.Node)
	}
	if want := []string{"blue#1->(2,0)", "blue#3->(3,0)"}; len(em.moves) != 2 || em.moves[0] != want[0] || em.moves[1] != want[1] {
		t.Fatalf("moves = %v, want %v", em.moves, want)
	}
	if p.s.Occupied() {
		t.Fatalf("S should be free")
	}
}

func TestEngagedUnitAttacksOncePerReload(t *testing.T) {
	b := board.NewHex(9, 5)
	r := units.NewRegistry(b, types.DefaultCatalog())
	a := spawn(r, types.SideBlue, "sloop", b.Node(4, 2))
	enemy := spawn(r, types.SideRed, "galleon", b.Node(5, 2))
	em := &applyEmitter{reg: r}
	e := New(b, r, em)

	dt := 0.05
	e.Step(dt)
	if a.State != units.StateEngaged || em.attacks != 2 {
		t.Fatalf("state=%s attacks=%d", a.State, em.attacks)
	}
	start := enemy.Health
	ticks := int(a.Stats.Reload/dt) - 2
	for i := 0; i < ticks; i++ {
		e.Step(dt)
	}
	if enemy.Health != start {
		t.Fatalf("attacked before reload elapsed")
	}
	for i := 0; i < 4; i++ {
		e.Step(dt)
	}
	if enemy.Health >= start {
		t.Fatalf("no attack after reload")
	}
}

func TestIdleWithoutEnemiesAndStructuresHold(t *testing.T) {
	b := board.NewHex(9, 5)
	r := units.NewRegistry(b, types.DefaultCatalog())
	tower := spawn(r, types.SideBlue, "watchtower", b.Node(1, 2))
	em := &applyEmitter{reg: r}
	e := New(b, r, em)
	e.Step(0.05)
	if tower.State != units.StateIdle {
		t.Fatalf("state = %s", tower.State)
	}
	spawn(r, types.SideRed, "sloop", b.Node(7, 2))
	e.Step(0.05)
	if tower.Node != b.Node(1, 2) || tower.State != units.StateApproaching {
		t.Fatalf("structure moved or wrong state: %v %s", tower.Node, tower.State)
	}
}

func TestApproachMovesCloser(t *testing.T) {
	b := board.NewHex(9, 5)
	r := units.NewRegistry(b, types.DefaultCatalog())
	u := spawn(r, types.SideBlue, "sloop", b.Node(0, 2))
	enemy := spawn(r, types.SideRed, "watchtower", b.Node(8, 2))
	em := &applyEmitter{reg: r}
	e := New(b, r, em)
	before := u.Pos().Dist(enemy.Pos())
	e.Step(0.05)
	if len(em.moves) != 1 || u.Pos().Dist(enemy.Pos()) >= before {
		t.Fatalf("unit did not approach: %v", em.moves)
	}
	e.Step(0.05)
	if len(em.moves) != 1 {
		t.Fatalf("moved again before the move countdown elapsed")
	}
}
