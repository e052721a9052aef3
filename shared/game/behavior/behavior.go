// Package behavior drives units on the host: targeting, movement and attack
// timing. It never mutates the registry itself; every decision goes out
// through the Emitter, whose commits are applied before the call returns.
package behavior

import (
	"tidewar/shared/game/board"
	"tidewar/shared/game/units"
)

type Emitter interface {
	EmitMove(u *units.Unit, to *board.Node)
	EmitAttack(u, target *units.Unit)
}

type Engine struct {
	board *board.Board
	units *units.Registry
	emit  Emitter
}

func New(b *board.Board, reg *units.Registry, emit Emitter) *Engine {
	return &Engine{board: b, units: reg, emit: emit}
}

// Step advances every unit by dt seconds.
func (e *Engine) Step(dt float64) {
	all := e.units.All()
	for _, u := range all {
		u.Tick(dt)
	}
	for _, u := range all {
		if !u.Alive() {
			continue
		}
		e.think(u)
	}
}

func (e *Engine) think(u *units.Unit) {
	target := e.acquire(u)
	if target == nil {
		u.State = units.StateIdle
		return
	}
	if e.board.Adjacent(u.Node, target.Node) {
		u.State = units.StateEngaged
		if u.WeaponReady {
			e.emit.EmitAttack(u, target)
		}
		return
	}
	u.State = units.StateApproaching
	if !u.Mobile() || u.MoveLeft > 0 {
		return
	}
	chain, next := e.PlanMove(u, target)
	if next == nil {
		return
	}
	for _, s := range chain {
		e.emit.EmitMove(s.Unit, s.To)
	}
	e.emit.EmitMove(u, next)
}

// acquire keeps a live target or picks the nearest enemy. Structures drop a
// target that is not adjacent so they fire at whatever comes into reach.
func (e *Engine) acquire(u *units.Unit) *units.Unit {
	if u.HasTarget {
		if t := e.units.Get(u.Target); t.Alive() && (u.Mobile() || e.board.Adjacent(u.Node, t.Node)) {
			return t
		}
	}
	t := e.units.NearestEnemy(u)
	if t == nil {
		u.HasTarget = false
		return nil
	}
	u.Target, u.HasTarget = t.Key, true
	return t
}
