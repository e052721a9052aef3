package economy

import (
	"fmt"
	"math"
)

// Purse is one player's gold. It is owned by the host simulation.
type Purse struct {
	gold float64
	rate float64
	max  float64
}

func NewPurse(start, rate, max float64) *Purse {
	return &Purse{gold: math.Min(math.Max(start, 0), max), rate: rate, max: max}
}

func (p *Purse) Gold() float64 { return p.gold }

func (p *Purse) Max() float64 { return p.max }

// Accrue adds rate*dt, clamped to the maximum.
func (p *Purse) Accrue(dt float64) {
	if dt <= 0 {
		return
	}
	p.gold = math.Min(p.max, p.gold+p.rate*dt)
}

func (p *Purse) CanAfford(cost int) bool { return p.gold >= float64(cost) }

// Spend debits cost. Callers must check CanAfford first; overspending is a
// logic error and panics.
func (p *Purse) Spend(cost int) {
	if cost < 0 || !p.CanAfford(cost) {
		panic(fmt.Sprintf("economy: spend %d with %.2f gold", cost, p.gold))
	}
	p.gold -= float64(cost)
}
