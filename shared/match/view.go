package match

import (
	"math"

	"tidewar/shared/game/types"
)

// HandView is a peer's mirror of its own hand and gold. It is rebuilt only
// from commits; pending plays are a preview that the next CardPlayed or
// CardCanceled for the slot resolves.
type HandView struct {
	Cards []types.Card
	Next  types.Card
	Gold  float64
	Max   float64

	rate    float64
	pending map[int]float64
}

func newHandView(rules types.Rules) *HandView {
	return &HandView{Max: rules.GoldMax, rate: rules.GoldRate, pending: map[int]float64{}}
}

func (v *HandView) reset(cards []types.Card, next types.Card, gold float64) {
	v.Cards = append([]types.Card(nil), cards...)
	v.Next = next
	v.Gold = gold
	v.pending = map[int]float64{}
}

func (v HandView) Pending(slot int) bool {
	_, ok := v.pending[slot]
	return ok
}

func (v *HandView) slot(i int) (types.Card, bool) {
	if i < 0 || i >= len(v.Cards) {
		return types.Card{}, false
	}
	return v.Cards[i], true
}

func (v *HandView) markPending(slot int) { v.pending[slot] = 0 }

func (v *HandView) commit(slot int, drawn types.Card, next *types.Card, gold float64) {
	delete(v.pending, slot)
	if slot >= 0 && slot < len(v.Cards) {
		v.Cards[slot] = drawn
	}
	if next != nil {
		v.Next = *next
	}
	v.Gold = gold
}

func (v *HandView) cancel(slot int) { delete(v.pending, slot) }

// advance ages pending plays and accrues the advisory gold estimate. It
// returns the slots whose request timed out; those cards are back in hand.
func (v *HandView) advance(dt, timeout float64) []int {
	v.Gold = math.Min(v.Max, v.Gold+v.rate*dt)
	var expired []int
	for slot, age := range v.pending {
		age += dt
		if timeout > 0 && age >= timeout {
			delete(v.pending, slot)
			expired = append(expired, slot)
			continue
		}
		v.pending[slot] = age
	}
	return expired
}

func (v *HandView) clone() HandView {
	c := *v
	c.Cards = append([]types.Card(nil), v.Cards...)
	c.pending = make(map[int]float64, len(v.pending))
	for k, a := range v.pending {
		c.pending[k] = a
	}
	return c
}
