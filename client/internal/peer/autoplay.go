package peer

import (
	"math/rand"

	"tidewar/shared/logging"
	"tidewar/shared/match"
)

// autoplayer plays the first affordable card in hand at a random node of
// the card's drop region, once every interval seconds.
type autoplayer struct {
	every float64
	left  float64
	rng   *rand.Rand
}

func newAutoplayer(every float64, seed int64) *autoplayer {
	return &autoplayer{every: every, left: every, rng: rand.New(rand.NewSource(seed))}
}

func (a *autoplayer) step(m *match.Match, dt float64) {
	if a.every <= 0 || !m.Started() || m.Ended() {
		return
	}
	a.left -= dt
	if a.left > 0 {
		return
	}
	a.left = a.every

	hand := m.Hand()
	gold := m.Gold()
	for slot, card := range hand.Cards {
		if hand.Pending(slot) {
			continue
		}
		tpl, ok := m.Catalog().Template(card.Type)
		if !ok || float64(tpl.Cost) > gold {
			continue
		}
		nodes := m.Board().RegionNodes(tpl.Region, m.Side())
		if len(nodes) == 0 {
			continue
		}
		n := nodes[a.rng.Intn(len(nodes))]
		// requests travel in the player's own framing
		target := m.Board().Framed(n.Pos, m.Side())
		if err := m.PlayCard(slot, target); err != nil {
			logging.Debug("autoplay skipped", logging.Fields{"match": m.ID(), "slot": slot, "err": err.Error()})
		}
		return
	}
}
