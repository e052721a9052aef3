package economy

import (
	"fmt"
	"math/rand"

	"tidewar/shared/game/types"
)

// Deck cycles one player's cards between hand, draw sequence and the return
// pool. Cards are never created or destroyed.
type Deck struct {
	hand   []types.Card
	draw   []types.Card
	played []types.Card
	rng    *rand.Rand
}

// NewDeck shuffles cards and deals handSize of them.
func NewDeck(cards []types.Card, handSize int, rng *rand.Rand) (*Deck, error) {
	if handSize < 1 || len(cards) <= handSize {
		return nil, fmt.Errorf("deck of %d cards cannot fill a hand of %d", len(cards), handSize)
	}
	pile := append([]types.Card(nil), cards...)
	rng.Shuffle(len(pile), func(i, j int) { pile[i], pile[j] = pile[j], pile[i] })
	d := &Deck{rng: rng}
	d.hand = append(d.hand, pile[:handSize]...)
	d.draw = append(d.draw, pile[handSize:]...)
	return d, nil
}

// Hand returns a copy of the current hand.
func (d *Deck) Hand() []types.Card { return append([]types.Card(nil), d.hand...) }

func (d *Deck) HandSize() int { return len(d.hand) }

// Slot returns the card in hand slot i.
func (d *Deck) Slot(i int) (types.Card, bool) {
	if i < 0 || i >= len(d.hand) {
		return types.Card{}, false
	}
	return d.hand[i], true
}

// Next previews the card Draw would return, reshuffling if needed.
func (d *Deck) Next() types.Card {
	d.refill()
	return d.draw[0]
}

// Draw pops the next card. When the draw sequence is empty the return pool
// is shuffled into a new one first.
func (d *Deck) Draw() types.Card {
	d.refill()
	c := d.draw[0]
	d.draw = d.draw[1:]
	return c
}

// Play moves hand slot i to the return pool and refills the slot.
func (d *Deck) Play(i int) (played, drawn types.Card) {
	played, ok := d.Slot(i)
	if !ok {
		panic(fmt.Sprintf("economy: play slot %d of %d", i, len(d.hand)))
	}
	d.played = append(d.played, played)
	drawn = d.Draw()
	d.hand[i] = drawn
	return played, drawn
}

// Size is the total card count over all piles.
func (d *Deck) Size() int { return len(d.hand) + len(d.draw) + len(d.played) }

func (d *Deck) refill() {
	if len(d.draw) > 0 {
		return
	}
	if len(d.played) == 0 {
		panic("economy: draw from an exhausted deck")
	}
	d.draw, d.played = d.played, nil
	d.rng.Shuffle(len(d.draw), func(i, j int) { d.draw[i], d.draw[j] = d.draw[j], d.draw[i] })
}
