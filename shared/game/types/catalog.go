package types

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Tower template ids every catalog must define.
const (
	TowerMain = "tower_main"
	TowerSide = "tower_side"
)

//go:embed cards.json
var defaultCards []byte

// Catalog is the immutable card template table shared by every peer.
type Catalog struct {
	templates map[string]*Template
	order     []string
}

type catalogFile struct {
	Cards []Template `json:"cards"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() *Catalog {
	defaultOnce.Do(func() {
		c, err := ParseCatalog(defaultCards)
		if err != nil {
			panic(fmt.Sprintf("embedded cards.json: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// LoadCatalog reads a catalog file. An empty path yields the embedded default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := ParseCatalog(b)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func ParseCatalog(b []byte) (*Catalog, error) {
	var f catalogFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	c := &Catalog{templates: make(map[string]*Template, len(f.Cards))}
	for i := range f.Cards {
		t := f.Cards[i]
		if t.Type == "" {
			return nil, fmt.Errorf("card entry %d missing 'type'", i)
		}
		if _, dup := c.templates[t.Type]; dup {
			return nil, fmt.Errorf("duplicate card type %q", t.Type)
		}
		if t.Cost < 0 {
			return nil, fmt.Errorf("card %q: negative cost", t.Type)
		}
		if t.Kind != KindSpell && t.Base.Health <= 0 {
			return nil, fmt.Errorf("card %q: health must be positive", t.Type)
		}
		if t.Attack == AttackArea && t.Radius <= 0 {
			return nil, fmt.Errorf("card %q: area attack without radius", t.Type)
		}
		if t.SubEntities < 0 {
			return nil, fmt.Errorf("card %q: negative sub_entities", t.Type)
		}
		c.templates[t.Type] = &t
		c.order = append(c.order, t.Type)
	}
	for _, id := range []string{TowerMain, TowerSide} {
		t, ok := c.templates[id]
		if !ok || t.Kind != KindStructure {
			return nil, fmt.Errorf("catalog must define structure %q", id)
		}
	}
	if !c.templates[TowerMain].MainStructure {
		return nil, fmt.Errorf("%q must be flagged main_structure", TowerMain)
	}
	sort.Strings(c.order)
	return c, nil
}

func (c *Catalog) Template(typ string) (*Template, bool) {
	t, ok := c.templates[typ]
	return t, ok
}

// MustTemplate panics on unknown types. Use it only for types that were
// validated when they entered the match.
func (c *Catalog) MustTemplate(typ string) *Template {
	t, ok := c.templates[typ]
	if !ok {
		panic(fmt.Sprintf("unknown card type %q", typ))
	}
	return t
}

// Types lists every template id in sorted order.
func (c *Catalog) Types() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Playable lists template ids that may appear in decks.
func (c *Catalog) Playable() []string {
	var out []string
	for _, id := range c.order {
		if c.templates[id].InDeck() {
			out = append(out, id)
		}
	}
	return out
}

// Validate checks that a card refers to a deck-legal template and level.
func (c *Catalog) Validate(card Card) error {
	t, ok := c.templates[card.Type]
	if !ok {
		return fmt.Errorf("unknown card type %q", card.Type)
	}
	if !t.InDeck() {
		return fmt.Errorf("card type %q is not playable", card.Type)
	}
	if card.Level < 1 || card.Level > MaxLevel {
		return fmt.Errorf("card %s: level out of range", card)
	}
	return nil
}
