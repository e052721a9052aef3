package types

import "fmt"

// Rules are the per-match tunables both peers must agree on.
type Rules struct {
	BoardCols int `json:"board_cols"`
	BoardRows int `json:"board_rows"`

	StartingGold float64 `json:"starting_gold"`
	GoldRate     float64 `json:"gold_rate"` // gold per second
	GoldMax      float64 `json:"gold_max"`

	HandSize int `json:"hand_size"`
	DeckSize int `json:"deck_size"`

	TickRate  int     `json:"tick_rate"`
	TimeLimit float64 `json:"time_limit"` // seconds, 0 disables

	RequestTimeout   float64 `json:"request_timeout"`
	GoldSyncInterval float64 `json:"gold_sync_interval"`
	AutoplayInterval float64 `json:"autoplay_interval"`

	StarterDeck []Card `json:"starter_deck"`
}

func DefaultRules() Rules {
	return Rules{
		BoardCols:        17,
		BoardRows:        9,
		StartingGold:     4,
		GoldRate:         1.0,
		GoldMax:          10,
		HandSize:         4,
		DeckSize:         8,
		TickRate:         20,
		TimeLimit:        180,
		RequestTimeout:   3,
		GoldSyncInterval: 1,
		AutoplayInterval: 3.5,
		StarterDeck: []Card{
			{Type: "sloop", Level: 1},
			{Type: "brig", Level: 1},
			{Type: "galleon", Level: 1},
			{Type: "boarding_party", Level: 1},
			{Type: "gunboat", Level: 1},
			{Type: "watchtower", Level: 1},
			{Type: "powder_keg", Level: 1},
			{Type: "cannon_barrage", Level: 1},
		},
	}
}

// TickSeconds is the fixed simulation step.
func (r Rules) TickSeconds() float64 { return 1.0 / float64(r.TickRate) }

func (r Rules) Validate() error {
	switch {
	case r.BoardCols < 3 || r.BoardCols%2 == 0:
		return fmt.Errorf("board_cols must be odd and >= 3, got %d", r.BoardCols)
	case r.BoardRows < 2:
		return fmt.Errorf("board_rows must be >= 2, got %d", r.BoardRows)
	case r.GoldMax <= 0 || r.StartingGold < 0 || r.StartingGold > r.GoldMax:
		return fmt.Errorf("starting_gold must be within [0, gold_max]")
	case r.GoldRate < 0:
		return fmt.Errorf("gold_rate must not be negative")
	case r.HandSize < 1 || r.DeckSize <= r.HandSize:
		return fmt.Errorf("deck_size (%d) must exceed hand_size (%d)", r.DeckSize, r.HandSize)
	case r.TickRate <= 0:
		return fmt.Errorf("tick_rate must be positive")
	}
	return nil
}
