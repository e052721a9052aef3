package protocol

import "tidewar/shared/game/types"

// Payloads are flat JSON objects. Fields may be added, never renamed.

type UnitSpawned struct {
	Side    types.Side `json:"side"`
	ID      int        `json:"id"`
	OwnerID string     `json:"ownerId"`
	Card    types.Card `json:"card"`
	NodeX   int        `json:"nodeX"`
	NodeY   int        `json:"nodeY"`
}

type UnitMoved struct {
	Side  types.Side `json:"side"`
	ID    int        `json:"id"`
	NodeX int        `json:"nodeX"`
	NodeY int        `json:"nodeY"`
}

type UnitAttacked struct {
	Side       types.Side       `json:"side"`
	ID         int              `json:"id"`
	TargetSide types.Side       `json:"targetSide"`
	TargetID   int              `json:"targetId"`
	SubEntity  int              `json:"subEntity"`
	Damage     float64          `json:"damage"`
	AttackType types.AttackType `json:"attackType"`
	Radius     float64          `json:"radius,omitempty"`
}

type SpellActivated struct {
	Side    types.Side `json:"side"`
	OwnerID string     `json:"ownerId"`
	Card    types.Card `json:"card"`
	NodeX   int        `json:"nodeX"`
	NodeY   int        `json:"nodeY"`
	Damage  float64    `json:"damage"`
	Radius  float64    `json:"radius"`
}

// CardPlayRequest targets are in the requester's own framing.
type CardPlayRequest struct {
	PlayerID      string     `json:"playerId"`
	Card          types.Card `json:"card"`
	HandSlotIndex int        `json:"handSlotIndex"`
	TargetX       float64    `json:"targetX"`
	TargetY       float64    `json:"targetY"`
	TargetZ       float64    `json:"targetZ"`
}

type CardPlayed struct {
	PlayerID      string      `json:"playerId"`
	Card          types.Card  `json:"card"`
	NewCard       types.Card  `json:"newCard"`
	HandSlotIndex int         `json:"handSlotIndex"`
	NodeX         int         `json:"nodeX"`
	NodeY         int         `json:"nodeY"`
	Gold          float64     `json:"gold"`
	Next          *types.Card `json:"next,omitempty"`
}

// Cancel reasons.
const (
	CancelGold     = "gold"
	CancelOccupied = "occupied"
	CancelRegion   = "region"
	CancelInvalid  = "invalid"
	CancelEnded    = "ended"
)

type CardCanceled struct {
	PlayerID      string     `json:"playerId"`
	Card          types.Card `json:"card"`
	HandSlotIndex int        `json:"handSlotIndex"`
	Reason        string     `json:"reason"`
}

type StartingHand struct {
	PlayerID string       `json:"playerId"`
	Side     types.Side   `json:"side"`
	Cards    []types.Card `json:"cards"`
	Next     types.Card   `json:"next"`
	Gold     float64      `json:"gold"`
}

// End reasons.
const (
	EndMainDestroyed = "main_destroyed"
	EndTimeLimit     = "time_limit"
	EndDisconnect    = "disconnect"
)

type MatchEnded struct {
	WinnerID        string         `json:"winnerId"`
	LoserID         string         `json:"loserId"`
	Draw            bool           `json:"draw,omitempty"`
	Reason          string         `json:"reason"`
	DurationSeconds float64        `json:"durationSeconds"`
	TowersDestroyed map[string]int `json:"towersDestroyed"`
}

type DeckSubmit struct {
	PlayerID string       `json:"playerId"`
	Cards    []types.Card `json:"cards"`
}

type GoldSync struct {
	PlayerID string  `json:"playerId"`
	Gold     float64 `json:"gold"`
	Max      float64 `json:"max"`
}
