package protocol

// Meta backend RPC ids, served at POST /rpc/<id>.
const (
	RPCHandleMatchEnd = "handle_match_end"
	RPCLoadUserCards  = "load_user_cards"
	RPCSwapDeckCard   = "swap_deck_card"
	RPCUpgradeCard    = "upgrade_card"
)

// OwnedCard is one card instance in a user's deck or collection.
type OwnedCard struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Level int    `json:"level"`
}

type UserCards struct {
	Deck       []OwnedCard `json:"deck"`
	Collection []OwnedCard `json:"collection"`
	Gems       int64       `json:"gems"`
}

type SwapDeckCardReq struct {
	DeckCardID       string `json:"deckCardId"`
	CollectionCardID string `json:"collectionCardId"`
}

type UpgradeCardReq struct {
	CardID string `json:"cardId"`
}

// MatchEndReq is one player's own result. Placement 1 is a win.
type MatchEndReq struct {
	MatchID         string  `json:"matchId"`
	Placement       int     `json:"placement"`
	DurationSeconds float64 `json:"durationSeconds"`
	TowersDestroyed int     `json:"towersDestroyed"`
}

type MatchEndResp struct {
	GemsAwarded int64  `json:"gemsAwarded"`
	Score       int    `json:"score"`
	Rank        string `json:"rank"`
}

type MatchRecord struct {
	MatchID         string  `json:"matchId"`
	Placement       int     `json:"placement"`
	DurationSeconds float64 `json:"durationSeconds"`
	TowersDestroyed int     `json:"towersDestroyed"`
	GemsAwarded     int64   `json:"gemsAwarded"`
	ScoreDelta      int     `json:"scoreDelta"`
}

type Profile struct {
	UserID  string        `json:"userId"`
	Gems    int64         `json:"gems"`
	Score   int           `json:"score"`
	Rank    string        `json:"rank"`
	Wins    int           `json:"wins"`
	Losses  int           `json:"losses"`
	History []MatchRecord `json:"history"`
}

// RPCError is the error body of every failed meta call.
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RPCErrorResp struct {
	Error RPCError `json:"error"`
}
