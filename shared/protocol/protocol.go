package protocol

import "encoding/json"

// MsgEnvelope frames every websocket message between a peer and the relay.
type MsgEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Relay frame types.
const (
	TypeQueueJoin     = "QueueJoin"
	TypeQueueLeave    = "QueueLeave"
	TypeQueued        = "Queued"
	TypeMatched       = "Matched"
	TypeMatchJoin     = "MatchJoin"
	TypeMatchJoined   = "MatchJoined"
	TypeMatchData     = "MatchData"
	TypeMatchPresence = "MatchPresence"
	TypeMatchLeave    = "MatchLeave"
	TypeError         = "Error"
)

type Presence struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type QueueJoin struct{}
type QueueLeave struct{}
type Queued struct {
	Position int `json:"position"`
}

// Matched carries the short-lived token that admits the user to one match.
type Matched struct {
	MatchID string `json:"matchId"`
	Token   string `json:"token"`
}

type MatchJoin struct {
	Token string `json:"token"`
}

// MatchJoined lists both players of the match and the ones connected now.
type MatchJoined struct {
	MatchID   string     `json:"matchId"`
	HostID    string     `json:"hostId"`
	Self      Presence   `json:"self"`
	Players   []Presence `json:"players"`
	Presences []Presence `json:"presences"`
}

// MatchData is one match message on the wire. Data holds the JSON payload for
// OpCode. To limits delivery to the listed users; empty means everyone else.
// Sender is stamped by the relay and ignored when sent by a peer.
type MatchData struct {
	MatchID string   `json:"matchId"`
	OpCode  int64    `json:"opCode"`
	Data    string   `json:"data"`
	To      []string `json:"to,omitempty"`
	Sender  string   `json:"sender,omitempty"`
}

type MatchPresenceEvent struct {
	MatchID string     `json:"matchId"`
	Joins   []Presence `json:"joins,omitempty"`
	Leaves  []Presence `json:"leaves,omitempty"`
}

type MatchLeave struct {
	MatchID string `json:"matchId"`
}

type ErrorMsg struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
