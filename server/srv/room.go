package srv

import (
	"log"
	"time"

	"tidewar/server/auth"
	"tidewar/server/metrics"
	"tidewar/shared/protocol"
)

// Room relays one match between its two players. Guarded by Hub.mu.
type Room struct {
	ID      string
	HostID  string
	players []auth.Identity
	members map[string]*client
	created time.Time
	joined  bool
}

func newRoom(id string, host, guest auth.Identity) *Room {
	return &Room{
		ID:      id,
		HostID:  host.UserID,
		players: []auth.Identity{host, guest},
		members: make(map[string]*client, 2),
		created: time.Now(),
	}
}

func presenceOf(id auth.Identity) protocol.Presence {
	return protocol.Presence{UserID: id.UserID, Username: id.Username}
}

func (r *Room) isPlayer(userID string) bool {
	for _, p := range r.players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// join admits c and announces it to the members already present. A second
// socket of the same user replaces the first.
func (r *Room) join(c *client) (protocol.MatchJoined, bool) {
	if !r.isPlayer(c.user.UserID) {
		return protocol.MatchJoined{}, false
	}
	if old := r.members[c.user.UserID]; old != nil && old != c {
		old.room = nil
		old.close()
	}
	r.members[c.user.UserID] = c
	r.joined = true

	ev := protocol.MatchPresenceEvent{MatchID: r.ID, Joins: []protocol.Presence{presenceOf(c.user)}}
	for uid, m := range r.members {
		if uid != c.user.UserID {
			sendJSON(m, protocol.TypeMatchPresence, ev)
		}
	}
	log.Printf("[match %s] %s joined (%d/%d)", r.ID, c.user.Username, len(r.members), len(r.players))
	return protocol.MatchJoined{
		MatchID:   r.ID,
		HostID:    r.HostID,
		Self:      presenceOf(c.user),
		Players:   []protocol.Presence{presenceOf(r.players[0]), presenceOf(r.players[1])},
		Presences: r.presences(),
	}, true
}

// presences lists connected members in player order.
func (r *Room) presences() []protocol.Presence {
	out := make([]protocol.Presence, 0, len(r.members))
	for _, p := range r.players {
		if r.members[p.UserID] != nil {
			out = append(out, presenceOf(p))
		}
	}
	return out
}

// relay stamps the sender and forwards d to its addressees, or to every
// other member when none are named. Frames are never echoed to the sender.
func (r *Room) relay(from *client, d protocol.MatchData) {
	d.MatchID = r.ID
	d.Sender = from.user.UserID
	targets := d.To
	d.To = nil
	if len(targets) == 0 {
		for uid := range r.members {
			targets = append(targets, uid)
		}
	}
	for _, uid := range targets {
		if uid == from.user.UserID {
			continue
		}
		if m := r.members[uid]; m != nil {
			sendJSON(m, protocol.TypeMatchData, d)
			metrics.FramesRelayed.Inc()
		}
	}
}

func (r *Room) leave(c *client) {
	if r.members[c.user.UserID] != c {
		return
	}
	delete(r.members, c.user.UserID)
	ev := protocol.MatchPresenceEvent{MatchID: r.ID, Leaves: []protocol.Presence{presenceOf(c.user)}}
	for _, m := range r.members {
		sendJSON(m, protocol.TypeMatchPresence, ev)
	}
	log.Printf("[match %s] %s left (%d remain)", r.ID, c.user.Username, len(r.members))
}

// dead reports rooms everyone left, or that nobody joined in time.
func (r *Room) dead(now time.Time, timeout time.Duration) bool {
	if len(r.members) > 0 {
		return false
	}
	return r.joined || now.Sub(r.created) >= timeout
}
