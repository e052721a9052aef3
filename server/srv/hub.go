// server/srv/hub.go
package srv

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"tidewar/server/auth"
	"tidewar/server/metrics"
	"tidewar/shared/logging"
	"tidewar/shared/protocol"
)

// Tokens is the slice of auth the relay needs.
type Tokens interface {
	ParseSession(tok string) (auth.Identity, error)
	IssueMatchToken(matchID string, id auth.Identity) (string, error)
	ParseMatchToken(tok string) (auth.MatchClaims, error)
}

type Options struct {
	// QueueTimeout drops unpaired players; zero waits forever.
	QueueTimeout time.Duration
	// RoomTimeout reaps rooms nobody joined.
	RoomTimeout time.Duration
	// MsgRate and MsgBurst bound inbound frames per socket. Match data over
	// the limit is delayed; other frames are rejected.
	MsgRate  rate.Limit
	MsgBurst int
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	id       int64
	user     auth.Identity
	room     *Room
	queuedAt time.Time
	limiter  *rate.Limiter
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
}

// close stops the writer; the reader notices the closed socket.
func (c *client) close() {
	c.once.Do(func() {
		c.cancel()
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub owns queue and rooms. All fields are guarded by mu.
type Hub struct {
	mu      sync.Mutex
	tokens  Tokens
	opts    Options
	clients map[*client]struct{}
	rooms   map[string]*Room
	queue   []*client
}

func NewHub(tokens Tokens, opts Options) *Hub {
	if opts.MsgRate <= 0 {
		opts.MsgRate = rate.Inf
	}
	if opts.MsgBurst <= 0 {
		opts.MsgBurst = 1
	}
	if opts.RoomTimeout <= 0 {
		opts.RoomTimeout = time.Minute
	}
	return &Hub{
		tokens:  tokens,
		opts:    opts,
		clients: make(map[*client]struct{}),
		rooms:   make(map[string]*Room),
		queue:   make([]*client, 0, 64),
	}
}

// Run sweeps stale queue entries and dead rooms until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil
		case now := <-ticker.C:
			h.sweep(now)
		}
	}
}

func (h *Hub) sweep(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.opts.QueueTimeout > 0 {
		kept := h.queue[:0]
		for _, c := range h.queue {
			if now.Sub(c.queuedAt) >= h.opts.QueueTimeout {
				sendJSON(c, protocol.TypeError, protocol.ErrorMsg{Code: "queue_timeout", Message: "no opponent found"})
				metrics.QueueTimeouts.Inc()
				continue
			}
			kept = append(kept, c)
		}
		h.queue = kept
	}
	for id, r := range h.rooms {
		if r.dead(now, h.opts.RoomTimeout) {
			delete(h.rooms, id)
			metrics.RoomsOpen.Dec()
			logging.Debug("room reaped", logging.Fields{"match": id})
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

// Rooms reports the number of live rooms.
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// HandleWS serves one authenticated socket until it closes.
func (h *Hub) HandleWS(conn *websocket.Conn, id auth.Identity) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		ctx:     ctx,
		cancel:  cancel,
		conn:    conn,
		send:    make(chan []byte, protocol.SendBuffer),
		done:    make(chan struct{}),
		id:      protocol.NewID(),
		user:    id,
		limiter: rate.NewLimiter(h.opts.MsgRate, h.opts.MsgBurst),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.SocketsOpen.Inc()
	logging.Info("socket connected", logging.Fields{"conn": c.id, "user": id.UserID})

	go c.writer()
	c.reader(h)
}

func (c *client) reader(h *Hub) {
	defer func() {
		h.disconnect(c)
		c.close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, websocket.ErrCloseSent) {
				logging.Debug("socket read ended", logging.Fields{"conn": c.id, "err": err.Error()})
			}
			return
		}
		var env protocol.MsgEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			if c.limiter.Allow() {
				sendJSON(c, protocol.TypeError, protocol.ErrorMsg{Code: "bad_frame", Message: "invalid envelope"})
			}
			continue
		}
		if !c.admit(env.Type) {
			if c.ctx.Err() != nil {
				return
			}
			metrics.FramesLimited.Inc()
			sendJSON(c, protocol.TypeError, protocol.ErrorMsg{Code: "rate_limited", Message: "too many messages"})
			continue
		}
		h.handle(c, env)
	}
}

// admit applies the socket's rate limit. Match data carries commits that
// peers cannot lose, so it waits for a token instead of being rejected.
func (c *client) admit(typ string) bool {
	if typ == protocol.TypeMatchData {
		return c.limiter.Wait(c.ctx) == nil
	}
	return c.limiter.Allow()
}

func (h *Hub) handle(c *client, env protocol.MsgEnvelope) {
	switch env.Type {
	case protocol.TypeQueueJoin:
		h.enqueue(c)
	case protocol.TypeQueueLeave:
		h.mu.Lock()
		h.dequeueLocked(c)
		h.mu.Unlock()
	case protocol.TypeMatchJoin:
		var msg protocol.MatchJoin
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			sendJSON(c, protocol.TypeError, protocol.ErrorMsg{Code: "bad_frame", Message: "invalid MatchJoin"})
			return
		}
		h.join(c, msg.Token)
	case protocol.TypeMatchData:
		var msg protocol.MatchData
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			sendJSON(c, protocol.TypeError, protocol.ErrorMsg{Code: "bad_frame", Message: "invalid MatchData"})
			return
		}
		h.mu.Lock()
		if r := c.room; r != nil && r.ID == msg.MatchID {
			r.relay(c, msg)
		} else {
			sendJSON(c, protocol.TypeError, protocol.ErrorMsg{Code: "not_in_match", Message: "join the match first"})
		}
		h.mu.Unlock()
	case protocol.TypeMatchLeave:
		h.mu.Lock()
		if r := c.room; r != nil {
			r.leave(c)
			c.room = nil
		}
		h.mu.Unlock()
	default:
		sendJSON(c, protocol.TypeError, protocol.ErrorMsg{Code: "unknown_type", Message: env.Type})
	}
}

// enqueue adds c to the pairing queue and pairs while two are waiting. The
// first queued player of a pair hosts the match.
func (h *Hub) enqueue(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.room != nil {
		sendJSON(c, protocol.TypeError, protocol.ErrorMsg{Code: "in_match", Message: "already in a match"})
		return
	}
	for _, x := range h.queue {
		if x == c || x.user.UserID == c.user.UserID {
			return
		}
	}
	c.queuedAt = time.Now()
	h.queue = append(h.queue, c)
	sendJSON(c, protocol.TypeQueued, protocol.Queued{Position: len(h.queue)})

	for len(h.queue) >= 2 {
		a, b := h.queue[0], h.queue[1]
		h.queue = h.queue[2:]

		r := newRoom(uuid.NewString(), a.user, b.user)
		ta, errA := h.tokens.IssueMatchToken(r.ID, a.user)
		tb, errB := h.tokens.IssueMatchToken(r.ID, b.user)
		if err := errors.Join(errA, errB); err != nil {
			logging.Error("issue match tokens", err, logging.Fields{"match": r.ID})
			sendJSON(a, protocol.TypeError, protocol.ErrorMsg{Code: "internal", Message: "matchmaking failed"})
			sendJSON(b, protocol.TypeError, protocol.ErrorMsg{Code: "internal", Message: "matchmaking failed"})
			continue
		}
		h.rooms[r.ID] = r
		metrics.RoomsOpen.Inc()
		metrics.MatchesPaired.Inc()
		sendJSON(a, protocol.TypeMatched, protocol.Matched{MatchID: r.ID, Token: ta})
		sendJSON(b, protocol.TypeMatched, protocol.Matched{MatchID: r.ID, Token: tb})
		logging.Info("match paired", logging.Fields{"match": r.ID, "host": a.user.UserID, "guest": b.user.UserID})
	}
}

func (h *Hub) dequeueLocked(c *client) {
	for i, x := range h.queue {
		if x == c {
			h.queue = append(h.queue[:i], h.queue[i+1:]...)
			return
		}
	}
}

func (h *Hub) join(c *client, token string) {
	claims, err := h.tokens.ParseMatchToken(token)
	if err != nil || claims.Subject != c.user.UserID {
		sendJSON(c, protocol.TypeError, protocol.ErrorMsg{Code: "bad_token", Message: "invalid match token"})
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.rooms[claims.MatchID]
	if r == nil {
		sendJSON(c, protocol.TypeError, protocol.ErrorMsg{Code: "no_match", Message: "match is gone"})
		return
	}
	if c.room != nil && c.room != r {
		c.room.leave(c)
	}
	joined, ok := r.join(c)
	if !ok {
		sendJSON(c, protocol.TypeError, protocol.ErrorMsg{Code: "not_a_player", Message: "not a player of this match"})
		return
	}
	h.dequeueLocked(c)
	c.room = r
	sendJSON(c, protocol.TypeMatchJoined, joined)
}

func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	metrics.SocketsOpen.Dec()
	h.dequeueLocked(c)
	if c.room != nil {
		c.room.leave(c)
		c.room = nil
	}
	logging.Info("socket closed", logging.Fields{"conn": c.id, "user": c.user.UserID})
}

func (c *client) writer() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		}
	}
}

// sendJSON never blocks. A socket that cannot keep up is dropped rather than
// skipping frames, since match state must arrive complete and in order.
func sendJSON(c *client, typ string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		logging.Error("encode frame", err, logging.Fields{"type": typ})
		return
	}
	out, _ := json.Marshal(protocol.MsgEnvelope{Type: typ, Data: b})
	select {
	case <-c.done:
	case c.send <- out:
	default:
		metrics.SlowSocketDrop.Inc()
		logging.Warn("send buffer full, dropping socket", logging.Fields{"conn": c.id, "user": c.user.UserID})
		c.close()
	}
}
