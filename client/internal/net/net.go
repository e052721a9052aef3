// Package net is the peer side of the relay: pairing, match join and the
// match message stream.
package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tidewar/shared/logging"
	"tidewar/shared/protocol"
)

var ErrClosed = errors.New("net: connection closed")

// RelayError is an Error frame sent by the relay.
type RelayError struct {
	Code    string
	Message string
}

func (e *RelayError) Error() string { return "relay: " + e.Code + ": " + e.Message }

// MatchState is one relayed match message.
type MatchState struct {
	Sender  string
	OpCode  int64
	Payload string
}

// MatchPresence lists user ids that joined or left the match.
type MatchPresence struct {
	Joins  []string
	Leaves []string
}

// Event carries exactly one of State or Presence.
type Event struct {
	State    *MatchState
	Presence *MatchPresence
}

type Conn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	control chan protocol.MsgEnvelope
	waiting atomic.Int32
	events  chan Event
	done    chan struct{}
	once    sync.Once
}

// Dial opens the relay socket with the session token in both the header and
// the query string.
func Dial(ctx context.Context, wsURL, token string) (*Conn, error) {
	hdr := http.Header{}
	if token != "" {
		hdr.Set("Authorization", "Bearer "+token)
		if u, err := neturl.Parse(wsURL); err == nil {
			q := u.Query()
			q.Set("token", token)
			u.RawQuery = q.Encode()
			wsURL = u.String()
		}
	}
	dialer := websocket.Dialer{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		Proxy:             http.ProxyFromEnvironment,
	}
	c, resp, err := dialer.DialContext(ctx, wsURL, hdr)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("dial relay: %s: %s", resp.Status, body)
		}
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	n := &Conn{
		conn:    c,
		control: make(chan protocol.MsgEnvelope, 16),
		events:  make(chan Event, protocol.RecvBuffer),
		done:    make(chan struct{}),
	}
	go n.reader()
	return n, nil
}

// Events yields match traffic in arrival order. It is closed when the socket
// goes away.
func (n *Conn) Events() <-chan Event { return n.events }

func (n *Conn) reader() {
	defer func() {
		n.markClosed()
		close(n.events)
		close(n.control)
	}()
	for {
		_, data, err := n.conn.ReadMessage()
		if err != nil {
			if !n.IsClosed() {
				logging.Debug("relay read ended", logging.Fields{"err": err.Error()})
			}
			return
		}
		var env protocol.MsgEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Error("decode relay frame", err, nil)
			continue
		}
		var ev Event
		switch env.Type {
		case protocol.TypeMatchData:
			var d protocol.MatchData
			if err := json.Unmarshal(env.Data, &d); err != nil {
				logging.Error("decode match data", err, nil)
				continue
			}
			ev.State = &MatchState{Sender: d.Sender, OpCode: d.OpCode, Payload: d.Data}
		case protocol.TypeMatchPresence:
			var p protocol.MatchPresenceEvent
			if err := json.Unmarshal(env.Data, &p); err != nil {
				logging.Error("decode presence", err, nil)
				continue
			}
			ev.Presence = &MatchPresence{Joins: userIDs(p.Joins), Leaves: userIDs(p.Leaves)}
		default:
			n.dispatchControl(env)
			continue
		}
		select {
		case n.events <- ev:
		case <-n.done:
			return
		}
	}
}

// dispatchControl hands a relay frame to a pending QueueForMatch or
// JoinMatch. Frames nobody waits for are logged and dropped so the match
// stream keeps flowing.
func (n *Conn) dispatchControl(env protocol.MsgEnvelope) {
	if n.waiting.Load() > 0 {
		select {
		case n.control <- env:
			return
		default:
		}
	}
	if env.Type == protocol.TypeError {
		var e protocol.ErrorMsg
		_ = json.Unmarshal(env.Data, &e)
		logging.Warn("relay error", logging.Fields{"code": e.Code, "message": e.Message})
		return
	}
	logging.Debug("unexpected relay frame dropped", logging.Fields{"type": env.Type})
}

func userIDs(ps []protocol.Presence) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.UserID)
	}
	return out
}

func (n *Conn) send(typ string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	out, _ := json.Marshal(protocol.MsgEnvelope{Type: typ, Data: b})

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	_ = n.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := n.conn.WriteMessage(websocket.TextMessage, out); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}

// request sends one control frame and returns the data of the next reply
// of type want. Error frames become *RelayError; other frames are skipped.
func (n *Conn) request(ctx context.Context, typ string, msg any, want string, v any) error {
	n.waiting.Add(1)
	defer n.waiting.Add(-1)
	for stale := true; stale; {
		select {
		case _, ok := <-n.control:
			stale = ok
		default:
			stale = false
		}
	}
	if err := n.send(typ, msg); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-n.control:
			if !ok {
				return ErrClosed
			}
			switch env.Type {
			case want:
				return json.Unmarshal(env.Data, v)
			case protocol.TypeError:
				var e protocol.ErrorMsg
				_ = json.Unmarshal(env.Data, &e)
				return &RelayError{Code: e.Code, Message: e.Message}
			}
		}
	}
}

// QueueForMatch waits in the pairing queue until the relay hands out a
// match token. Canceling ctx leaves the queue.
func (n *Conn) QueueForMatch(ctx context.Context) (protocol.Matched, error) {
	var m protocol.Matched
	err := n.request(ctx, protocol.TypeQueueJoin, protocol.QueueJoin{}, protocol.TypeMatched, &m)
	if ctx.Err() != nil {
		_ = n.send(protocol.TypeQueueLeave, protocol.QueueLeave{})
	}
	return m, err
}

func (n *Conn) JoinMatch(ctx context.Context, token string) (protocol.MatchJoined, error) {
	var j protocol.MatchJoined
	err := n.request(ctx, protocol.TypeMatchJoin, protocol.MatchJoin{Token: token}, protocol.TypeMatchJoined, &j)
	return j, err
}

// SendMatchState relays one match message; empty to means every other
// member of the match.
func (n *Conn) SendMatchState(matchID string, opCode int64, payload string, to ...string) error {
	return n.send(protocol.TypeMatchData, protocol.MatchData{MatchID: matchID, OpCode: opCode, Data: payload, To: to})
}

func (n *Conn) LeaveMatch(matchID string) error {
	return n.send(protocol.TypeMatchLeave, protocol.MatchLeave{MatchID: matchID})
}

func (n *Conn) markClosed() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
}

func (n *Conn) IsClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

// Close closes the socket; the reader then closes Events.
func (n *Conn) Close() error {
	var err error
	n.once.Do(func() {
		n.markClosed()
		close(n.done)
		err = n.conn.Close()
	})
	return err
}
