package net

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tidewar/shared/protocol"
)

// fakeRelay answers pairing and join frames and bounces match data back
// stamped with a fixed sender. After a join it sends noise Error frames
// before the presence event.
func fakeRelay(t *testing.T, wantToken string, noise int) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+wantToken || r.URL.Query().Get("token") != wantToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		reply := func(typ string, v any) {
			b, _ := json.Marshal(v)
			_ = c.WriteJSON(protocol.MsgEnvelope{Type: typ, Data: b})
		}
		for {
			var env protocol.MsgEnvelope
			if err := c.ReadJSON(&env); err != nil {
				return
			}
			switch env.Type {
			case protocol.TypeQueueJoin:
				reply(protocol.TypeQueued, protocol.Queued{Position: 1})
				reply(protocol.TypeMatched, protocol.Matched{MatchID: "m1", Token: "mt"})
			case protocol.TypeMatchJoin:
				var j protocol.MatchJoin
				_ = json.Unmarshal(env.Data, &j)
				if j.Token != "mt" {
					reply(protocol.TypeError, protocol.ErrorMsg{Code: "bad_token", Message: "invalid match token"})
					continue
				}
				reply(protocol.TypeMatchJoined, protocol.MatchJoined{MatchID: "m1", HostID: "amy"})
				for i := 0; i < noise; i++ {
					reply(protocol.TypeError, protocol.ErrorMsg{Code: "rate_limited", Message: "too many messages"})
				}
				reply(protocol.TypeMatchPresence, protocol.MatchPresenceEvent{MatchID: "m1", Joins: []protocol.Presence{{UserID: "bob"}}})
			case protocol.TypeMatchData:
				var d protocol.MatchData
				_ = json.Unmarshal(env.Data, &d)
				d.Sender = "bob"
				reply(protocol.TypeMatchData, d)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestQueueJoinAndRelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := Dial(ctx, fakeRelay(t, "sess", 0), "sess")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer n.Close()

	m, err := n.QueueForMatch(ctx)
	if err != nil || m.Token != "mt" {
		t.Fatalf("queue = %+v, %v", m, err)
	}
	if _, err := n.JoinMatch(ctx, "wrong"); err == nil {
		t.Fatalf("join with bad token succeeded")
	} else {
		var re *RelayError
		if !errors.As(err, &re) || re.Code != "bad_token" {
			t.Fatalf("join error = %v", err)
		}
	}
	j, err := n.JoinMatch(ctx, m.Token)
	if err != nil || j.HostID != "amy" {
		t.Fatalf("join = %+v, %v", j, err)
	}
	if err := n.SendMatchState("m1", 7, "{}"); err != nil {
		t.Fatalf("send: %v", err)
	}

	ev := <-n.Events()
	if ev.Presence == nil || len(ev.Presence.Joins) != 1 || ev.Presence.Joins[0] != "bob" {
		t.Fatalf("first event = %+v", ev)
	}
	ev = <-n.Events()
	if ev.State == nil || ev.State.Sender != "bob" || ev.State.OpCode != 7 || ev.State.Payload != "{}" {
		t.Fatalf("second event = %+v", ev)
	}
}

func TestCloseEndsEventsAndSends(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := Dial(ctx, fakeRelay(t, "sess", 0), "sess")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = n.Close()
	for range n.Events() {
	}
	if err := n.SendMatchState("m1", 1, "{}"); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close: %v", err)
	}
	if _, err := n.JoinMatch(ctx, "mt"); !errors.Is(err, ErrClosed) {
		t.Fatalf("join after close: %v", err)
	}
}

func TestDialRejectedWithoutSession(t *testing.T) {
	if _, err := Dial(context.Background(), fakeRelay(t, "sess", 0), "other"); err == nil {
		t.Fatalf("dial with wrong session succeeded")
	}
}

func TestUnsolicitedErrorsDoNotStallMatchEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := Dial(ctx, fakeRelay(t, "sess", 40), "sess")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer n.Close()
	if _, err := n.JoinMatch(ctx, "mt"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := n.SendMatchState("m1", 4, "{}"); err != nil {
		t.Fatalf("send: %v", err)
	}
	for _, want := range []string{"presence", "state"} {
		select {
		case ev := <-n.Events():
			if (want == "presence") != (ev.Presence != nil) {
				t.Fatalf("got %+v, want %s", ev, want)
			}
		case <-ctx.Done():
			t.Fatalf("%s event never arrived after relay errors", want)
		}
	}
}
