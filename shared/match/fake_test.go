package match

import (
	"context"
	"errors"
	"testing"

	"tidewar/shared/game/types"
	"tidewar/shared/protocol"
)

type wireMsg struct {
	from string
	op   protocol.OpCode
	to   []string
}

// fakeNet is an in-memory relay: ordered per sender, no self-delivery.
type fakeNet struct {
	peers map[string]*Match
	log   []wireMsg
	down  map[string]bool
}

func newFakeNet() *fakeNet { return &fakeNet{peers: map[string]*Match{}, down: map[string]bool{}} }

type endpoint struct {
	net  *fakeNet
	self string
}

func (e endpoint) SendMatchState(_ string, op int64, payload string, to ...string) error {
	if e.net.down[e.self] {
		return errors.New("socket closed")
	}
	e.net.log = append(e.net.log, wireMsg{from: e.self, op: protocol.OpCode(op), to: to})
	targets := to
	if len(targets) == 0 {
		for id := range e.net.peers {
			targets = append(targets, id)
		}
	}
	for _, id := range targets {
		if p := e.net.peers[id]; p != nil && id != e.self {
			if err := p.Deliver(context.Background(), e.self, op, payload); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *fakeNet) count(op protocol.OpCode) int {
	c := 0
	for _, m := range n.log {
		if m.op == op {
			c++
		}
	}
	return c
}

func deckOf(typ string, n int) []types.Card {
	out := make([]types.Card, n)
	for i := range out {
		out[i] = types.Card{Type: typ, Level: 1}
	}
	return out
}

type pair struct {
	net          *fakeNet
	host, client *Match
}

const (
	hostID   = "amy"
	clientID = "bob"
)

func newPair(t *testing.T, rules types.Rules, catalog *types.Catalog) pair {
	t.Helper()
	n := newFakeNet()
	mk := func(self string) *Match {
		m, err := New(Config{
			MatchID: "m1",
			SelfID:  self,
			HostID:  hostID,
			Players: []string{hostID, clientID},
			Present: []string{hostID, clientID},
			Catalog: catalog,
			Rules:   rules,
			Seed:    42,
		}, endpoint{net: n, self: self})
		if err != nil {
			t.Fatalf("New(%s): %v", self, err)
		}
		n.peers[self] = m
		return m
	}
	return pair{net: n, host: mk(hostID), client: mk(clientID)}
}

// start submits both decks and pumps until both peers have their hands.
func (p pair) start(t *testing.T, hostDeck, clientDeck []types.Card) {
	t.Helper()
	if err := p.host.SubmitDeck(hostDeck); err != nil {
		t.Fatalf("host submit: %v", err)
	}
	if err := p.client.SubmitDeck(clientDeck); err != nil {
		t.Fatalf("client submit: %v", err)
	}
	p.tick(0)
	if !p.host.Started() || !p.client.Started() {
		t.Fatalf("match did not start: host=%v client=%v", p.host.Started(), p.client.Started())
	}
}

func (p pair) tick(dt float64) {
	p.host.Tick(dt)
	p.client.Tick(dt)
}

func testRules() types.Rules {
	r := types.DefaultRules()
	r.TimeLimit = 0
	return r
}
