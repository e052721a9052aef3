// Package peer runs one match for the headless client: it pumps relay
// traffic into the match, ticks it and reports the result.
package peer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	relaynet "tidewar/client/internal/net"
	"tidewar/shared/game/types"
	"tidewar/shared/logging"
	"tidewar/shared/match"
	"tidewar/shared/protocol"
)

var ErrTransportClosed = errors.New("peer: transport closed before the match ended")

// Transport is the relay connection a session plays over.
type Transport interface {
	match.Transport
	Events() <-chan relaynet.Event
	LeaveMatch(matchID string) error
	Close() error
}

// Reporter receives the end-of-match report.
type Reporter interface {
	HandleMatchEnd(ctx context.Context, req protocol.MatchEndReq) (protocol.MatchEndResp, error)
}

type Options struct {
	Catalog *types.Catalog
	Rules   types.Rules
	// Deck is submitted to the host; empty means the starter deck.
	Deck     []types.Card
	Autoplay bool
	Seed     int64
}

type Session struct {
	m        *match.Match
	tr       Transport
	reporter Reporter
	deck     []types.Card
	auto     *autoplayer
	reported bool
	rewarded bool
	reward   protocol.MatchEndResp
}

// NewSession builds the match described by joined.
func NewSession(joined protocol.MatchJoined, tr Transport, reporter Reporter, opts Options) (*Session, error) {
	if opts.Rules.TickRate == 0 {
		opts.Rules = types.DefaultRules()
	}
	players := make([]string, 0, len(joined.Players))
	for _, p := range joined.Players {
		players = append(players, p.UserID)
	}
	present := make([]string, 0, len(joined.Presences))
	for _, p := range joined.Presences {
		present = append(present, p.UserID)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	m, err := match.New(match.Config{
		MatchID: joined.MatchID,
		SelfID:  joined.Self.UserID,
		HostID:  joined.HostID,
		Players: players,
		Present: present,
		Catalog: opts.Catalog,
		Rules:   opts.Rules,
		Seed:    seed,
	}, tr)
	if err != nil {
		return nil, fmt.Errorf("new match %s: %w", joined.MatchID, err)
	}
	deck := opts.Deck
	if len(deck) == 0 {
		deck = opts.Rules.StarterDeck
	}
	s := &Session{m: m, tr: tr, reporter: reporter, deck: deck}
	if opts.Autoplay {
		s.auto = newAutoplayer(opts.Rules.AutoplayInterval, seed+1)
	}
	return s, nil
}

func (s *Session) Match() *match.Match { return s.m }

// Reward is the backend's answer to the end report, if one was made.
func (s *Session) Reward() (protocol.MatchEndResp, bool) { return s.reward, s.rewarded }

// Run plays the match to its end. The pump and the tick loop share one
// errgroup; whichever stops first stops the other. The match and the
// transport are closed on return.
func (s *Session) Run(ctx context.Context) error {
	defer s.tr.Close()
	defer s.m.Close()

	if err := s.m.SubmitDeck(s.deck); err != nil {
		return fmt.Errorf("submit deck: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.pump(ctx) })
	g.Go(func() error {
		defer cancel()
		return s.loop(ctx)
	})
	err := g.Wait()
	if s.m.Ended() {
		_ = s.tr.LeaveMatch(s.m.ID())
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	return err
}

// pump moves relay events into the match inbox.
func (s *Session) pump(ctx context.Context) error {
	events := s.tr.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return ErrTransportClosed
			}
			err := s.deliver(ctx, ev)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (s *Session) deliver(ctx context.Context, ev relaynet.Event) error {
	switch {
	case ev.State != nil:
		return s.m.Deliver(ctx, ev.State.Sender, ev.State.OpCode, ev.State.Payload)
	case ev.Presence != nil:
		return s.m.DeliverPresence(ctx, ev.Presence.Joins, ev.Presence.Leaves)
	}
	return nil
}

func (s *Session) loop(ctx context.Context) error {
	dt := s.m.Rules().TickSeconds()
	ticker := time.NewTicker(time.Duration(dt * float64(time.Second)))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.step(ctx, dt) {
				return nil
			}
		}
	}
}

// step advances the match one tick and reports true once it has ended and
// the result was reported.
func (s *Session) step(ctx context.Context, dt float64) bool {
	s.m.Tick(dt)
	if s.m.Ended() {
		s.report(ctx)
		return true
	}
	if s.auto != nil {
		s.auto.step(s.m, dt)
	}
	return false
}

// report sends the local player's result once.
func (s *Session) report(ctx context.Context) {
	if s.reported || s.reporter == nil {
		return
	}
	s.reported = true
	res, _ := s.m.Result()
	req := protocol.MatchEndReq{
		MatchID:         s.m.ID(),
		Placement:       s.m.Placement(),
		DurationSeconds: s.m.Elapsed(),
		TowersDestroyed: s.m.TowersDestroyed(s.m.Self()),
	}
	reward, err := s.reporter.HandleMatchEnd(ctx, req)
	if err != nil {
		logging.Error("report match end", err, logging.Fields{"match": req.MatchID})
		return
	}
	s.reward, s.rewarded = reward, true
	logging.Info("match reported", logging.Fields{
		"match": req.MatchID, "placement": req.Placement, "reason": res.Reason,
		"gems": reward.GemsAwarded, "score": reward.Score,
	})
}
