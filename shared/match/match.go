// Package match holds the per-match context: board, unit registry, card
// economy and dispatcher, plus the host's authoritative loop.
package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"tidewar/shared/game/behavior"
	"tidewar/shared/game/board"
	"tidewar/shared/game/economy"
	"tidewar/shared/game/types"
	"tidewar/shared/game/units"
	"tidewar/shared/logging"
	"tidewar/shared/protocol"
)

var (
	ErrNotStarted = errors.New("match: not started")
	ErrEnded      = errors.New("match: ended")
	ErrBadSlot    = errors.New("match: no card in hand slot")
	ErrPending    = errors.New("match: hand slot already pending")
)

type Config struct {
	MatchID string
	SelfID  string
	HostID  string
	// Players lists both participants; the host plays Blue.
	Players []string
	// Present lists participants already connected when the match is built.
	Present []string
	Catalog *types.Catalog
	Rules   types.Rules
	Seed    int64
}

// player is the host-side economy of one participant.
type player struct {
	id    string
	side  types.Side
	purse *economy.Purse
	deck  *economy.Deck
}

type Match struct {
	cfg     Config
	rules   types.Rules
	catalog *types.Catalog
	board   *board.Board
	units   *units.Registry
	disp    *Dispatcher
	engine  *behavior.Engine
	rng     *rand.Rand

	sides   map[string]types.Side
	players map[string]*player
	present map[string]bool
	view    *HandView

	deck     []types.Card
	deckSent bool

	started  bool
	ended    bool
	elapsed  float64
	syncLeft float64

	towersDestroyed map[string]int
	mainDown        map[types.Side]bool
	result          protocol.MatchEnded
	done            chan struct{}
}

func New(cfg Config, tr Transport) (*Match, error) {
	if cfg.Catalog == nil {
		cfg.Catalog = types.DefaultCatalog()
	}
	if err := cfg.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("match rules: %w", err)
	}
	if len(cfg.Players) != 2 || cfg.Players[0] == cfg.Players[1] {
		return nil, fmt.Errorf("match needs two distinct players, got %v", cfg.Players)
	}
	sides := map[string]types.Side{}
	for _, id := range cfg.Players {
		sides[id] = types.SideRed
	}
	if _, ok := sides[cfg.HostID]; !ok {
		return nil, fmt.Errorf("host %q is not a player", cfg.HostID)
	}
	if _, ok := sides[cfg.SelfID]; !ok {
		return nil, fmt.Errorf("self %q is not a player", cfg.SelfID)
	}
	sides[cfg.HostID] = types.SideBlue

	b := board.NewHex(cfg.Rules.BoardCols, cfg.Rules.BoardRows)
	m := &Match{
		cfg:             cfg,
		rules:           cfg.Rules,
		catalog:         cfg.Catalog,
		board:           b,
		units:           units.NewRegistry(b, cfg.Catalog),
		disp:            NewDispatcher(cfg.MatchID, cfg.SelfID, cfg.HostID, tr, protocol.RecvBuffer),
		rng:             rand.New(rand.NewSource(cfg.Seed)),
		sides:           sides,
		players:         map[string]*player{},
		present:         map[string]bool{cfg.SelfID: true},
		view:            newHandView(cfg.Rules),
		towersDestroyed: map[string]int{},
		mainDown:        map[types.Side]bool{},
		done:            make(chan struct{}),
	}
	for _, id := range cfg.Present {
		m.present[id] = true
	}
	m.units.OnDestroyed(m.onUnitDestroyed)
	if m.IsHost() {
		m.engine = behavior.New(b, m.units, m)
	}
	m.subscribe()
	return m, nil
}

func (m *Match) subscribe() {
	d := m.disp
	Handle(d, protocol.OpDeckSubmit, m.onDeckSubmit)
	Handle(d, protocol.OpCardPlayRequest, m.resolve)
	Handle(d, protocol.OpStartingHand, m.onStartingHand)
	Handle(d, protocol.OpCardPlayed, m.onCardPlayed)
	Handle(d, protocol.OpCardCanceled, m.onCardCanceled)
	Handle(d, protocol.OpUnitSpawned, m.onUnitSpawned)
	Handle(d, protocol.OpUnitMoved, m.onUnitMoved)
	Handle(d, protocol.OpUnitAttacked, m.onUnitAttacked)
	Handle(d, protocol.OpSpellActivated, m.onSpellActivated)
	Handle(d, protocol.OpGoldSync, m.onGoldSync)
	Handle(d, protocol.OpMatchEnded, m.onMatchEnded)
	d.SubscribePresence(m.onPresence)
}

func (m *Match) ID() string                  { return m.cfg.MatchID }
func (m *Match) Self() string                { return m.cfg.SelfID }
func (m *Match) Host() string                { return m.cfg.HostID }
func (m *Match) IsHost() bool                { return m.disp.IsHost() }
func (m *Match) Side() types.Side            { return m.sides[m.cfg.SelfID] }
func (m *Match) SideOf(id string) types.Side { return m.sides[id] }
func (m *Match) Board() *board.Board         { return m.board }
func (m *Match) Units() *units.Registry      { return m.units }
func (m *Match) Catalog() *types.Catalog     { return m.catalog }
func (m *Match) Rules() types.Rules          { return m.rules }
func (m *Match) Dispatcher() *Dispatcher     { return m.disp }
func (m *Match) Started() bool               { return m.started }
func (m *Match) Ended() bool                 { return m.ended }
func (m *Match) Elapsed() float64            { return m.elapsed }

// Hand returns a snapshot of the local player's hand mirror.
func (m *Match) Hand() HandView { return m.view.clone() }

// Done is closed once the match has ended.
func (m *Match) Done() <-chan struct{} { return m.done }

// Result returns the end-of-match summary once Done is closed.
func (m *Match) Result() (protocol.MatchEnded, bool) { return m.result, m.ended }

// Placement is 1 for the local winner, 2 otherwise. Draws place everyone 2.
func (m *Match) Placement() int {
	if m.ended && !m.result.Draw && m.result.WinnerID == m.cfg.SelfID {
		return 1
	}
	return 2
}

// TowersDestroyed is how many enemy structures id has destroyed.
func (m *Match) TowersDestroyed(id string) int { return m.towersDestroyed[id] }

// Gold returns the authoritative gold on the host and the local estimate
// elsewhere.
func (m *Match) Gold() float64 {
	if p := m.players[m.cfg.SelfID]; p != nil {
		return p.purse.Gold()
	}
	return m.view.Gold
}

// Deliver and DeliverPresence are safe to call from the transport goroutine.
func (m *Match) Deliver(ctx context.Context, from string, op int64, payload string) error {
	return m.disp.Deliver(ctx, from, op, payload)
}

func (m *Match) DeliverPresence(ctx context.Context, joins, leaves []string) error {
	return m.disp.DeliverPresence(ctx, joins, leaves)
}

// Close tears the match down: every subscription goes at once.
func (m *Match) Close() { m.disp.Close() }

func (m *Match) opponent(id string) string {
	for _, p := range m.cfg.Players {
		if p != id {
			return p
		}
	}
	return ""
}

// toHost routes a request to the host; on the host it is dispatched locally.
func (m *Match) toHost(op protocol.OpCode, msg any) error {
	if m.IsHost() {
		m.disp.SendSelf(op, msg)
		return nil
	}
	return m.disp.SendTo(op, msg, m.cfg.HostID)
}

// toPlayer addresses one participant, locally when it is us.
func (m *Match) toPlayer(id string, op protocol.OpCode, msg any) error {
	if id == m.cfg.SelfID {
		m.disp.SendSelf(op, msg)
		return nil
	}
	return m.disp.SendTo(op, msg, id)
}

// SubmitDeck hands the local deck to the host once every player is present.
func (m *Match) SubmitDeck(cards []types.Card) error {
	m.deck = append([]types.Card(nil), cards...)
	return m.trySubmitDeck()
}

func (m *Match) trySubmitDeck() error {
	if m.deckSent || m.deck == nil {
		return nil
	}
	for _, id := range m.cfg.Players {
		if !m.present[id] {
			return nil
		}
	}
	m.deckSent = true
	return m.toHost(protocol.OpDeckSubmit, protocol.DeckSubmit{PlayerID: m.cfg.SelfID, Cards: m.deck})
}

// PlayCard asks the host to play hand slot at target, given in the local
// player's framing. The slot stays pending until the host answers.
func (m *Match) PlayCard(slot int, target board.Point) error {
	if m.ended {
		return ErrEnded
	}
	if !m.started {
		return ErrNotStarted
	}
	card, ok := m.view.slot(slot)
	if !ok {
		return ErrBadSlot
	}
	if m.view.Pending(slot) {
		return ErrPending
	}
	m.view.markPending(slot)
	return m.toHost(protocol.OpCardPlayRequest, protocol.CardPlayRequest{
		PlayerID:      m.cfg.SelfID,
		Card:          card,
		HandSlotIndex: slot,
		TargetX:       target.X,
		TargetZ:       target.Z,
	})
}

// Tick runs one simulation step: queued messages first, then on the host
// gold, unit behavior and the end check.
func (m *Match) Tick(dt float64) {
	if m.started && !m.ended {
		// the estimate runs first so commits drained below overwrite it
		for _, slot := range m.view.advance(dt, m.rules.RequestTimeout) {
			logging.Info("card play timed out, returned to hand", logging.Fields{"match": m.cfg.MatchID, "slot": slot})
		}
	}
	m.disp.Drain()
	if m.ended || !m.started {
		return
	}
	m.elapsed += dt
	if m.IsHost() {
		for _, id := range m.cfg.Players {
			if p := m.players[id]; p != nil {
				p.purse.Accrue(dt)
			}
		}
		m.engine.Step(dt)
		m.syncGold(dt)
		m.checkEnd()
	}
	if m.IsHost() {
		m.view.Gold = m.Gold()
	}
}

func (m *Match) onPresence(joins, leaves []string) {
	for _, id := range joins {
		m.present[id] = true
	}
	if len(joins) > 0 {
		if err := m.trySubmitDeck(); err != nil {
			logging.Error("submit deck", err, logging.Fields{"match": m.cfg.MatchID})
		}
	}
	for _, id := range leaves {
		delete(m.present, id)
		if _, isPlayer := m.sides[id]; !isPlayer || id == m.cfg.SelfID || m.ended {
			continue
		}
		logging.Info("opponent left, ending match", logging.Fields{"match": m.cfg.MatchID, "user": id})
		if m.IsHost() {
			m.endMatch(m.cfg.SelfID, false, protocol.EndDisconnect)
			continue
		}
		// the host is gone, nobody is left to commit the end
		m.finish(protocol.MatchEnded{
			WinnerID:        m.cfg.SelfID,
			LoserID:         id,
			Reason:          protocol.EndDisconnect,
			DurationSeconds: m.elapsed,
			TowersDestroyed: m.towerCounts(),
		})
	}
}

func (m *Match) onMatchEnded(_ string, msg protocol.MatchEnded) { m.finish(msg) }

func (m *Match) finish(msg protocol.MatchEnded) {
	if m.ended {
		return
	}
	m.ended = true
	m.result = msg
	close(m.done)
	logging.Info("match ended", logging.Fields{
		"match": m.cfg.MatchID, "winner": msg.WinnerID, "reason": msg.Reason, "duration": msg.DurationSeconds,
	})
}

func (m *Match) towerCounts() map[string]int {
	out := make(map[string]int, len(m.cfg.Players))
	for _, id := range m.cfg.Players {
		out[id] = m.towersDestroyed[id]
	}
	return out
}

// onUnitDestroyed runs on every peer so tower counts agree everywhere.
func (m *Match) onUnitDestroyed(u *units.Unit) {
	if u.Template.Kind != types.KindStructure {
		return
	}
	m.towersDestroyed[m.opponent(u.OwnerID)]++
	if u.IsMain() {
		m.mainDown[u.Key.Side] = true
	}
}

func (m *Match) onGoldSync(_ string, msg protocol.GoldSync) {
	if msg.PlayerID == m.cfg.SelfID {
		m.view.Gold = msg.Gold
		m.view.Max = msg.Max
	}
}

func (m *Match) onStartingHand(_ string, msg protocol.StartingHand) {
	m.started = true
	if msg.PlayerID == m.cfg.SelfID {
		m.view.reset(msg.Cards, msg.Next, msg.Gold)
	}
}

func (m *Match) onCardPlayed(_ string, msg protocol.CardPlayed) {
	if msg.PlayerID != m.cfg.SelfID {
		return
	}
	m.view.commit(msg.HandSlotIndex, msg.NewCard, msg.Next, msg.Gold)
}

func (m *Match) onCardCanceled(_ string, msg protocol.CardCanceled) {
	if msg.PlayerID != m.cfg.SelfID {
		return
	}
	m.view.cancel(msg.HandSlotIndex)
	logging.Info("card returned to hand", logging.Fields{"match": m.cfg.MatchID, "slot": msg.HandSlotIndex, "reason": msg.Reason})
}

func (m *Match) nodeAt(x, y int, what string) *board.Node {
	n := m.board.Node(x, y)
	if n == nil {
		panic(fmt.Sprintf("match: %s references node (%d,%d) off board", what, x, y))
	}
	return n
}

func (m *Match) onUnitSpawned(_ string, msg protocol.UnitSpawned) {
	m.units.Spawn(units.Key{Side: msg.Side, ID: msg.ID}, msg.OwnerID, msg.Card, m.nodeAt(msg.NodeX, msg.NodeY, "spawn"))
}

func (m *Match) onUnitMoved(_ string, msg protocol.UnitMoved) {
	m.units.Move(units.Key{Side: msg.Side, ID: msg.ID}, m.nodeAt(msg.NodeX, msg.NodeY, "move"))
}

func (m *Match) onUnitAttacked(_ string, msg protocol.UnitAttacked) {
	m.units.ApplyAttack(units.Attack{
		Attacker:  units.Key{Side: msg.Side, ID: msg.ID},
		Target:    units.Key{Side: msg.TargetSide, ID: msg.TargetID},
		SubEntity: msg.SubEntity,
		Damage:    msg.Damage,
		Type:      msg.AttackType,
		Radius:    msg.Radius,
	})
}

func (m *Match) onSpellActivated(_ string, msg protocol.SpellActivated) {
	center := m.nodeAt(msg.NodeX, msg.NodeY, "spell")
	m.units.ApplyArea(msg.Side, center.Pos, msg.Radius, msg.Damage)
}
