package match

import (
	"fmt"

	"tidewar/shared/game/board"
	"tidewar/shared/game/economy"
	"tidewar/shared/game/types"
	"tidewar/shared/game/units"
	"tidewar/shared/logging"
	"tidewar/shared/protocol"
)

// onDeckSubmit runs on the host only. Once every player has a deck the
// battle starts.
func (m *Match) onDeckSubmit(from string, msg protocol.DeckSubmit) {
	if m.started {
		return
	}
	side, ok := m.sides[from]
	if !ok || msg.PlayerID != from {
		logging.Warn("deck from unknown sender", logging.Fields{"match": m.cfg.MatchID, "from": from, "player": msg.PlayerID})
		return
	}
	if _, dup := m.players[from]; dup {
		return
	}
	cards := msg.Cards
	if err := m.validateDeck(cards); err != nil {
		logging.Error("invalid deck, using starter deck", err, logging.Fields{"match": m.cfg.MatchID, "player": from})
		cards = m.rules.StarterDeck
	}
	deck, err := economy.NewDeck(cards, m.rules.HandSize, m.rng)
	if err != nil {
		logging.Error("cannot deal deck", err, logging.Fields{"match": m.cfg.MatchID, "player": from})
		return
	}
	m.players[from] = &player{
		id:    from,
		side:  side,
		purse: economy.NewPurse(m.rules.StartingGold, m.rules.GoldRate, m.rules.GoldMax),
		deck:  deck,
	}
	if len(m.players) == len(m.cfg.Players) {
		m.startBattle()
	}
}

func (m *Match) validateDeck(cards []types.Card) error {
	if len(cards) != m.rules.DeckSize {
		return fmt.Errorf("deck has %d cards, want %d", len(cards), m.rules.DeckSize)
	}
	for _, c := range cards {
		if err := m.catalog.Validate(c); err != nil {
			return err
		}
	}
	return nil
}

// towerSlots are the Blue-framed tower positions; Red mirrors them.
func (m *Match) towerSlots() []struct {
	typ  string
	x, y int
} {
	rows := m.rules.BoardRows
	return []struct {
		typ  string
		x, y int
	}{
		{types.TowerMain, 0, rows / 2},
		{types.TowerSide, 2, 1},
		{types.TowerSide, 2, rows - 2},
	}
}

func (m *Match) startBattle() {
	for _, id := range m.cfg.Players {
		p := m.players[id]
		for _, slot := range m.towerSlots() {
			n := m.board.Node(slot.x, slot.y)
			if n == nil {
				continue
			}
			if p.side == types.SideRed {
				n = m.board.MirrorNode(n)
			}
			if n == nil || n.Occupied() {
				continue
			}
			key := m.units.Allocate(p.side)
			m.commit(protocol.OpUnitSpawned, protocol.UnitSpawned{
				Side: key.Side, ID: key.ID, OwnerID: id,
				Card:  types.Card{Type: slot.typ, Level: 1},
				NodeX: n.X, NodeY: n.Y,
			})
		}
	}
	for _, id := range m.cfg.Players {
		p := m.players[id]
		m.commit(protocol.OpStartingHand, protocol.StartingHand{
			PlayerID: id,
			Side:     p.side,
			Cards:    p.deck.Hand(),
			Next:     p.deck.Next(),
			Gold:     p.purse.Gold(),
		})
	}
	m.syncLeft = m.rules.GoldSyncInterval
	logging.Info("battle started", logging.Fields{"match": m.cfg.MatchID, "players": m.cfg.Players})
}

func (m *Match) commit(op protocol.OpCode, msg any) {
	_ = m.disp.Commit(op, msg)
}

// resolve turns a card-play request into a commit or a cancel. Requests are
// handled one at a time in arrival order.
func (m *Match) resolve(from string, req protocol.CardPlayRequest) {
	cancel := func(reason string) {
		to := req.PlayerID
		if _, ok := m.sides[to]; !ok || to != from {
			to = from
		}
		msg := protocol.CardCanceled{PlayerID: to, Card: req.Card, HandSlotIndex: req.HandSlotIndex, Reason: reason}
		if err := m.toPlayer(to, protocol.OpCardCanceled, msg); err != nil {
			logging.Error("send cancel", err, logging.Fields{"match": m.cfg.MatchID, "player": to})
		}
		logging.Debug("card play canceled", logging.Fields{"match": m.cfg.MatchID, "player": to, "reason": reason})
	}

	if m.ended {
		cancel(protocol.CancelEnded)
		return
	}
	p := m.players[req.PlayerID]
	if p == nil || req.PlayerID != from || !m.started {
		cancel(protocol.CancelInvalid)
		return
	}
	card, ok := p.deck.Slot(req.HandSlotIndex)
	if !ok || card != req.Card {
		cancel(protocol.CancelInvalid)
		return
	}
	tpl, ok := m.catalog.Template(card.Type)
	if !ok {
		cancel(protocol.CancelInvalid)
		return
	}
	if !p.purse.CanAfford(tpl.Cost) {
		cancel(protocol.CancelGold)
		return
	}
	target := m.board.Framed(board.Point{X: req.TargetX, Z: req.TargetZ}, p.side)
	node := m.board.NearestNode(target, tpl.Region, p.side)
	if node == nil {
		cancel(protocol.CancelRegion)
		return
	}
	if node.Occupied() {
		if !tpl.CanDropOverUnits {
			cancel(protocol.CancelOccupied)
			return
		}
		if tpl.Kind != types.KindSpell {
			// a unit still needs a node of its own
			if node = m.nearestFree(node, tpl.Region, p.side); node == nil {
				cancel(protocol.CancelOccupied)
				return
			}
		}
	}

	p.purse.Spend(tpl.Cost)
	played, drawn := p.deck.Play(req.HandSlotIndex)
	next := p.deck.Next()
	m.commit(protocol.OpCardPlayed, protocol.CardPlayed{
		PlayerID:      p.id,
		Card:          played,
		NewCard:       drawn,
		HandSlotIndex: req.HandSlotIndex,
		NodeX:         node.X,
		NodeY:         node.Y,
		Gold:          p.purse.Gold(),
		Next:          &next,
	})

	if tpl.Kind == types.KindSpell {
		m.commit(protocol.OpSpellActivated, protocol.SpellActivated{
			Side: p.side, OwnerID: p.id, Card: played,
			NodeX: node.X, NodeY: node.Y,
			Damage: tpl.StatsAt(played.Level).Damage,
			Radius: tpl.Radius,
		})
		return
	}
	key := m.units.Allocate(p.side)
	m.commit(protocol.OpUnitSpawned, protocol.UnitSpawned{
		Side: key.Side, ID: key.ID, OwnerID: p.id, Card: played,
		NodeX: node.X, NodeY: node.Y,
	})
}

func (m *Match) nearestFree(from *board.Node, region types.DropRegion, side types.Side) *board.Node {
	return m.board.NearestWhere(from.Pos, region, side, func(n *board.Node) bool { return !n.Occupied() })
}

// EmitMove commits a unit move decided by the behavior engine.
func (m *Match) EmitMove(u *units.Unit, to *board.Node) {
	m.commit(protocol.OpUnitMoved, protocol.UnitMoved{Side: u.Key.Side, ID: u.Key.ID, NodeX: to.X, NodeY: to.Y})
}

// EmitAttack commits an attack; single hits land on the first sub-entity.
func (m *Match) EmitAttack(u, target *units.Unit) {
	m.commit(protocol.OpUnitAttacked, protocol.UnitAttacked{
		Side: u.Key.Side, ID: u.Key.ID,
		TargetSide: target.Key.Side, TargetID: target.Key.ID,
		SubEntity:  0,
		Damage:     u.Stats.Damage,
		AttackType: u.Template.Attack,
		Radius:     u.Template.Radius,
	})
}

func (m *Match) syncGold(dt float64) {
	if m.rules.GoldSyncInterval <= 0 {
		return
	}
	m.syncLeft -= dt
	if m.syncLeft > 0 {
		return
	}
	m.syncLeft += m.rules.GoldSyncInterval
	for _, id := range m.cfg.Players {
		p := m.players[id]
		if p == nil {
			continue
		}
		msg := protocol.GoldSync{PlayerID: id, Gold: p.purse.Gold(), Max: p.purse.Max()}
		if err := m.toPlayer(id, protocol.OpGoldSync, msg); err != nil {
			logging.Debug("gold sync not sent", logging.Fields{"match": m.cfg.MatchID, "player": id})
		}
	}
}

// checkEnd looks for a fallen main structure or an expired clock.
func (m *Match) checkEnd() {
	if m.ended {
		return
	}
	blueDown, redDown := m.mainDown[types.SideBlue], m.mainDown[types.SideRed]
	switch {
	case blueDown && redDown:
		m.endMatch("", true, protocol.EndMainDestroyed)
	case blueDown || redDown:
		loser := types.SideBlue
		if redDown {
			loser = types.SideRed
		}
		m.endMatch(m.playerOn(loser.Opponent()), false, protocol.EndMainDestroyed)
	case m.rules.TimeLimit > 0 && m.elapsed >= m.rules.TimeLimit:
		winner, draw := m.timeLimitWinner()
		m.endMatch(winner, draw, protocol.EndTimeLimit)
	}
}

// timeLimitWinner ranks by towers destroyed, then main tower health.
func (m *Match) timeLimitWinner() (string, bool) {
	a, b := m.cfg.Players[0], m.cfg.Players[1]
	if ta, tb := m.towersDestroyed[a], m.towersDestroyed[b]; ta != tb {
		if ta > tb {
			return a, false
		}
		return b, false
	}
	ha, hb := m.mainHealth(m.sides[a]), m.mainHealth(m.sides[b])
	switch {
	case ha > hb:
		return a, false
	case hb > ha:
		return b, false
	}
	return "", true
}

func (m *Match) mainHealth(side types.Side) float64 {
	for _, u := range m.units.Side(side) {
		if u.IsMain() {
			return u.TotalHealth()
		}
	}
	return 0
}

func (m *Match) playerOn(side types.Side) string {
	for id, s := range m.sides {
		if s == side {
			return id
		}
	}
	return ""
}

// endMatch commits MatchEnded once.
func (m *Match) endMatch(winner string, draw bool, reason string) {
	if m.ended {
		return
	}
	msg := protocol.MatchEnded{
		Draw:            draw,
		Reason:          reason,
		DurationSeconds: m.elapsed,
		TowersDestroyed: m.towerCounts(),
	}
	if !draw {
		msg.WinnerID = winner
		msg.LoserID = m.opponent(winner)
	}
	m.commit(protocol.OpMatchEnded, msg)
}
