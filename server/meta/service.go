// Package meta serves the meta-game RPCs: card collection, deck edits,
// upgrades and end-of-match rewards.
package meta

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"tidewar/shared/game/types"
	"tidewar/shared/logging"
	"tidewar/shared/protocol"
)

type Service struct {
	db      *gorm.DB
	catalog *types.Catalog
	rules   types.Rules
	reports singleflight.Group
}

func NewService(db *gorm.DB, catalog *types.Catalog, rules types.Rules) (*Service, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = types.DefaultCatalog()
	}
	for _, c := range rules.StarterDeck {
		if err := catalog.Validate(c); err != nil {
			return nil, fmt.Errorf("starter deck: %w", err)
		}
	}
	return &Service{db: db, catalog: catalog, rules: rules}, nil
}

// LoadUserCards returns the user's deck and collection. The first call seeds
// the starter deck and one level-1 copy of every playable card.
func (s *Service) LoadUserCards(ctx context.Context, userID string) (protocol.UserCards, error) {
	var out protocol.UserCards
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := loadAccount(tx, userID)
		if err != nil {
			return err
		}
		if !acc.Seeded {
			if err := s.seed(tx, acc); err != nil {
				return err
			}
		}
		out, err = cardsOf(tx, acc)
		return err
	})
	return out, err
}

func (s *Service) seed(tx *gorm.DB, acc *Account) error {
	var cards []CardRecord
	for i, c := range s.rules.StarterDeck {
		cards = append(cards, CardRecord{ID: uuid.NewString(), UserID: acc.UserID, Type: c.Type, Level: c.Level, InDeck: true, Slot: i})
	}
	for i, typ := range s.catalog.Playable() {
		cards = append(cards, CardRecord{ID: uuid.NewString(), UserID: acc.UserID, Type: typ, Level: 1, Slot: i})
	}
	if err := tx.Create(&cards).Error; err != nil {
		return fmt.Errorf("seed cards: %w", err)
	}
	acc.Seeded = true
	if err := grantGems(tx, acc, startingGems, "starter"); err != nil {
		return err
	}
	logging.Info("seeded user cards", logging.Fields{"user": acc.UserID, "cards": len(cards)})
	return nil
}

func cardsOf(tx *gorm.DB, acc *Account) (protocol.UserCards, error) {
	var recs []CardRecord
	if err := tx.Where("user_id = ?", acc.UserID).Find(&recs).Error; err != nil {
		return protocol.UserCards{}, fmt.Errorf("load cards: %w", err)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Slot < recs[j].Slot })
	out := protocol.UserCards{Deck: []protocol.OwnedCard{}, Collection: []protocol.OwnedCard{}, Gems: acc.Gems}
	for _, r := range recs {
		c := protocol.OwnedCard{ID: r.ID, Type: r.Type, Level: r.Level}
		if r.InDeck {
			out.Deck = append(out.Deck, c)
		} else {
			out.Collection = append(out.Collection, c)
		}
	}
	return out, nil
}

func ownedCard(tx *gorm.DB, userID, cardID string) (*CardRecord, error) {
	var r CardRecord
	err := tx.Where("id = ? AND user_id = ?", cardID, userID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load card %s: %w", cardID, err)
	}
	return &r, nil
}

// SwapDeckCard moves a collection card into a deck slot and the deck card
// it replaces into the collection.
func (s *Service) SwapDeckCard(ctx context.Context, userID string, req protocol.SwapDeckCardReq) (protocol.UserCards, error) {
	var out protocol.UserCards
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deck, err := ownedCard(tx, userID, req.DeckCardID)
		if err != nil {
			return err
		}
		coll, err := ownedCard(tx, userID, req.CollectionCardID)
		if err != nil {
			return err
		}
		if !deck.InDeck || coll.InDeck {
			return ErrInvalidSlot
		}
		deck.InDeck, coll.InDeck = false, true
		deck.Slot, coll.Slot = coll.Slot, deck.Slot
		if err := tx.Save(deck).Error; err != nil {
			return fmt.Errorf("save card: %w", err)
		}
		if err := tx.Save(coll).Error; err != nil {
			return fmt.Errorf("save card: %w", err)
		}
		acc, err := loadAccount(tx, userID)
		if err != nil {
			return err
		}
		out, err = cardsOf(tx, acc)
		return err
	})
	return out, err
}

// UpgradeCard raises a card one level for gems priced by rarity and level.
func (s *Service) UpgradeCard(ctx context.Context, userID string, req protocol.UpgradeCardReq) (protocol.UserCards, error) {
	var out protocol.UserCards
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := ownedCard(tx, userID, req.CardID)
		if err != nil {
			return err
		}
		tpl, ok := s.catalog.Template(card.Type)
		if !ok {
			return ErrNotFound
		}
		if card.Level >= types.MaxLevel {
			return ErrMaxLevel
		}
		acc, err := loadAccount(tx, userID)
		if err != nil {
			return err
		}
		if err := spendGems(tx, acc, tpl.Rarity.UpgradeCost(card.Level), "upgrade "+card.Type); err != nil {
			return err
		}
		card.Level++
		if err := tx.Save(card).Error; err != nil {
			return fmt.Errorf("save card: %w", err)
		}
		out, err = cardsOf(tx, acc)
		return err
	})
	return out, err
}

// HandleMatchEnd records the caller's result once per match and pays the
// reward. Repeats, concurrent or not, return the stored reward.
func (s *Service) HandleMatchEnd(ctx context.Context, userID string, req protocol.MatchEndReq) (protocol.MatchEndResp, error) {
	if req.MatchID == "" || (req.Placement != 1 && req.Placement != 2) || req.TowersDestroyed < 0 || req.DurationSeconds < 0 {
		return protocol.MatchEndResp{}, fmt.Errorf("match end %+v: %w", req, ErrInvalidArgument)
	}
	v, err, shared := s.reports.Do(req.MatchID+"/"+userID, func() (interface{}, error) {
		return s.recordResult(ctx, userID, req)
	})
	if err != nil {
		return protocol.MatchEndResp{}, err
	}
	if shared {
		logging.Debug("collapsed duplicate match report", logging.Fields{"match": req.MatchID, "user": userID})
	}
	return v.(protocol.MatchEndResp), nil
}

func (s *Service) recordResult(ctx context.Context, userID string, req protocol.MatchEndReq) (protocol.MatchEndResp, error) {
	var out protocol.MatchEndResp
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := loadAccount(tx, userID)
		if err != nil {
			return err
		}
		var prev MatchResult
		err = tx.Where("match_id = ? AND user_id = ?", req.MatchID, userID).First(&prev).Error
		if err == nil {
			out = protocol.MatchEndResp{GemsAwarded: prev.GemsAwarded, Score: acc.Score, Rank: rankName(acc.Score)}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load match result: %w", err)
		}

		res := MatchResult{
			MatchID:         req.MatchID,
			UserID:          userID,
			Placement:       req.Placement,
			DurationSeconds: req.DurationSeconds,
			TowersDestroyed: req.TowersDestroyed,
			GemsAwarded:     gemsFor(req.Placement, req.TowersDestroyed),
			ScoreDelta:      scoreDelta(req.Placement, req.TowersDestroyed),
		}
		if err := tx.Create(&res).Error; err != nil {
			return fmt.Errorf("save match result: %w", err)
		}
		acc.Score = applyScore(acc.Score, res.ScoreDelta)
		if req.Placement == 1 {
			acc.Wins++
		} else {
			acc.Losses++
		}
		if err := grantGems(tx, acc, res.GemsAwarded, "match "+req.MatchID); err != nil {
			return err
		}
		out = protocol.MatchEndResp{GemsAwarded: res.GemsAwarded, Score: acc.Score, Rank: rankName(acc.Score)}
		return nil
	})
	return out, err
}

// Profile reports the wallet, ladder standing and recent results.
func (s *Service) Profile(ctx context.Context, userID string) (protocol.Profile, error) {
	tx := s.db.WithContext(ctx)
	acc, err := loadAccount(tx, userID)
	if err != nil {
		return protocol.Profile{}, err
	}
	var recent []MatchResult
	if err := tx.Where("user_id = ?", userID).Order("id desc").Limit(historyLength).Find(&recent).Error; err != nil {
		return protocol.Profile{}, fmt.Errorf("load history: %w", err)
	}
	p := protocol.Profile{
		UserID:  userID,
		Gems:    acc.Gems,
		Score:   acc.Score,
		Rank:    rankName(acc.Score),
		Wins:    acc.Wins,
		Losses:  acc.Losses,
		History: make([]protocol.MatchRecord, 0, len(recent)),
	}
	for _, r := range recent {
		p.History = append(p.History, protocol.MatchRecord{
			MatchID:         r.MatchID,
			Placement:       r.Placement,
			DurationSeconds: r.DurationSeconds,
			TowersDestroyed: r.TowersDestroyed,
			GemsAwarded:     r.GemsAwarded,
			ScoreDelta:      r.ScoreDelta,
		})
	}
	return p, nil
}
