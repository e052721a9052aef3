package meta

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Account is a user's meta-game wallet and ladder standing.
type Account struct {
	UserID    string `gorm:"primaryKey;size:36"`
	Gems      int64
	Score     int
	Wins      int
	Losses    int
	Seeded    bool
	UpdatedAt time.Time
}

// CardRecord is one owned card. Deck cards hold a slot in 0..DeckSize-1;
// collection cards keep their own ordering slot.
type CardRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"index;size:36"`
	Type      string `gorm:"size:64"`
	Level     int
	InDeck    bool
	Slot      int
	CreatedAt time.Time
}

// MatchResult is one reported result; (MatchID, UserID) is unique so a
// repeated report resolves to the stored reward.
type MatchResult struct {
	ID              uint   `gorm:"primaryKey"`
	MatchID         string `gorm:"uniqueIndex:idx_match_user;size:64"`
	UserID          string `gorm:"uniqueIndex:idx_match_user;size:36;index"`
	Placement       int
	DurationSeconds float64
	TowersDestroyed int
	GemsAwarded     int64
	ScoreDelta      int
	CreatedAt       time.Time
}

// Open connects to the sqlite database at dsn and migrates the meta tables.
func Open(dsn string) (*gorm.DB, error) {
	if !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", dsn, err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Account{}, &CardRecord{}, &MatchResult{}); err != nil {
		return fmt.Errorf("migrate meta tables: %w", err)
	}
	return nil
}

// loadAccount returns the user's account, creating an empty one.
func loadAccount(tx *gorm.DB, userID string) (*Account, error) {
	acc := Account{UserID: userID}
	if err := tx.Where(Account{UserID: userID}).FirstOrCreate(&acc).Error; err != nil {
		return nil, fmt.Errorf("load account %s: %w", userID, err)
	}
	return &acc, nil
}

func saveAccount(tx *gorm.DB, acc *Account) error {
	if err := tx.Save(acc).Error; err != nil {
		return fmt.Errorf("save account %s: %w", acc.UserID, err)
	}
	return nil
}
