package meta

import (
	"fmt"

	"gorm.io/gorm"

	"tidewar/shared/logging"
)

// grantGems credits the user's wallet inside tx.
func grantGems(tx *gorm.DB, acc *Account, amount int64, reason string) error {
	if amount < 0 {
		return fmt.Errorf("grant %d gems: %w", amount, ErrInvalidArgument)
	}
	acc.Gems += amount
	if err := saveAccount(tx, acc); err != nil {
		return err
	}
	logging.Info("gems granted", logging.Fields{"user": acc.UserID, "amount": amount, "reason": reason, "balance": acc.Gems})
	return nil
}

// spendGems debits the wallet or fails with ErrInsufficientGems.
func spendGems(tx *gorm.DB, acc *Account, amount int64, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("spend %d gems: %w", amount, ErrInvalidArgument)
	}
	if acc.Gems < amount {
		return ErrInsufficientGems
	}
	acc.Gems -= amount
	if err := saveAccount(tx, acc); err != nil {
		return err
	}
	logging.Info("gems spent", logging.Fields{"user": acc.UserID, "amount": amount, "reason": reason, "balance": acc.Gems})
	return nil
}
