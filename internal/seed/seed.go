// Package seed bootstraps accounts at startup. New ledgers always land with
// the signup bonus already credited, so the bonus and the ledger row are one
// unit of work.
package seed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	ledgerdomain "github.com/voxora/voxora/internal/ledger/domain"
)

const (
	devUserID   = snowflake.ID(1)
	devAPIToken = "voxora-dev-token"
)

// EnsureLedger creates the ledger for userID if it does not exist, crediting
// the signup bonus as the ledger's first transaction. Existing ledgers are
// left untouched; re-running is a no-op.
func EnsureLedger(db *gorm.DB, userID snowflake.ID, signupBonus int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if userID == 0 {
		return ledgerdomain.ErrInvalidUser
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return ensureLedgerTx(ctx, tx, node, userID, signupBonus)
	})
}

// EnsureDevAccount seeds a development account with a well-known API token.
// Meant for non-production bootstrap only.
func EnsureDevAccount(db *gorm.DB, signupBonus int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureLedgerTx(ctx, tx, node, devUserID, signupBonus); err != nil {
			return err
		}

		hash := HashAPIToken(devAPIToken)
		var count int64
		if err := tx.WithContext(ctx).
			Raw(`SELECT COUNT(1) FROM api_tokens WHERE token_hash = ?`, hash).
			Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.WithContext(ctx).Exec(
			`INSERT INTO api_tokens (id, user_id, token_hash, is_active, created_at)
			 VALUES (?, ?, ?, TRUE, ?)`,
			node.Generate(),
			devUserID,
			hash,
			time.Now().UTC(),
		).Error
	})
}

func ensureLedgerTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, userID snowflake.ID, signupBonus int64) error {
	var ledger ledgerdomain.TokenLedger
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&ledger).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if signupBonus < 0 {
		return ledgerdomain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	ledger = ledgerdomain.TokenLedger{
		UserID:         userID,
		Balance:        signupBonus,
		TotalPurchased: signupBonus,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.WithContext(ctx).Create(&ledger).Error; err != nil {
		return err
	}
	if signupBonus == 0 {
		return nil
	}

	entry := ledgerdomain.TokenTransaction{
		ID:           node.Generate(),
		UserID:       userID,
		Type:         ledgerdomain.TransactionTypeBonus,
		Amount:       signupBonus,
		BalanceAfter: signupBonus,
		Description:  "signup bonus",
		CreatedAt:    now,
	}
	return tx.WithContext(ctx).Create(&entry).Error
}

// HashAPIToken derives the stored digest for a raw API token.
func HashAPIToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
