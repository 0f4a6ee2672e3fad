package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TransactionType classifies ledger mutations.
type TransactionType string

const (
	TransactionTypePurchase    TransactionType = "purchase"
	TransactionTypeConsumption TransactionType = "consumption"
	TransactionTypeBonus       TransactionType = "bonus"
)

// TokenLedger is the prepaid credit balance for one account.
//
// balance == total_purchased - total_consumed holds at all times; bonus
// credits fold into total_purchased so the pair stays a complete accounting.
type TokenLedger struct {
	UserID         snowflake.ID `gorm:"primaryKey" json:"user_id"`
	Balance        int64        `gorm:"not null;default:0" json:"balance"`
	TotalPurchased int64        `gorm:"not null;default:0" json:"total_purchased"`
	TotalConsumed  int64        `gorm:"not null;default:0" json:"total_consumed"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (TokenLedger) TableName() string { return "token_ledgers" }

// TokenTransaction is one immutable ledger mutation. Amount is always the
// positive magnitude; Type carries the direction.
type TokenTransaction struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID       snowflake.ID      `gorm:"not null;index" json:"user_id"`
	Type         TransactionType   `gorm:"type:text;not null" json:"type"`
	Amount       int64             `gorm:"not null" json:"amount"`
	BalanceAfter int64             `gorm:"not null" json:"balance_after"`
	Description  string            `gorm:"type:text;not null;default:''" json:"description"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (TokenTransaction) TableName() string { return "token_transactions" }
