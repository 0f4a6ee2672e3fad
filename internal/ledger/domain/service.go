package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// CreditRequest adds credits to a ledger.
type CreditRequest struct {
	UserID      snowflake.ID
	Amount      int64
	Type        TransactionType // purchase or bonus
	Description string
	Metadata    map[string]any
}

// DebitRequest removes credits from a ledger.
type DebitRequest struct {
	UserID      snowflake.ID
	Amount      int64
	Description string
	Metadata    map[string]any
}

// ListTransactionsRequest pages through an account's transaction log.
type ListTransactionsRequest struct {
	UserID    snowflake.ID
	PageToken string
	PageSize  int32
}

// ListTransactionsResponse is one page of the transaction log, newest first.
type ListTransactionsResponse struct {
	Transactions  []TokenTransaction `json:"transactions"`
	HasMore       bool               `json:"has_more"`
	NextPageToken string             `json:"next_page_token,omitempty"`
}

// Service is the only component allowed to mutate ledger rows. Both Credit
// and Debit are atomic with respect to concurrent mutations of the same
// account; the store's conditional update is the lock.
type Service interface {
	GetBalance(ctx context.Context, userID snowflake.ID) (*TokenLedger, error)
	Credit(ctx context.Context, req CreditRequest) (*TokenTransaction, error)
	Debit(ctx context.Context, req DebitRequest) (*TokenTransaction, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
}

var (
	ErrLedgerNotFound      = errors.New("ledger_not_found")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidCreditType   = errors.New("invalid_credit_type")
)
