package domain

import "errors"

var (
	ErrReplayMismatch   = errors.New("replay_mismatch")
	ErrReplayBadAmount  = errors.New("replay_bad_amount")
	ErrReplayBadType    = errors.New("replay_bad_type")
	ErrReplayWentBelow0 = errors.New("replay_negative_balance")
)

// Replay folds a transaction sequence from a zero ledger and verifies that
// every balance_after snapshot reconciles. The returned ledger carries the
// final balance, total_purchased and total_consumed.
func Replay(transactions []TokenTransaction) (TokenLedger, error) {
	var ledger TokenLedger
	for _, txn := range transactions {
		if txn.Amount <= 0 {
			return ledger, ErrReplayBadAmount
		}
		switch txn.Type {
		case TransactionTypePurchase, TransactionTypeBonus:
			ledger.Balance += txn.Amount
			ledger.TotalPurchased += txn.Amount
		case TransactionTypeConsumption:
			ledger.Balance -= txn.Amount
			ledger.TotalConsumed += txn.Amount
		default:
			return ledger, ErrReplayBadType
		}
		if ledger.Balance < 0 {
			return ledger, ErrReplayWentBelow0
		}
		if txn.BalanceAfter != ledger.Balance {
			return ledger, ErrReplayMismatch
		}
	}
	return ledger, nil
}
