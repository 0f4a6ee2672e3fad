package domain

import (
	"errors"
	"testing"
)

func TestReplayReconciles(t *testing.T) {
	ledger, err := Replay([]TokenTransaction{
		{Type: TransactionTypeBonus, Amount: 10000, BalanceAfter: 10000},
		{Type: TransactionTypeConsumption, Amount: 45, BalanceAfter: 9955},
		{Type: TransactionTypePurchase, Amount: 100, BalanceAfter: 10055},
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if ledger.Balance != 10055 || ledger.TotalPurchased != 10100 || ledger.TotalConsumed != 45 {
		t.Fatalf("unexpected replayed ledger: %+v", ledger)
	}
}

func TestReplayDetectsSnapshotMismatch(t *testing.T) {
	_, err := Replay([]TokenTransaction{
		{Type: TransactionTypePurchase, Amount: 100, BalanceAfter: 99},
	})
	if !errors.Is(err, ErrReplayMismatch) {
		t.Fatalf("expected ErrReplayMismatch, got %v", err)
	}
}

func TestReplayDetectsNegativeBalance(t *testing.T) {
	_, err := Replay([]TokenTransaction{
		{Type: TransactionTypePurchase, Amount: 10, BalanceAfter: 10},
		{Type: TransactionTypeConsumption, Amount: 20, BalanceAfter: -10},
	})
	if !errors.Is(err, ErrReplayWentBelow0) {
		t.Fatalf("expected ErrReplayWentBelow0, got %v", err)
	}
}

func TestReplayRejectsBadRows(t *testing.T) {
	if _, err := Replay([]TokenTransaction{{Type: TransactionTypePurchase, Amount: 0}}); !errors.Is(err, ErrReplayBadAmount) {
		t.Fatalf("expected ErrReplayBadAmount, got %v", err)
	}
	if _, err := Replay([]TokenTransaction{{Type: TransactionType("refund"), Amount: 5}}); !errors.Is(err, ErrReplayBadType) {
		t.Fatalf("expected ErrReplayBadType, got %v", err)
	}
}
