package seed

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSeedTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:seedtest?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS token_ledgers (
			user_id INTEGER PRIMARY KEY,
			balance BIGINT NOT NULL DEFAULT 0,
			total_purchased BIGINT NOT NULL DEFAULT 0,
			total_consumed BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS token_transactions (
			id INTEGER PRIMARY KEY,
			user_id BIGINT NOT NULL,
			type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			metadata TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS api_tokens (
			id INTEGER PRIMARY KEY,
			user_id BIGINT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			expires_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func TestEnsureLedgerCreditsSignupBonusOnce(t *testing.T) {
	db := setupSeedTestDB(t)

	if err := EnsureLedger(db, 301, 10000); err != nil {
		t.Fatalf("ensure ledger: %v", err)
	}
	// Second run must not double the bonus.
	if err := EnsureLedger(db, 301, 10000); err != nil {
		t.Fatalf("ensure ledger again: %v", err)
	}

	var balance int64
	if err := db.Raw(`SELECT balance FROM token_ledgers WHERE user_id = ?`, 301).Scan(&balance).Error; err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if balance != 10000 {
		t.Fatalf("expected balance 10000, got %d", balance)
	}

	var transactions int64
	if err := db.Raw(`SELECT COUNT(1) FROM token_transactions WHERE user_id = ?`, 301).Scan(&transactions).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if transactions != 1 {
		t.Fatalf("expected exactly one bonus transaction, got %d", transactions)
	}
}

func TestEnsureDevAccountIsIdempotent(t *testing.T) {
	db := setupSeedTestDB(t)

	if err := EnsureDevAccount(db, 500); err != nil {
		t.Fatalf("ensure dev account: %v", err)
	}
	if err := EnsureDevAccount(db, 500); err != nil {
		t.Fatalf("ensure dev account again: %v", err)
	}

	var tokens int64
	if err := db.Raw(`SELECT COUNT(1) FROM api_tokens WHERE user_id = ?`, int64(devUserID)).Scan(&tokens).Error; err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if tokens != 1 {
		t.Fatalf("expected one dev token, got %d", tokens)
	}
}
