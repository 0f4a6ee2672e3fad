package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/voxora/voxora/internal/cache"
	ledgerdomain "github.com/voxora/voxora/internal/ledger/domain"
	"github.com/voxora/voxora/internal/rate"
)

type stubLedger struct {
	balances map[snowflake.ID]int64
	reads    int
}

func (s *stubLedger) GetBalance(ctx context.Context, userID snowflake.ID) (*ledgerdomain.TokenLedger, error) {
	s.reads++
	balance, ok := s.balances[userID]
	if !ok {
		return nil, ledgerdomain.ErrLedgerNotFound
	}
	return &ledgerdomain.TokenLedger{UserID: userID, Balance: balance}, nil
}

func (s *stubLedger) Credit(ctx context.Context, req ledgerdomain.CreditRequest) (*ledgerdomain.TokenTransaction, error) {
	return nil, errors.New("not implemented")
}

func (s *stubLedger) Debit(ctx context.Context, req ledgerdomain.DebitRequest) (*ledgerdomain.TokenTransaction, error) {
	return nil, errors.New("not implemented")
}

func (s *stubLedger) ListTransactions(ctx context.Context, req ledgerdomain.ListTransactionsRequest) (ledgerdomain.ListTransactionsResponse, error) {
	return ledgerdomain.ListTransactionsResponse{}, errors.New("not implemented")
}

func newAdmissionService(t *testing.T, ledgerSvc ledgerdomain.Service, balances *cache.BalanceCache) Service {
	t.Helper()
	rates, err := rate.NewTable(map[rate.ServiceType]int64{
		rate.ServiceConversationalAI: 1,
		rate.ServicePicaEndpoint:     2,
	})
	if err != nil {
		t.Fatalf("new rate table: %v", err)
	}
	return &service{
		log:       zap.NewNop(),
		ledgerSvc: ledgerSvc,
		rates:     rates,
		balances:  balances,
		cacheTTL:  time.Second,
	}
}

func TestCanStartAllowsWithinBalance(t *testing.T) {
	ledgerSvc := &stubLedger{balances: map[snowflake.ID]int64{1: 10000}}
	svc := newAdmissionService(t, ledgerSvc, nil)

	decision, err := svc.CanStart(context.Background(), 1, rate.ServiceConversationalAI, 30*time.Second)
	if err != nil {
		t.Fatalf("can start: %v", err)
	}
	if !decision.Allowed || decision.EstimatedCredits != 30 {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestCanStartDeniesBeyondBalance(t *testing.T) {
	ledgerSvc := &stubLedger{balances: map[snowflake.ID]int64{2: 10}}
	svc := newAdmissionService(t, ledgerSvc, nil)

	decision, err := svc.CanStart(context.Background(), 2, rate.ServiceConversationalAI, 30*time.Second)
	if err != nil {
		t.Fatalf("can start: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected denial, got %+v", decision)
	}
	if decision.Reason != ReasonInsufficientBalance {
		t.Fatalf("expected insufficient_balance reason, got %q", decision.Reason)
	}
	// Denied implies the estimate really exceeded the balance at check time.
	if decision.EstimatedCredits <= decision.Balance {
		t.Fatalf("denied although estimate %d <= balance %d", decision.EstimatedCredits, decision.Balance)
	}
}

func TestCanStartWithoutEstimateRequiresNonEmptyBalance(t *testing.T) {
	ledgerSvc := &stubLedger{balances: map[snowflake.ID]int64{3: 10, 4: 0}}
	svc := newAdmissionService(t, ledgerSvc, nil)

	decision, err := svc.CanStart(context.Background(), 3, rate.ServiceConversationalAI, 0)
	if err != nil {
		t.Fatalf("can start: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allow with positive balance, got %+v", decision)
	}

	decision, err = svc.CanStart(context.Background(), 4, rate.ServiceConversationalAI, 0)
	if err != nil {
		t.Fatalf("can start: %v", err)
	}
	if decision.Allowed || decision.Reason != ReasonEmptyBalance {
		t.Fatalf("expected empty_balance denial, got %+v", decision)
	}
}

func TestCanStartSurfacesMissingLedger(t *testing.T) {
	ledgerSvc := &stubLedger{balances: map[snowflake.ID]int64{}}
	svc := newAdmissionService(t, ledgerSvc, nil)

	if _, err := svc.CanStart(context.Background(), 5, rate.ServicePicaEndpoint, time.Minute); !errors.Is(err, ledgerdomain.ErrLedgerNotFound) {
		t.Fatalf("expected ErrLedgerNotFound, got %v", err)
	}
}

func TestCanStartRefreshesStaleCacheBeforeDenying(t *testing.T) {
	ledgerSvc := &stubLedger{balances: map[snowflake.ID]int64{6: 100}}
	balances := cache.NewBalanceCache()
	balances.Set(6, 1, time.Minute) // stale low balance
	svc := newAdmissionService(t, ledgerSvc, balances)

	decision, err := svc.CanStart(context.Background(), 6, rate.ServiceConversationalAI, 30*time.Second)
	if err != nil {
		t.Fatalf("can start: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allow after fresh read, got %+v", decision)
	}
	if ledgerSvc.reads != 1 {
		t.Fatalf("expected exactly one store read, got %d", ledgerSvc.reads)
	}
}
