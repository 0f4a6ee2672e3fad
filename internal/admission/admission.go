// Package admission implements the pre-flight sufficiency check for metered work.
package admission

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/voxora/voxora/internal/cache"
	"github.com/voxora/voxora/internal/config"
	ledgerdomain "github.com/voxora/voxora/internal/ledger/domain"
	"github.com/voxora/voxora/internal/rate"
)

const (
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonEmptyBalance        = "empty_balance"
)

// Decision is the advisory outcome of a pre-flight check. Nothing is
// reserved: the close-time debit re-validates sufficiency on its own.
type Decision struct {
	Allowed          bool   `json:"allowed"`
	Reason           string `json:"reason,omitempty"`
	EstimatedCredits int64  `json:"estimated_credits"`
	Balance          int64  `json:"balance"`
}

// Service answers "may this user start a metered session of this shape".
type Service interface {
	CanStart(ctx context.Context, userID snowflake.ID, serviceType rate.ServiceType, estimated time.Duration) (Decision, error)
}

type ServiceParam struct {
	fx.In

	Log       *zap.Logger
	Cfg       config.Config
	LedgerSvc ledgerdomain.Service
	Rates     rate.Table
	Balances  *cache.BalanceCache `optional:"true"`
}

type service struct {
	log       *zap.Logger
	ledgerSvc ledgerdomain.Service
	rates     rate.Table
	balances  *cache.BalanceCache
	cacheTTL  time.Duration
}

func NewService(p ServiceParam) Service {
	return &service{
		log:       p.Log.Named("admission.service"),
		ledgerSvc: p.LedgerSvc,
		rates:     p.Rates,
		balances:  p.Balances,
		cacheTTL:  p.Cfg.Tokens.BalanceCacheTTL,
	}
}

// CanStart estimates the cost of the requested duration with the same rate
// table the close path bills with, so admission never under-estimates the
// eventual charge. A missing estimate only requires a non-empty balance.
func (s *service) CanStart(ctx context.Context, userID snowflake.ID, serviceType rate.ServiceType, estimated time.Duration) (Decision, error) {
	if userID == 0 {
		return Decision{}, ledgerdomain.ErrInvalidUser
	}

	estimate, err := s.rates.Cost(serviceType, estimated)
	if err != nil {
		return Decision{}, err
	}

	balance, cached, err := s.balanceFor(ctx, userID)
	if err != nil {
		return Decision{}, err
	}

	if s.sufficient(balance, estimate) {
		return Decision{Allowed: true, EstimatedCredits: estimate, Balance: balance}, nil
	}

	// Never deny on a stale read: confirm against the store first.
	if cached {
		balance, err = s.freshBalance(ctx, userID)
		if err != nil {
			return Decision{}, err
		}
		if s.sufficient(balance, estimate) {
			return Decision{Allowed: true, EstimatedCredits: estimate, Balance: balance}, nil
		}
	}

	reason := ReasonInsufficientBalance
	if estimate == 0 {
		reason = ReasonEmptyBalance
	}
	s.log.Info("admission denied",
		zap.String("user_id", userID.String()),
		zap.String("service_type", string(serviceType)),
		zap.Int64("estimated_credits", estimate),
		zap.Int64("balance", balance),
	)
	return Decision{Allowed: false, Reason: reason, EstimatedCredits: estimate, Balance: balance}, nil
}

func (s *service) sufficient(balance, estimate int64) bool {
	if estimate == 0 {
		return balance > 0
	}
	return balance >= estimate
}

func (s *service) balanceFor(ctx context.Context, userID snowflake.ID) (int64, bool, error) {
	if s.balances != nil {
		if balance, ok := s.balances.Get(int64(userID)); ok {
			return balance, true, nil
		}
	}
	balance, err := s.freshBalance(ctx, userID)
	return balance, false, err
}

func (s *service) freshBalance(ctx context.Context, userID snowflake.ID) (int64, error) {
	ledger, err := s.ledgerSvc.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.balances != nil {
		s.balances.Set(int64(userID), ledger.Balance, s.cacheTTL)
	}
	return ledger.Balance, nil
}
