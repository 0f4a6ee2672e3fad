package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/voxora/voxora/internal/events"
	ledgerdomain "github.com/voxora/voxora/internal/ledger/domain"
	"github.com/voxora/voxora/internal/observability/metrics"
	"github.com/voxora/voxora/pkg/db/pagination"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Outbox  *events.Outbox
	Metrics *metrics.MeteringMetrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	outbox  *events.Outbox
	metrics *metrics.MeteringMetrics
}

func NewService(p ServiceParam) ledgerdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("ledger.service"),

		genID:   p.GenID,
		outbox:  p.Outbox,
		metrics: p.Metrics,
	}
}

func (s *Service) GetBalance(ctx context.Context, userID snowflake.ID) (*ledgerdomain.TokenLedger, error) {
	if userID == 0 {
		return nil, ledgerdomain.ErrInvalidUser
	}

	var ledger ledgerdomain.TokenLedger
	err := s.db.WithContext(ctx).Raw(
		`SELECT user_id, balance, total_purchased, total_consumed, created_at, updated_at
		 FROM token_ledgers
		 WHERE user_id = ?`,
		userID,
	).Scan(&ledger).Error
	if err != nil {
		return nil, err
	}
	if ledger.UserID == 0 {
		return nil, ledgerdomain.ErrLedgerNotFound
	}
	return &ledger, nil
}

// Credit adds credits to the ledger and appends a purchase or bonus
// transaction. Bonus amounts fold into total_purchased.
func (s *Service) Credit(ctx context.Context, req ledgerdomain.CreditRequest) (*ledgerdomain.TokenTransaction, error) {
	if req.UserID == 0 {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if req.Amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	switch req.Type {
	case ledgerdomain.TransactionTypePurchase, ledgerdomain.TransactionTypeBonus:
	default:
		return nil, ledgerdomain.ErrInvalidCreditType
	}

	var txn *ledgerdomain.TokenTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		result := tx.WithContext(ctx).Exec(
			`UPDATE token_ledgers
			 SET balance = balance + ?,
			     total_purchased = total_purchased + ?,
			     updated_at = ?
			 WHERE user_id = ?`,
			req.Amount,
			req.Amount,
			now,
			req.UserID,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ledgerdomain.ErrLedgerNotFound
		}

		balance, err := s.loadBalance(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		record, err := s.appendTransaction(ctx, tx, req.UserID, req.Type, req.Amount, balance, req.Description, req.Metadata, now)
		if err != nil {
			return err
		}
		txn = record

		return s.outbox.PublishTx(ctx, tx, events.Event{
			UserID:    req.UserID,
			Type:      events.EventTokenCredited,
			Payload:   ledgerPayload(record),
			DedupeKey: "txn:" + record.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncCredit(string(req.Type))
	}
	s.log.Info("ledger credited",
		zap.String("user_id", req.UserID.String()),
		zap.Int64("amount", req.Amount),
		zap.String("type", string(req.Type)),
	)
	return txn, nil
}

// Debit removes credits if and only if the balance covers the amount. The
// sufficiency check and the mutation are a single conditional UPDATE, so two
// racing debits that jointly overflow the balance cannot both succeed.
func (s *Service) Debit(ctx context.Context, req ledgerdomain.DebitRequest) (*ledgerdomain.TokenTransaction, error) {
	if req.UserID == 0 {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if req.Amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}

	var txn *ledgerdomain.TokenTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.ledgerExists(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if !exists {
			// Never conflate a missing ledger with an empty one: the
			// account was never initialized, which is a setup bug.
			return ledgerdomain.ErrLedgerNotFound
		}

		now := time.Now().UTC()
		result := tx.WithContext(ctx).Exec(
			`UPDATE token_ledgers
			 SET balance = balance - ?,
			     total_consumed = total_consumed + ?,
			     updated_at = ?
			 WHERE user_id = ? AND balance >= ?`,
			req.Amount,
			req.Amount,
			now,
			req.UserID,
			req.Amount,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ledgerdomain.ErrInsufficientBalance
		}

		balance, err := s.loadBalance(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		record, err := s.appendTransaction(ctx, tx, req.UserID, ledgerdomain.TransactionTypeConsumption, req.Amount, balance, req.Description, req.Metadata, now)
		if err != nil {
			return err
		}
		txn = record

		return s.outbox.PublishTx(ctx, tx, events.Event{
			UserID:    req.UserID,
			Type:      events.EventTokenDebited,
			Payload:   ledgerPayload(record),
			DedupeKey: "txn:" + record.ID.String(),
		})
	})
	if err != nil {
		if s.metrics != nil {
			switch {
			case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
				s.metrics.IncDebit("insufficient_balance")
			default:
				s.metrics.IncDebit("failed")
			}
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncDebit("success")
	}
	return txn, nil
}

func (s *Service) ListTransactions(ctx context.Context, req ledgerdomain.ListTransactionsRequest) (ledgerdomain.ListTransactionsResponse, error) {
	if req.UserID == 0 {
		return ledgerdomain.ListTransactionsResponse{}, ledgerdomain.ErrInvalidUser
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	query := `SELECT id, user_id, type, amount, balance_after, description, metadata, created_at
		 FROM token_transactions
		 WHERE user_id = ?`
	args := []any{req.UserID}

	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return ledgerdomain.ListTransactionsResponse{}, err
		}
		cursorID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return ledgerdomain.ListTransactionsResponse{}, pagination.ErrInvalidPageToken
		}
		cursorAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return ledgerdomain.ListTransactionsResponse{}, pagination.ErrInvalidPageToken
		}
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, cursorAt, cursorAt, cursorID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, pageSize+1)

	var records []ledgerdomain.TokenTransaction
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&records).Error; err != nil {
		return ledgerdomain.ListTransactionsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(records, int(pageSize), func(record ledgerdomain.TokenTransaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			CreatedAt: record.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(records) > int(pageSize) {
		records = records[:pageSize]
	}

	return ledgerdomain.ListTransactionsResponse{
		Transactions:  records,
		HasMore:       pageInfo.HasMore,
		NextPageToken: pageInfo.NextPageToken,
	}, nil
}

func (s *Service) ledgerExists(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM token_ledgers WHERE user_id = ?`,
		userID,
	).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) loadBalance(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (int64, error) {
	var balance int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT balance FROM token_ledgers WHERE user_id = ?`,
		userID,
	).Scan(&balance).Error; err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Service) appendTransaction(
	ctx context.Context,
	tx *gorm.DB,
	userID snowflake.ID,
	txnType ledgerdomain.TransactionType,
	amount int64,
	balanceAfter int64,
	description string,
	metadata map[string]any,
	now time.Time,
) (*ledgerdomain.TokenTransaction, error) {
	record := &ledgerdomain.TokenTransaction{
		ID:           s.genID.Generate(),
		UserID:       userID,
		Type:         txnType,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Description:  description,
		CreatedAt:    now,
	}
	if metadata != nil {
		record.Metadata = datatypes.JSONMap(metadata)
	}
	if err := tx.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func ledgerPayload(record *ledgerdomain.TokenTransaction) map[string]any {
	return events.LedgerMutationPayload{
		TransactionID: record.ID.String(),
		Type:          string(record.Type),
		Amount:        record.Amount,
		BalanceAfter:  record.BalanceAfter,
	}.ToMap()
}
