package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/voxora/voxora/internal/admission"
	"github.com/voxora/voxora/internal/clock"
	"github.com/voxora/voxora/internal/config"
	"github.com/voxora/voxora/internal/events"
	ledgerdomain "github.com/voxora/voxora/internal/ledger/domain"
	"github.com/voxora/voxora/internal/observability/metrics"
	"github.com/voxora/voxora/internal/rate"
	sessiondomain "github.com/voxora/voxora/internal/session/domain"
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Cfg          config.Config
	GenID        *snowflake.Node
	Clock        clock.Clock
	Rates        rate.Table
	LedgerSvc    ledgerdomain.Service
	AdmissionSvc admission.Service
	Outbox       *events.Outbox
	Metrics      *metrics.MeteringMetrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID        *snowflake.Node
	clock        clock.Clock
	rates        rate.Table
	ledgerSvc    ledgerdomain.Service
	admissionSvc admission.Service
	outbox       *events.Outbox
	metrics      *metrics.MeteringMetrics
	maxDuration  time.Duration
}

func NewService(p ServiceParam) sessiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("session.service"),

		genID:        p.GenID,
		clock:        p.Clock,
		rates:        p.Rates,
		ledgerSvc:    p.LedgerSvc,
		admissionSvc: p.AdmissionSvc,
		outbox:       p.Outbox,
		metrics:      p.Metrics,
		maxDuration:  p.Cfg.Tokens.MaxSessionDuration,
	}
}

// Start opens a session after re-checking admission. The admission check is
// advisory: nothing is reserved, the close-time debit re-validates on its own.
func (s *Service) Start(ctx context.Context, req sessiondomain.StartRequest) (*sessiondomain.UsageSession, error) {
	if req.UserID == 0 {
		return nil, ledgerdomain.ErrInvalidUser
	}

	decision, err := s.admissionSvc.CanStart(ctx, req.UserID, req.ServiceType, req.EstimatedDuration)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, sessiondomain.ErrAdmissionDenied
	}

	if req.SessionToken != "" {
		duplicate, err := s.hasActiveToken(ctx, req.UserID, req.SessionToken)
		if err != nil {
			return nil, err
		}
		if duplicate {
			return nil, sessiondomain.ErrDuplicateSession
		}
	}

	now := s.clock.Now()
	record := &sessiondomain.UsageSession{
		ID:            s.genID.Generate(),
		SessionUUID:   uuid.NewString(),
		UserID:        req.UserID,
		ServiceType:   req.ServiceType,
		Status:        sessiondomain.SessionStatusActive,
		BillingStatus: sessiondomain.BillingStatusPending,
		StartTime:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.SessionToken != "" {
		token := req.SessionToken
		record.SessionToken = &token
	}
	if req.Metadata != nil {
		record.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		// The partial unique index on (user_id, session_token) backs the
		// pre-check under races.
		if req.SessionToken != "" && isUniqueViolation(err) {
			return nil, sessiondomain.ErrDuplicateSession
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncSessionStarted(string(req.ServiceType))
	}
	if err := s.outbox.Publish(ctx, events.Event{
		UserID:    req.UserID,
		Type:      events.EventSessionStarted,
		Payload:   map[string]any{"session_id": record.ID.String(), "service_type": string(req.ServiceType)},
		DedupeKey: "session-start:" + record.ID.String(),
	}); err != nil {
		s.log.Warn("failed to publish session start event", zap.Error(err))
	}

	s.log.Info("session started",
		zap.String("session_id", record.ID.String()),
		zap.String("user_id", req.UserID.String()),
		zap.String("service_type", string(req.ServiceType)),
	)
	return record, nil
}

// End drives the only transition out of active. The status flip is a
// conditional UPDATE, so two racing closers linearize: one wins and bills,
// the other observes AlreadyClosed and changes nothing. Debit failure never
// blocks termination; an insufficient balance is recorded as a shortfall.
func (s *Service) End(ctx context.Context, req sessiondomain.EndRequest) (sessiondomain.EndResponse, error) {
	record, err := s.findSession(ctx, req.SessionRef)
	if err != nil {
		return sessiondomain.EndResponse{}, err
	}
	if record.Status.IsTerminal() {
		return sessiondomain.EndResponse{Session: record, AlreadyClosed: true}, nil
	}

	status := req.Status
	if status == "" {
		status = sessiondomain.SessionStatusCompleted
	}
	if !status.IsTerminal() {
		return sessiondomain.EndResponse{}, sessiondomain.ErrInvalidStatus
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = sessiondomain.CloseTriggerClient
	}

	now := s.clock.Now()
	billed := s.billableDuration(record.StartTime, now, req.AuthoritativeDuration)
	billedSeconds := ceilSeconds(billed)

	owed, err := s.rates.CostSeconds(record.ServiceType, billedSeconds)
	if err != nil {
		return sessiondomain.EndResponse{}, err
	}

	reportedSeconds := int64(req.ReportedDuration / time.Second)
	if req.ReportedDuration < 0 {
		reportedSeconds = 0
	}

	result := s.db.WithContext(ctx).Exec(
		`UPDATE usage_sessions
		 SET status = ?,
		     end_time = ?,
		     duration_seconds = ?,
		     reported_duration_seconds = ?,
		     tokens_consumed = ?,
		     close_trigger = ?,
		     updated_at = ?
		 WHERE id = ? AND status = ?`,
		status,
		now,
		billedSeconds,
		reportedSeconds,
		owed,
		trigger,
		now,
		record.ID,
		sessiondomain.SessionStatusActive,
	)
	if result.Error != nil {
		return sessiondomain.EndResponse{}, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the close race; the winner billed.
		closed, err := s.findSession(ctx, req.SessionRef)
		if err != nil {
			return sessiondomain.EndResponse{}, err
		}
		return sessiondomain.EndResponse{Session: closed, AlreadyClosed: true}, nil
	}

	charged, billingStatus := s.settle(ctx, record, owed, billedSeconds)

	if err := s.db.WithContext(ctx).Exec(
		`UPDATE usage_sessions SET billing_status = ?, updated_at = ? WHERE id = ?`,
		billingStatus,
		s.clock.Now(),
		record.ID,
	).Error; err != nil {
		s.log.Error("failed to record billing status", zap.String("session_id", record.ID.String()), zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.IncSessionClosed(string(status), string(trigger))
		s.metrics.ObserveSessionDuration(string(record.ServiceType), billed)
	}

	eventType := events.EventSessionClosed
	if trigger == sessiondomain.CloseTriggerReaper {
		eventType = events.EventSessionReaped
	}
	if err := s.outbox.Publish(ctx, events.Event{
		UserID: record.UserID,
		Type:   eventType,
		Payload: events.SessionClosedPayload{
			SessionID:       record.ID.String(),
			ServiceType:     string(record.ServiceType),
			Status:          string(status),
			DurationSeconds: billedSeconds,
			TokensConsumed:  owed,
			BillingStatus:   string(billingStatus),
		}.ToMap(),
		DedupeKey: "session-close:" + record.ID.String(),
	}); err != nil {
		s.log.Warn("failed to publish session close event", zap.Error(err))
	}

	closed, err := s.findSession(ctx, req.SessionRef)
	if err != nil {
		return sessiondomain.EndResponse{}, err
	}

	s.log.Info("session closed",
		zap.String("session_id", record.ID.String()),
		zap.String("status", string(status)),
		zap.String("trigger", string(trigger)),
		zap.Int64("duration_seconds", billedSeconds),
		zap.Int64("tokens_charged", charged),
		zap.String("billing_status", string(billingStatus)),
	)
	return sessiondomain.EndResponse{Session: closed, TokensCharged: charged}, nil
}

func (s *Service) Get(ctx context.Context, sessionRef string) (*sessiondomain.UsageSession, error) {
	return s.findSession(ctx, sessionRef)
}

func (s *Service) ListActive(ctx context.Context, limit int) ([]sessiondomain.UsageSession, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []sessiondomain.UsageSession
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM usage_sessions
		 WHERE status = ?
		 ORDER BY start_time ASC, id ASC
		 LIMIT ?`,
		sessiondomain.SessionStatusActive,
		limit,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// settle performs the single debit for a won close and reports the billing
// outcome. Every failure path still leaves the session terminal.
func (s *Service) settle(ctx context.Context, record *sessiondomain.UsageSession, owed, billedSeconds int64) (int64, sessiondomain.BillingStatus) {
	if owed == 0 {
		return 0, sessiondomain.BillingStatusBilled
	}

	_, err := s.ledgerSvc.Debit(ctx, ledgerdomain.DebitRequest{
		UserID:      record.UserID,
		Amount:      owed,
		Description: string(record.ServiceType) + " session",
		Metadata: map[string]any{
			"session_id":       record.ID.String(),
			"session_uuid":     record.SessionUUID,
			"duration_seconds": billedSeconds,
		},
	})
	switch {
	case err == nil:
		return owed, sessiondomain.BillingStatusBilled
	case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
		s.log.Warn("session closed with unbillable shortfall",
			zap.String("session_id", record.ID.String()),
			zap.String("user_id", record.UserID.String()),
			zap.Int64("tokens_owed", owed),
		)
		return 0, sessiondomain.BillingStatusShortfall
	case errors.Is(err, ledgerdomain.ErrLedgerNotFound):
		// An account without a ledger is a provisioning bug, not a
		// spending decision; keep the debt visible as pending.
		s.log.Error("session close found no ledger for user",
			zap.String("session_id", record.ID.String()),
			zap.String("user_id", record.UserID.String()),
		)
		return 0, sessiondomain.BillingStatusPending
	default:
		s.log.Error("session close debit failed",
			zap.String("session_id", record.ID.String()),
			zap.Error(err),
		)
		return 0, sessiondomain.BillingStatusPending
	}
}

// billableDuration picks the single duration that feeds the rate model:
// an authoritative value when the reaper/oracle supplies one, otherwise the
// server's own elapsed time. Either way the configured maximum bounds it.
func (s *Service) billableDuration(start, now time.Time, authoritative *time.Duration) time.Duration {
	var d time.Duration
	if authoritative != nil {
		d = *authoritative
	} else {
		d = now.Sub(start)
	}
	if d < 0 {
		d = 0
	}
	if s.maxDuration > 0 && d > s.maxDuration {
		d = s.maxDuration
	}
	return d
}

func (s *Service) findSession(ctx context.Context, ref string) (*sessiondomain.UsageSession, error) {
	if ref == "" {
		return nil, sessiondomain.ErrSessionNotFound
	}

	query := `SELECT * FROM usage_sessions WHERE session_uuid = ?`
	args := []any{ref}
	if id, err := snowflake.ParseString(ref); err == nil && id != 0 {
		query = `SELECT * FROM usage_sessions WHERE id = ? OR session_uuid = ?`
		args = []any{id, ref}
	}

	var record sessiondomain.UsageSession
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&record).Error; err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, sessiondomain.ErrSessionNotFound
	}
	return &record, nil
}

func (s *Service) hasActiveToken(ctx context.Context, userID snowflake.ID, token string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM usage_sessions
		 WHERE user_id = ? AND session_token = ? AND status = ?`,
		userID,
		token,
		sessiondomain.SessionStatusActive,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	seconds := int64(d / time.Second)
	if d%time.Second != 0 {
		seconds++
	}
	return seconds
}
