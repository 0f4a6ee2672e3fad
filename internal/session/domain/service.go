package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/voxora/voxora/internal/rate"
)

// StartRequest opens a metered session after an admission check.
type StartRequest struct {
	UserID      snowflake.ID
	ServiceType rate.ServiceType

	// SessionToken optionally correlates retried start calls: a second
	// start with the same token while the first session is active is
	// rejected as a duplicate instead of opening a parallel session.
	SessionToken string

	// EstimatedDuration feeds the admission re-check. Zero means the
	// caller has no estimate.
	EstimatedDuration time.Duration

	Metadata map[string]any
}

// EndRequest closes a session. SessionRef accepts either the numeric session
// id or the session UUID handed out at start.
type EndRequest struct {
	SessionRef string

	// ReportedDuration is the client's self-report, stored for auditing.
	ReportedDuration time.Duration

	// AuthoritativeDuration, when set, overrides the server-elapsed time.
	// Only the reaper supplies it, from the oracle or the capped bound.
	AuthoritativeDuration *time.Duration

	// Status selects the terminal state; empty means completed.
	Status SessionStatus

	Trigger CloseTrigger
}

// EndResponse reports the close outcome. AlreadyClosed is the idempotent
// branch: the session was terminal before this call and nothing changed.
type EndResponse struct {
	Session       *UsageSession
	AlreadyClosed bool
	TokensCharged int64
}

// Service owns the session state machine. Closing is the only path that
// debits the ledger, and each session is debited at most once: the close is
// a compare-and-set on status, and only its winner bills.
type Service interface {
	Start(ctx context.Context, req StartRequest) (*UsageSession, error)
	End(ctx context.Context, req EndRequest) (EndResponse, error)
	Get(ctx context.Context, sessionRef string) (*UsageSession, error)
	// ListActive returns open sessions, oldest first, for the reaper sweep.
	ListActive(ctx context.Context, limit int) ([]UsageSession, error)
}

var (
	ErrSessionNotFound  = errors.New("session_not_found")
	ErrDuplicateSession = errors.New("duplicate_session")
	ErrAdmissionDenied  = errors.New("admission_denied")
	ErrInvalidDuration  = errors.New("invalid_duration")
	ErrInvalidStatus    = errors.New("invalid_status")
)
