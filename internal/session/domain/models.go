// Package domain contains persistence models for metered usage sessions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"

	"github.com/voxora/voxora/internal/rate"
)

// SessionStatus is the session state machine. Active is the only non-terminal
// state; there are no transitions out of a terminal state.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusFailed    SessionStatus = "failed"
)

// IsTerminal reports whether the status permits no further transitions.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled || s == SessionStatusFailed
}

// BillingStatus records the outcome of the close-time debit.
type BillingStatus string

const (
	// BillingStatusPending means the session has not been billed yet.
	BillingStatusPending BillingStatus = "pending"
	// BillingStatusBilled means the debit succeeded (or nothing was owed).
	BillingStatusBilled BillingStatus = "billed"
	// BillingStatusShortfall means the debit failed with insufficient
	// balance; the session still closed and the shortfall is recorded.
	BillingStatusShortfall BillingStatus = "unbilled_insufficient_balance"
)

// CloseTrigger records which path terminated the session.
type CloseTrigger string

const (
	CloseTriggerClient CloseTrigger = "client"
	CloseTriggerReaper CloseTrigger = "reaper"
	CloseTriggerOracle CloseTrigger = "oracle"
)

// UsageSession is a bounded interval of metered usage. The row is the source
// of truth; clients only ever hold the opaque identifiers.
type UsageSession struct {
	ID           snowflake.ID     `gorm:"primaryKey" json:"id"`
	SessionUUID  string           `gorm:"type:text;not null;uniqueIndex" json:"session_uuid"`
	SessionToken *string          `gorm:"type:text" json:"session_token,omitempty"`
	UserID       snowflake.ID     `gorm:"not null;index" json:"user_id"`
	ServiceType  rate.ServiceType `gorm:"type:text;not null" json:"service_type"`

	Status        SessionStatus `gorm:"type:text;not null;default:active" json:"status"`
	BillingStatus BillingStatus `gorm:"type:text;not null;default:pending" json:"billing_status"`
	CloseTrigger  *CloseTrigger `gorm:"type:text" json:"close_trigger,omitempty"`

	StartTime time.Time  `gorm:"not null" json:"start_time"`
	EndTime   *time.Time `gorm:"" json:"end_time,omitempty"`

	// DurationSeconds is the billed duration; ReportedDurationSeconds keeps
	// the client's self-report for auditing only.
	DurationSeconds         *int64 `gorm:"" json:"duration_seconds,omitempty"`
	ReportedDurationSeconds *int64 `gorm:"" json:"reported_duration_seconds,omitempty"`
	TokensConsumed          *int64 `gorm:"" json:"tokens_consumed,omitempty"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (UsageSession) TableName() string { return "usage_sessions" }
