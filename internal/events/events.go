package events

// Metering event types published to the outbox for downstream fan-out.
const (
	EventTokenCredited  = "token.credited"
	EventTokenDebited   = "token.debited"
	EventSessionStarted = "session.started"
	EventSessionClosed  = "session.closed"
	EventSessionReaped  = "session.reaped"
)

// LedgerMutationPayload captures the minimal data needed to notify a balance change.
type LedgerMutationPayload struct {
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	BalanceAfter  int64  `json:"balance_after"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p LedgerMutationPayload) ToMap() map[string]any {
	return map[string]any{
		"transaction_id": p.TransactionID,
		"type":           p.Type,
		"amount":         p.Amount,
		"balance_after":  p.BalanceAfter,
	}
}

// SessionClosedPayload captures the minimal data needed to notify a session close.
type SessionClosedPayload struct {
	SessionID       string `json:"session_id"`
	ServiceType     string `json:"service_type"`
	Status          string `json:"status"`
	DurationSeconds int64  `json:"duration_seconds"`
	TokensConsumed  int64  `json:"tokens_consumed"`
	BillingStatus   string `json:"billing_status"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p SessionClosedPayload) ToMap() map[string]any {
	return map[string]any{
		"session_id":       p.SessionID,
		"service_type":     p.ServiceType,
		"status":           p.Status,
		"duration_seconds": p.DurationSeconds,
		"tokens_consumed":  p.TokensConsumed,
		"billing_status":   p.BillingStatus,
	}
}
