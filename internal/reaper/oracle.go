package reaper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voxora/voxora/internal/rate"
	sessiondomain "github.com/voxora/voxora/internal/session/domain"
)

// Result is an upstream provider's view of a session.
type Result struct {
	// Live reports the session is still running upstream.
	Live bool

	// Duration is the provider-measured elapsed time, authoritative when
	// the session is no longer live. Zero means the provider did not
	// measure it and the server's own elapsed time applies.
	Duration time.Duration
}

// ErrSessionUnknown means the provider has no record of the session. The
// sweep treats this the same as a dead session with no measured duration.
var ErrSessionUnknown = errors.New("oracle_session_unknown")

// Oracle answers whether a session is still live on the provider side.
// Implementations wrap a provider status API; lookups are best effort and a
// failure never blocks the sweep.
type Oracle interface {
	Lookup(ctx context.Context, session sessiondomain.UsageSession) (Result, error)
}

// OracleRegistry maps service types to their status oracles. Service types
// without an oracle are swept purely on age.
type OracleRegistry struct {
	mu      sync.RWMutex
	oracles map[rate.ServiceType]Oracle
}

func NewOracleRegistry() *OracleRegistry {
	return &OracleRegistry{oracles: make(map[rate.ServiceType]Oracle)}
}

func (r *OracleRegistry) Register(serviceType rate.ServiceType, oracle Oracle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oracles[serviceType] = oracle
}

func (r *OracleRegistry) Lookup(serviceType rate.ServiceType) (Oracle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	oracle, ok := r.oracles[serviceType]
	return oracle, ok
}
