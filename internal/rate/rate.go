// Package rate converts metered wall-clock duration into credits owed.
package rate

import (
	"errors"
	"time"
)

// ServiceType identifies a metered service with its own billing rate.
type ServiceType string

const (
	// ServiceConversationalAI is a continuous voice conversation session.
	ServiceConversationalAI ServiceType = "conversational_ai"
	// ServicePicaEndpoint is a tool-automation call session.
	ServicePicaEndpoint ServiceType = "pica_endpoint"
)

var (
	ErrUnknownServiceType = errors.New("unknown_service_type")
	ErrInvalidRate        = errors.New("invalid_rate")
)

// ParseServiceType validates a caller-supplied service type.
func ParseServiceType(value string) (ServiceType, error) {
	switch ServiceType(value) {
	case ServiceConversationalAI:
		return ServiceConversationalAI, nil
	case ServicePicaEndpoint:
		return ServicePicaEndpoint, nil
	default:
		return "", ErrUnknownServiceType
	}
}

// Table maps each service type to a strictly positive per-second credit rate.
// Cost is linear in duration and rounded up to the next whole credit, so the
// same table backs both admission estimates and close-time charges.
type Table struct {
	perSecond map[ServiceType]int64
}

// NewTable builds a rate table. Every known service type must carry a
// strictly positive rate.
func NewTable(rates map[ServiceType]int64) (Table, error) {
	perSecond := make(map[ServiceType]int64, len(rates))
	for serviceType, perSec := range rates {
		if perSec <= 0 {
			return Table{}, ErrInvalidRate
		}
		perSecond[serviceType] = perSec
	}
	return Table{perSecond: perSecond}, nil
}

// Cost returns the credits owed for running serviceType for duration.
// Zero or negative durations cost nothing; fractional seconds round up.
func (t Table) Cost(serviceType ServiceType, duration time.Duration) (int64, error) {
	perSec, ok := t.perSecond[serviceType]
	if !ok {
		return 0, ErrUnknownServiceType
	}
	if duration <= 0 {
		return 0, nil
	}
	seconds := int64(duration / time.Second)
	if duration%time.Second != 0 {
		seconds++
	}
	return seconds * perSec, nil
}

// CostSeconds is Cost for a duration expressed in whole seconds.
func (t Table) CostSeconds(serviceType ServiceType, seconds int64) (int64, error) {
	return t.Cost(serviceType, time.Duration(seconds)*time.Second)
}
