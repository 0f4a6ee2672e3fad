package rate

import (
	"errors"
	"testing"
	"time"
)

func testTable(t *testing.T) Table {
	t.Helper()
	table, err := NewTable(map[ServiceType]int64{
		ServiceConversationalAI: 1,
		ServicePicaEndpoint:     2,
	})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	return table
}

func TestCostZeroDuration(t *testing.T) {
	table := testTable(t)
	cost, err := table.Cost(ServiceConversationalAI, 0)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != 0 {
		t.Fatalf("expected 0 credits for zero duration, got %d", cost)
	}
}

func TestCostRoundsUp(t *testing.T) {
	table := testTable(t)
	cost, err := table.Cost(ServiceConversationalAI, 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != 2 {
		t.Fatalf("expected 1.5s to round up to 2 credits, got %d", cost)
	}
}

func TestCostLinearPerServiceType(t *testing.T) {
	table := testTable(t)
	conversational, err := table.CostSeconds(ServiceConversationalAI, 45)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if conversational != 45 {
		t.Fatalf("expected 45 credits, got %d", conversational)
	}

	pica, err := table.CostSeconds(ServicePicaEndpoint, 45)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if pica != 90 {
		t.Fatalf("expected 90 credits, got %d", pica)
	}
}

func TestCostMonotonic(t *testing.T) {
	table := testTable(t)
	var prev int64
	for seconds := int64(0); seconds <= 120; seconds++ {
		cost, err := table.CostSeconds(ServicePicaEndpoint, seconds)
		if err != nil {
			t.Fatalf("cost at %ds: %v", seconds, err)
		}
		if cost < prev {
			t.Fatalf("cost decreased at %ds: %d < %d", seconds, cost, prev)
		}
		prev = cost
	}
}

func TestCostUnknownServiceType(t *testing.T) {
	table := testTable(t)
	if _, err := table.Cost(ServiceType("teleportation"), time.Minute); !errors.Is(err, ErrUnknownServiceType) {
		t.Fatalf("expected ErrUnknownServiceType, got %v", err)
	}
}

func TestNewTableRejectsNonPositiveRate(t *testing.T) {
	if _, err := NewTable(map[ServiceType]int64{ServiceConversationalAI: 0}); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}

func TestParseServiceType(t *testing.T) {
	if _, err := ParseServiceType("conversational_ai"); err != nil {
		t.Fatalf("expected valid service type, got %v", err)
	}
	if _, err := ParseServiceType("smtp"); !errors.Is(err, ErrUnknownServiceType) {
		t.Fatalf("expected ErrUnknownServiceType, got %v", err)
	}
}
