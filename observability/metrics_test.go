package observability

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRentalMetricsObserve(t *testing.T) {
	m := Rental()
	before := testutil.ToFloat64(m.operations.WithLabelValues("book", "error"))
	m.Observe("book", time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(m.operations.WithLabelValues("book", "error")); got != before+1 {
		t.Fatalf("expected error counter to increase, got %v", got)
	}
	flowBefore := testutil.ToFloat64(m.flows.WithLabelValues("deposit"))
	m.RecordFlow("deposit", big.NewInt(1_600_000_000))
	m.RecordFlow("deposit", big.NewInt(-1))
	if got := testutil.ToFloat64(m.flows.WithLabelValues("deposit")); got != flowBefore+1_600_000_000 {
		t.Fatalf("unexpected deposit flow: %v", got)
	}
	m.SetPaused(true)
	if got := testutil.ToFloat64(m.paused); got != 1 {
		t.Fatalf("expected paused gauge 1, got %v", got)
	}
	m.SetPaused(false)
}

func TestModuleMetricsCountsErrorsByCode(t *testing.T) {
	m := ModuleMetrics()
	before := testutil.ToFloat64(m.errors.WithLabelValues("rental", "rental_book", "-32032"))
	m.Observe("rental", "rental_book", -32032, time.Millisecond)
	m.Observe("rental", "rental_book", 0, time.Millisecond)
	if got := testutil.ToFloat64(m.errors.WithLabelValues("rental", "rental_book", "-32032")); got != before+1 {
		t.Fatalf("expected one overlap error, got %v", got)
	}
}

func TestEventMetrics(t *testing.T) {
	m := Events()
	before := testutil.ToFloat64(m.emitted.WithLabelValues("rental.booked"))
	m.RecordEvent(" Rental.Booked ")
	if got := testutil.ToFloat64(m.emitted.WithLabelValues("rental.booked")); got != before+1 {
		t.Fatalf("expected counter to increase, got %v", got)
	}
	m.SetJournalHead(9)
	if got := testutil.ToFloat64(m.head); got != 9 {
		t.Fatalf("unexpected head: %v", got)
	}
}
