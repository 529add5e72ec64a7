package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		ObserveHTTP("test_endpoint", 200, 15*time.Millisecond)
	})
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("test_endpoint", "200")))
}

func TestBookingAndEscrowCounters(t *testing.T) {
	before := testutil.ToFloat64(bookingTransitions.WithLabelValues("accept", "ACCEPTED"))
	IncBookingTransition("accept", "ACCEPTED")
	assert.Equal(t, before+1, testutil.ToFloat64(bookingTransitions.WithLabelValues("accept", "ACCEPTED")))

	amountBefore := testutil.ToFloat64(escrowAmount.WithLabelValues("hold"))
	ObserveEscrow("hold", decimal.RequireFromString("80.50"))
	assert.InDelta(t, amountBefore+80.5, testutil.ToFloat64(escrowAmount.WithLabelValues("hold")), 1e-9)

	SetLedgerDrift(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(ledgerDrift))
	SetLedgerDrift(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(ledgerDrift))
}
