package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const namespace = "rentflow"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking state changes by operation and resulting status.",
		},
		[]string{"operation", "status"},
	)

	escrowMovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_movements_total",
			Help:      "Escrow ledger movements by kind (hold, release, refund, withdraw).",
		},
		[]string{"kind"},
	)

	escrowAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_amount_total",
			Help:      "Money moved through the escrow ledger by kind.",
		},
		[]string{"kind"},
	)

	ledgerDrift = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_drifted_wallets",
			Help:      "Wallets whose pending balance differs from the sum of their pending holds at the last reconciliation.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, bookingTransitions, escrowMovements, escrowAmount, ledgerDrift)
	})
}

// ObserveHTTP records one finished request.
func ObserveHTTP(endpoint string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func IncBookingTransition(operation, status string) {
	bookingTransitions.WithLabelValues(operation, status).Inc()
}

// ObserveEscrow counts a ledger movement and its amount.
func ObserveEscrow(kind string, amount decimal.Decimal) {
	escrowMovements.WithLabelValues(kind).Inc()
	escrowAmount.WithLabelValues(kind).Add(amount.InexactFloat64())
}

func SetLedgerDrift(wallets int) {
	ledgerDrift.Set(float64(wallets))
}
