package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "papertrader"

// Metrics holds the reconciliation counters exported on /metrics.
type Metrics struct {
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	ordersPlaced  *prometheus.CounterVec
	ordersFilled  *prometheus.CounterVec
	ordersExpired *prometheus.CounterVec
	closed        *prometheus.CounterVec
	signals       *prometheus.CounterVec
	running       prometheus.Gauge
}

// New registers the collectors on reg. Use prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_cycles_total",
				Help:      "Reconciliation cycles by outcome",
			},
			[]string{"outcome"},
		),
		cycleDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_cycle_duration_seconds",
				Help:      "Duration of reconciliation cycles",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		ordersPlaced: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_placed_total",
				Help:      "Limit orders placed",
			},
			[]string{"direction"},
		),
		ordersFilled: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_filled_total",
				Help:      "Limit orders filled",
			},
			[]string{"symbol"},
		),
		ordersExpired: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_expired_total",
				Help:      "Limit orders expired",
			},
			[]string{"symbol"},
		),
		closed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "positions_closed_total",
				Help:      "Positions closed by reason",
			},
			[]string{"reason"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_total",
				Help:      "Signal evaluations by outcome",
			},
			[]string{"outcome"},
		),
		running: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "schedulers_running",
				Help:      "Users with an active reconciliation loop",
			},
		),
	}
}

// All methods are safe on a nil *Metrics.

func (m *Metrics) CycleFinished(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(seconds)
}

func (m *Metrics) OrderPlaced(direction string) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(direction).Inc()
}

func (m *Metrics) OrderFilled(symbol string) {
	if m == nil {
		return
	}
	m.ordersFilled.WithLabelValues(symbol).Inc()
}

func (m *Metrics) OrderExpired(symbol string) {
	if m == nil {
		return
	}
	m.ordersExpired.WithLabelValues(symbol).Inc()
}

func (m *Metrics) PositionClosed(reason string) {
	if m == nil {
		return
	}
	m.closed.WithLabelValues(reason).Inc()
}

func (m *Metrics) Signal(outcome string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SchedulerStarted() {
	if m == nil {
		return
	}
	m.running.Inc()
}

func (m *Metrics) SchedulerStopped() {
	if m == nil {
		return
	}
	m.running.Dec()
}
