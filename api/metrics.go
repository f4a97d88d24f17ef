/*
metrics.go - Prometheus metrics for the budget API

PURPOSE:
  Counts purchases, checks and paychecks and exposes the current balances
  as gauges. Served on /metrics from a private registry, so tests can build
  as many routers as they like without duplicate registration panics.

METRICS:
  budget_purchases_total{bucket,result}   applied / rejected purchases
  budget_purchase_checks_total{bucket,result}
  budget_paychecks_total
  budget_deposited_total                  sum of paycheck deposits
  budget_balance{bucket}                  last observed balance
  budget_debt                             last observed debt
  budget_snack_allowance_remaining        allowance left today
  budget_http_request_duration_seconds{method,route,status}

SEE ALSO:
  - server.go: /metrics route and request timing middleware
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/generic"
)

// Metrics holds every collector the API updates.
type Metrics struct {
	registry *prometheus.Registry

	Purchases      *prometheus.CounterVec
	PurchaseChecks *prometheus.CounterVec
	Paychecks      prometheus.Counter
	Deposited      prometheus.Counter

	Balance        *prometheus.GaugeVec
	Debt           prometheus.Gauge
	SnackRemaining prometheus.Gauge

	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Purchases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_purchases_total",
				Help: "Purchases submitted, by bucket and result",
			},
			[]string{"bucket", "result"},
		),

		PurchaseChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_purchase_checks_total",
				Help: "Purchase previews, by bucket and result",
			},
			[]string{"bucket", "result"},
		),

		Paychecks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "budget_paychecks_total",
				Help: "Paychecks allocated",
			},
		),

		Deposited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "budget_deposited_total",
				Help: "Sum of all allocated paycheck deposits",
			},
		),

		Balance: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "budget_balance",
				Help: "Last observed bucket balance",
			},
			[]string{"bucket"},
		),

		Debt: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "budget_debt",
				Help: "Last observed outstanding debt",
			},
		),

		SnackRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "budget_snack_allowance_remaining",
				Help: "Snack allowance left today",
			},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "budget_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"method", "route", "status"},
		),
	}

	m.registry.MustRegister(
		m.Purchases,
		m.PurchaseChecks,
		m.Paychecks,
		m.Deposited,
		m.Balance,
		m.Debt,
		m.SnackRemaining,
		m.RequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordPurchase counts an applied or rejected purchase.
func (m *Metrics) RecordPurchase(d budget.Decision, applied bool) {
	m.Purchases.WithLabelValues(bucketLabel(d.Bucket), purchaseResult(d, applied)).Inc()
}

// RecordCheck counts a purchase preview.
func (m *Metrics) RecordCheck(d budget.Decision) {
	m.PurchaseChecks.WithLabelValues(bucketLabel(d.Bucket), purchaseResult(d, d.OK)).Inc()
}

// RecordPaycheck counts an allocated paycheck.
func (m *Metrics) RecordPaycheck(deposit generic.Money) {
	m.Paychecks.Inc()
	m.Deposited.Add(deposit.Float64())
}

// ObserveBalances refreshes the balance gauges.
func (m *Metrics) ObserveBalances(b budget.Balances, debt generic.Money) {
	for _, bucket := range budget.Buckets {
		m.Balance.WithLabelValues(string(bucket)).Set(b.Get(bucket).Float64())
	}
	m.Debt.Set(debt.Float64())
}

// ObserveState refreshes every gauge from a full state.
func (m *Metrics) ObserveState(s *budget.State) {
	m.ObserveBalances(s.Balances, s.Debt)
	lock := s.SnackLock
	m.SnackRemaining.Set(lock.AllowanceToday.Sub(lock.SpentToday).NonNegative().Float64())
}

// Middleware times every request by its chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

func purchaseResult(d budget.Decision, applied bool) string {
	switch {
	case applied:
		return "approved"
	case d.OK:
		return "stale"
	default:
		return "rejected"
	}
}

// bucketLabel keeps label cardinality bounded to known buckets.
func bucketLabel(b budget.Bucket) string {
	if _, ok := budget.ParseBucket(string(b)); ok {
		return string(b)
	}
	return "unknown"
}
