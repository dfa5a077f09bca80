// Package metrics exposes operational counters for the recorder and the
// aggregator. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/kcz17/dumpslow/views"
	"github.com/prometheus/client_golang/prometheus"
)

// UnresolvedView labels slow requests to paths no route matches. Client
// supplied paths must not become label values.
const UnresolvedView = "unresolved"

type Metrics struct {
	slowRequests     *prometheus.CounterVec
	storeErrors      *prometheus.CounterVec
	alerts           *prometheus.CounterVec
	malformedRecords prometheus.Counter
}

// New creates the counters and registers them with reg. Collectors already
// registered by an earlier call are reused.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		slowRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dumpslow",
			Name:      "slow_requests_total",
			Help:      "Number of requests at or over the long request threshold",
		}, []string{"view"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dumpslow",
			Name:      "store_errors_total",
			Help:      "Number of failed sample store operations",
		}, []string{"op"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dumpslow",
			Name:      "alerts_total",
			Help:      "Number of slow request alerts by delivery result",
		}, []string{"result"}),
		malformedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dumpslow",
			Name:      "malformed_records_total",
			Help:      "Number of stored samples skipped because they could not be decoded",
		}),
	}

	m.slowRequests = register(reg, m.slowRequests).(*prometheus.CounterVec)
	m.storeErrors = register(reg, m.storeErrors).(*prometheus.CounterVec)
	m.alerts = register(reg, m.alerts).(*prometheus.CounterVec)
	m.malformedRecords = register(reg, m.malformedRecords).(prometheus.Counter)
	return m
}

func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func (m *Metrics) SlowRequest(view string) {
	if m == nil {
		return
	}
	if views.IsUnresolved(view) {
		view = UnresolvedView
	}
	m.slowRequests.WithLabelValues(view).Inc()
}

func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) Alert(delivered bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !delivered {
		result = "failed"
	}
	m.alerts.WithLabelValues(result).Inc()
}

func (m *Metrics) MalformedRecord() {
	if m == nil {
		return
	}
	m.malformedRecords.Inc()
}
