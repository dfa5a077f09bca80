package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/kcz17/dumpslow/views"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SlowRequest("example.views.slow")
	m.SlowRequest("example.views.slow")
	m.StoreError("add")
	m.Alert(true)
	m.Alert(false)
	m.MalformedRecord()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.slowRequests.WithLabelValues("example.views.slow")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.storeErrors.WithLabelValues("add")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.alerts.WithLabelValues("sent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.alerts.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.malformedRecords))
}

func TestNew_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := New(reg)
	second := New(reg)

	first.SlowRequest("a")
	second.SlowRequest("a")
	assert.Equal(t, float64(2), testutil.ToFloat64(first.slowRequests.WithLabelValues("a")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SlowRequest("a")
		m.StoreError("add")
		m.Alert(true)
		m.MalformedRecord()
	})
}

func TestMetrics_SlowRequestCollapsesUnresolvedViews(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SlowRequest(views.Unresolved("/a"))
	m.SlowRequest(views.Unresolved("/b?x=1"))
	m.SlowRequest("example.views.slow")

	assert.Equal(t, 2, testutil.CollectAndCount(m.slowRequests))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.slowRequests.WithLabelValues(UnresolvedView)))
}
