package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStoreOperationCountsByStatus(t *testing.T) {
	m := New()
	m.StoreOperation("create_country", nil)
	m.StoreOperation("create_country", nil)
	m.StoreOperation("create_country", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.storeOps.WithLabelValues("create_country", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOps.WithLabelValues("create_country", "error")))
}

func TestPauseDepthGauge(t *testing.T) {
	m := New()
	m.PauseDepth("model", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pauseDepth.WithLabelValues("model")))
	m.PauseDepth("model", 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pauseDepth.WithLabelValues("model")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StoreOperation("x", nil)
		m.NotificationsDelivered("model", 3)
		m.PauseDepth("model", 1)
		m.FeedBuilt("minute")
		m.RealTimeUpdate("invest", "minute", 5)
	})
	assert.NotNil(t, m.Handler())
}
