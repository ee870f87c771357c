package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveHTTPRequestIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	ObserveHTTPRequest("/auth", 200, 0.01)

	metric := &dto.Metric{}
	require.NoError(t, HTTPRequestsTotal.WithLabelValues("/auth", "200").Write(metric))
	assert.Equal(t, float64(1), metric.GetCounter().GetValue())
}

func TestAuthOutcomesTrackedByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	AuthOutcomesTotal.WithLabelValues("verified").Inc()
	metric := &dto.Metric{}
	require.NoError(t, AuthOutcomesTotal.WithLabelValues("verified").Write(metric))
	assert.Equal(t, float64(1), metric.GetCounter().GetValue())
}
