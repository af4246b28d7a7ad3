package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	start := time.Now()
	c.ObserveCall(CapabilityEmbedding, start, nil)
	c.ObserveCall(CapabilityEmbedding, start, errors.New("quota"))
	c.ObserveBranch("success")
	c.ObserveVerification(0.75)
	c.ObserveAnalysis(start)

	expected := `
# HELP contractlens_external_call_errors_total Failed calls to external capabilities.
# TYPE contractlens_external_call_errors_total counter
contractlens_external_call_errors_total{capability="embedding"} 1
# HELP contractlens_branches_total Theme branches by terminal status.
# TYPE contractlens_branches_total counter
contractlens_branches_total{status="success"} 1
# HELP contractlens_analyses_total Completed contract analyses.
# TYPE contractlens_analyses_total counter
contractlens_analyses_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"contractlens_external_call_errors_total",
		"contractlens_branches_total",
		"contractlens_analyses_total",
	))

	count, err := testutil.GatherAndCount(reg, "contractlens_external_call_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveCall(CapabilityIndex, time.Now(), nil)
		c.ObserveBranch("failed")
		c.ObserveVerification(1)
		c.ObserveAnalysis(time.Now())
	})
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}
