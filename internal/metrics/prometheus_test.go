package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_Initialization(t *testing.T) {
	pm := NewPrometheusMetrics()
	require.NotNil(t, pm)
	require.NotNil(t, pm.GetRegistry())

	families, err := pm.GetRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families, "runtime collectors are registered")
}

func TestPrometheusMetrics_ObserveProbe(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.ObserveProbe("discovery", "success", 200*time.Millisecond)
	pm.ObserveProbe("discovery", "success", 300*time.Millisecond)
	pm.ObserveProbe("discovery", "timeout", 10*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.probesTotal.WithLabelValues("discovery", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.probesTotal.WithLabelValues("discovery", "timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.probeDuration))
}

func TestPrometheusMetrics_BatchAndTargets(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.SetActiveProbes("portscan", 3)
	pm.ObserveBatch("portscan", 5, 2, time.Minute)
	pm.AddIgnoredTargets("loopback", 2)
	pm.AddIgnoredTargets("invalid", 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(pm.activeProbes.WithLabelValues("portscan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.batchesTotal.WithLabelValues("portscan")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.batchHostsLast.WithLabelValues("portscan", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pm.batchHostsLast.WithLabelValues("portscan", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.targetsIgnored.WithLabelValues("loopback")))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.targetsIgnored), "zero-count reasons should not create series")
}

func TestPrometheusMetrics_WriteTextfile(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.ObserveProbe("discovery", "success", time.Second)

	path := filepath.Join(t.TempDir(), "scanfinder.prom")
	require.NoError(t, pm.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `scanfinder_probe_total{mode="discovery",result="success"} 1`))
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.ObserveProbe("discovery", "success", time.Second)
	r.SetActiveProbes("discovery", 1)
	r.ObserveBatch("discovery", 1, 1, time.Second)
	r.AddIgnoredTargets("invalid", 1)
}
