package metrics

import (
	"io"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func find(t *testing.T, mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))

	IncStart("app.sh")
	IncStart("app.sh")
	IncStop("app.sh")
	IncExit("app.sh", true)
	IncExit("app.sh", false)
	IncRestart("app.sh", TriggerFiles)
	IncRestart("app.sh", TriggerForce)
	IncDetectorChange("/srv/app")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	starts := find(t, mfs, "procwatch_process_starts_total")
	assert.Equal(t, 2.0, starts.GetMetric()[0].GetCounter().GetValue())

	restarts := find(t, mfs, "procwatch_process_restarts_total")
	triggers := map[string]bool{}
	for _, m := range restarts.GetMetric() {
		triggers[labelValue(m, "trigger")] = true
	}
	assert.Equal(t, map[string]bool{TriggerFiles: true, TriggerForce: true}, triggers)

	exits := find(t, mfs, "procwatch_process_exits_total")
	assert.Len(t, exits.GetMetric(), 2)

	running := find(t, mfs, "procwatch_process_running")
	assert.Equal(t, 0.0, running.GetMetric()[0].GetGauge().GetValue())

	find(t, mfs, "procwatch_process_stops_total")
	find(t, mfs, "procwatch_detector_changes_total")
}

func TestHandlerForServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "procwatch_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "procwatch_test_total 1")
}

func TestUsageCollector_SamplesOwnProcess(t *testing.T) {
	pid := os.Getpid()
	c := NewUsageCollector("self", time.Second, func() int { return pid }, nil)
	u, ok := c.Sample()
	require.True(t, ok)
	assert.EqualValues(t, pid, u.PID)
	assert.Greater(t, u.RSSBytes, uint64(0))

	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg))
	mfs, err := reg.Gather()
	require.NoError(t, err)
	find(t, mfs, "procwatch_process_resident_memory_bytes")
}

func TestUsageCollector_NoChild(t *testing.T) {
	c := NewUsageCollector("none", time.Second, func() int { return 0 }, nil)
	_, ok := c.Sample()
	assert.False(t, ok)
}
