package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Usage is one resource sample of the child process.
type Usage struct {
	PID        int32
	CPUPercent float64
	RSSBytes   uint64
	NumThreads int32
}

// UsageCollector periodically samples the child's CPU and memory through
// gopsutil and exposes the last sample as gauges.
type UsageCollector struct {
	name     string
	interval time.Duration
	pid      func() int
	log      *slog.Logger

	cpu     prometheus.Gauge
	rss     prometheus.Gauge
	threads prometheus.Gauge

	proc *gopsproc.Process
}

// NewUsageCollector samples the PID returned by pid every interval. pid must
// return 0 when no child is running.
func NewUsageCollector(name string, interval time.Duration, pid func() int, log *slog.Logger) *UsageCollector {
	if log == nil {
		log = slog.Default()
	}
	labels := prometheus.Labels{"name": name}
	return &UsageCollector{
		name:     name,
		interval: interval,
		pid:      pid,
		log:      log,
		cpu: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procwatch", Subsystem: "process", Name: "cpu_percent",
			Help: "CPU usage of the child in percent.", ConstLabels: labels,
		}),
		rss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procwatch", Subsystem: "process", Name: "resident_memory_bytes",
			Help: "Resident set size of the child.", ConstLabels: labels,
		}),
		threads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procwatch", Subsystem: "process", Name: "threads",
			Help: "Number of threads of the child.", ConstLabels: labels,
		}),
	}
}

func (c *UsageCollector) Register(r prometheus.Registerer) error {
	for _, g := range []prometheus.Collector{c.cpu, c.rss, c.threads} {
		if err := r.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// Run samples until ctx ends.
func (c *UsageCollector) Run(ctx context.Context) {
	if c.interval <= 0 {
		return
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if u, ok := c.Sample(); ok {
				c.cpu.Set(u.CPUPercent)
				c.rss.Set(float64(u.RSSBytes))
				c.threads.Set(float64(u.NumThreads))
			} else {
				c.cpu.Set(0)
				c.rss.Set(0)
				c.threads.Set(0)
			}
		}
	}
}

// Sample takes one measurement. ok is false when no child is running or it
// could not be inspected.
func (c *UsageCollector) Sample() (Usage, bool) {
	pid := int32(c.pid())
	if pid <= 0 {
		c.proc = nil
		return Usage{}, false
	}
	// Keep the handle across samples so CPUPercent measures the interval.
	if c.proc == nil || c.proc.Pid != pid {
		p, err := gopsproc.NewProcess(pid)
		if err != nil {
			c.log.Debug("usage sample failed", "pid", pid, "error", err)
			c.proc = nil
			return Usage{}, false
		}
		c.proc = p
	}
	mem, err := c.proc.MemoryInfo()
	if err != nil {
		c.log.Debug("usage sample failed", "pid", pid, "error", err)
		return Usage{}, false
	}
	u := Usage{PID: pid, RSSBytes: mem.RSS}
	if cpu, err := c.proc.Percent(0); err == nil {
		u.CPUPercent = cpu
	}
	if n, err := c.proc.NumThreads(); err == nil {
		u.NumThreads = n
	}
	return u, true
}
