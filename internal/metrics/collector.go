package metrics

import (
	"context"
	"sort"
	"time"

	"github.com/onnwee/graphvis3d/internal/logger"
)

// Probe refreshes one group of gauges. A returned error marks the group stale.
type Probe func(ctx context.Context) error

// Collector periodically runs probes for gauges that are not updated inline,
// such as cache occupancy and the number of stored graphs.
type Collector struct {
	probes   map[string]Probe
	interval time.Duration
	stop     chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(interval time.Duration, probes map[string]Probe) *Collector {
	return &Collector{
		probes:   probes,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Collect initial metrics
	c.collectMetrics(ctx)

	for {
		select {
		case <-ticker.C:
			c.collectMetrics(ctx)
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collector
func (c *Collector) Stop() {
	close(c.stop)
}

// collectMetrics runs every probe in name order
func (c *Collector) collectMetrics(ctx context.Context) {
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.probes[name](ctx); err != nil {
			logger.Warn("metrics probe failed", "probe", name, "error", err)
			MetricsCollectionErrors.WithLabelValues(name).Inc()
		}
	}
}
