package daemon

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"easel/internal/queue"
)

var queueSubmissionsDesc = prometheus.NewDesc(
	"easel_queue_submissions",
	"Number of submissions in the queue by status.",
	[]string{"status"},
	nil,
)

// queueCollector exposes queue depth per status, read fresh on every scrape.
type queueCollector struct {
	store        *queue.Store
	scrapeErrors prometheus.Counter
}

func newQueueCollector(store *queue.Store) *queueCollector {
	return &queueCollector{
		store: store,
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "easel_queue_scrape_errors_total",
			Help: "Total number of failed queue stats scrapes.",
		}),
	}
}

func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- queueSubmissionsDesc
	c.scrapeErrors.Describe(ch)
}

func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats, err := c.store.Stats(ctx)
	if err != nil {
		c.scrapeErrors.Inc()
		c.scrapeErrors.Collect(ch)
		return
	}
	c.scrapeErrors.Collect(ch)
	for _, status := range queue.AllStatuses() {
		ch <- prometheus.MustNewConstMetric(
			queueSubmissionsDesc,
			prometheus.GaugeValue,
			float64(stats[status]),
			string(status),
		)
	}
}

func newMetricsRegistry(store *queue.Store) (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	cs := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newQueueCollector(store),
	}
	for _, collector := range cs {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
