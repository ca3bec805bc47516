package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/repricer-backend/pkg/enums"
)

const dlqScrapeTimeout = 2 * time.Second

type dlqCounter interface {
	CountByReason(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error)
}

// DLQCollector reports outbox_dlq row counts per reason, queried on every scrape.
type DLQCollector struct {
	counter dlqCounter
	desc    *prometheus.Desc
}

func NewDLQCollector(counter dlqCounter) *DLQCollector {
	return &DLQCollector{
		counter: counter,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "outbox", "dlq_rows"),
			"Outbox events parked in the dead-letter table, by error reason.",
			[]string{"reason"}, nil,
		),
	}
}

func (c *DLQCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *DLQCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), dlqScrapeTimeout)
	defer cancel()

	counts, err := c.counter.CountByReason(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.desc, err)
		return
	}
	for _, reason := range enums.OutboxDLQErrorReasons() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(counts[reason]), string(reason))
	}
}
