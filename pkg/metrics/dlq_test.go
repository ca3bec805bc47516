package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/repricer-backend/pkg/enums"
)

type fakeDLQCounter struct {
	counts map[enums.OutboxDLQErrorReason]int64
	err    error
}

func (f fakeDLQCounter) CountByReason(context.Context) (map[enums.OutboxDLQErrorReason]int64, error) {
	return f.counts, f.err
}

func TestDLQCollectorReportsEveryReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewDLQCollector(fakeDLQCounter{counts: map[enums.OutboxDLQErrorReason]int64{
		enums.OutboxDLQReasonMaxAttempts: 3,
	}}))

	mf := findMetricFamily(gather(reg), "repricer_outbox_dlq_rows")
	if mf == nil {
		t.Fatal("expected dlq gauge")
	}
	if got := len(mf.GetMetric()); got != len(enums.OutboxDLQErrorReasons()) {
		t.Fatalf("expected one series per reason, got %d", got)
	}
	for _, metric := range mf.GetMetric() {
		want := 0.0
		if matchesLabel(metric.GetLabel(), "reason", string(enums.OutboxDLQReasonMaxAttempts)) {
			want = 3
		}
		if got := metric.GetGauge().GetValue(); got != want {
			t.Fatalf("unexpected gauge %v for %v", got, metric.GetLabel())
		}
	}
}

func TestDLQCollectorSurfacesErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewDLQCollector(fakeDLQCounter{err: errors.New("db down")}))
	if _, err := reg.Gather(); err == nil {
		t.Fatal("expected gather error when the count query fails")
	}
}
