package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/metrics"
)

type fakeLock struct {
	acquired   bool
	acquireErr error
	releases   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, registry *Registry, lock Lock, m *metrics.CronJobMetrics) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: registry,
		Lock:     lock,
		Metrics:  m,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	reg := prometheus.NewRegistry()
	service := newTestService(t, NewRegistry(success, failure), lock, metrics.NewCronJobMetrics(reg))

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected each job once, got success=%d fail=%d", success.runs, failure.runs)
	}
	if lock.releases != 1 || lock.acquired {
		t.Fatalf("expected lock released after cycle")
	}
	if got := counterFor(t, reg, "repricer_cron_job_failure_total", "job", "fail"); got != 1 {
		t.Fatalf("expected one failure, got %v", got)
	}
	if got := counterFor(t, reg, "repricer_cron_job_success_total", "job", "success"); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "repricing-sweep"}
	lock := &fakeLock{acquired: true}
	reg := prometheus.NewRegistry()
	service := newTestService(t, NewRegistry(job), lock, metrics.NewCronJobMetrics(reg))

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job to be skipped, ran %d", job.runs)
	}
	if lock.releases != 0 {
		t.Fatalf("lock held elsewhere must not be released")
	}
	if got := counterFor(t, reg, "repricer_cron_cycle_skipped_total", "reason", "locked"); got != 1 {
		t.Fatalf("expected skipped counter 1, got %v", got)
	}
}

func TestServiceRunCycleLockError(t *testing.T) {
	job := &testJob{name: "repricing-sweep"}
	service := newTestService(t, NewRegistry(job), &fakeLock{acquireErr: errors.New("redis down")}, nil)

	if err := service.runCycle(context.Background()); err == nil {
		t.Fatal("expected lock error")
	}
	if job.runs != 0 {
		t.Fatalf("expected no job runs")
	}
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "repricing-sweep"}
	service := newTestService(t, NewRegistry(job), &fakeLock{}, nil)
	service.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
	if job.runs != 1 {
		t.Fatalf("expected the startup cycle to run once, ran %d", job.runs)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})}); err == nil {
		t.Fatal("expected lock error")
	}
	service := newTestService(t, nil, &fakeLock{}, nil)
	if service.interval != defaultInterval {
		t.Fatalf("expected default interval, got %s", service.interval)
	}
}

func counterFor(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if hasLabel(metric.GetLabel(), label, value) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, pair := range labels {
		if pair.GetName() == name && pair.GetValue() == value {
			return true
		}
	}
	return false
}

type refreshingLock struct {
	fakeLock
	refreshErr error
	refreshes  int
}

func (r *refreshingLock) Refresh(context.Context) error {
	r.refreshes++
	return r.refreshErr
}

func TestServiceRunCycleRefreshesBetweenJobs(t *testing.T) {
	first, second, third := &testJob{name: "a"}, &testJob{name: "b"}, &testJob{name: "c"}
	lock := &refreshingLock{}
	service := newTestService(t, NewRegistry(first, second, third), lock, nil)

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if lock.refreshes != 2 {
		t.Fatalf("expected a refresh before each job after the first, got %d", lock.refreshes)
	}
	if third.runs != 1 {
		t.Fatalf("expected every job to run")
	}
}

func TestServiceRunCycleStopsWhenLockLost(t *testing.T) {
	first, second := &testJob{name: "a"}, &testJob{name: "b"}
	lock := &refreshingLock{refreshErr: ErrLockLost}
	reg := prometheus.NewRegistry()
	service := newTestService(t, NewRegistry(first, second), lock, metrics.NewCronJobMetrics(reg))

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if first.runs != 1 || second.runs != 0 {
		t.Fatalf("expected only the first job, got a=%d b=%d", first.runs, second.runs)
	}
	if got := counterFor(t, reg, "repricer_cron_cycle_skipped_total", "reason", "lock_lost"); got != 1 {
		t.Fatalf("expected lock_lost skip, got %v", got)
	}
	if lock.releases != 1 {
		t.Fatalf("expected release after abandoning cycle")
	}
}
