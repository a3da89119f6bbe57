package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsbot/internal/domain/entity"
	"newsbot/internal/usecase/fetch"
)

type stubRefresher struct {
	calls   atomic.Int32
	report  fetch.Report
	err     error
	block   chan struct{}
	started chan struct{}
	gotOpts fetch.RefreshOptions
	gotDL   bool
}

func (s *stubRefresher) Refresh(ctx context.Context, sources []entity.Source, opts fetch.RefreshOptions) (fetch.Report, error) {
	s.calls.Add(1)
	s.gotOpts = opts
	_, s.gotDL = ctx.Deadline()
	if s.started != nil {
		close(s.started)
	}
	if s.block != nil {
		<-s.block
	}
	return s.report, s.err
}

func TestRunner_RunOnce_Success(t *testing.T) {
	refresher := &stubRefresher{report: fetch.Report{Outcomes: map[string]entity.FetchOutcome{
		"a": entity.Fresh("a", 5),
		"b": entity.Empty("b", errors.New("404")),
		"c": entity.Fresh("c", 3),
	}}}
	metrics := NewWorkerMetricsWithRegistry(prometheus.NewRegistry())
	opts := fetch.RefreshOptions{ConcurrencyLimit: 2}
	runner := NewRunner(refresher, []entity.Source{{ID: "a"}, {ID: "b"}, {ID: "c"}}, opts, time.Minute, metrics, discardLogger())

	report, err := runner.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Len(t, report.Outcomes, 3)
	assert.Equal(t, 2, refresher.gotOpts.ConcurrencyLimit)
	assert.True(t, refresher.gotDL, "deadline should be applied")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshRunsTotal.WithLabelValues("started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RefreshSourcesTotal.WithLabelValues("fresh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshSourcesTotal.WithLabelValues("empty")))
	assert.Greater(t, testutil.ToFloat64(metrics.RefreshLastSuccessTimestamp), 0.0)
}

func TestRunner_RunOnce_NoDeadline(t *testing.T) {
	refresher := &stubRefresher{}
	runner := NewRunner(refresher, nil, fetch.RefreshOptions{}, 0, nil, discardLogger())

	_, err := runner.RunOnce(context.Background())

	require.NoError(t, err)
	assert.False(t, refresher.gotDL)
}

func TestRunner_RunOnce_Failure(t *testing.T) {
	refresher := &stubRefresher{err: entity.ErrStorageUnavailable}
	metrics := NewWorkerMetricsWithRegistry(prometheus.NewRegistry())
	runner := NewRunner(refresher, nil, fetch.RefreshOptions{}, time.Minute, metrics, discardLogger())

	_, err := runner.RunOnce(context.Background())

	assert.ErrorIs(t, err, entity.ErrStorageUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshRunsTotal.WithLabelValues("failure")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RefreshRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RefreshLastSuccessTimestamp))
}

func TestRunner_RunOnce_SkipsOverlap(t *testing.T) {
	refresher := &stubRefresher{block: make(chan struct{}), started: make(chan struct{})}
	metrics := NewWorkerMetricsWithRegistry(prometheus.NewRegistry())
	runner := NewRunner(refresher, nil, fetch.RefreshOptions{}, 0, metrics, discardLogger())

	done := make(chan error, 1)
	go func() {
		_, err := runner.RunOnce(context.Background())
		done <- err
	}()
	<-refresher.started

	_, err := runner.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(refresher.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), refresher.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshRunsTotal.WithLabelValues("skipped")))
}

func TestRunner_Schedule(t *testing.T) {
	refresher := &stubRefresher{}
	runner := NewRunner(refresher, nil, fetch.RefreshOptions{}, 0, nil, discardLogger())
	c := NewScheduler(DefaultConfig(), discardLogger())

	id, err := runner.Schedule(context.Background(), c, "*/5 * * * *")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	// 登録済みのジョブを直接実行する
	c.Entry(id).Job.Run()
	assert.Equal(t, int32(1), refresher.calls.Load())

	_, err = runner.Schedule(context.Background(), c, "not a schedule")
	assert.Error(t, err)
}

func TestNewScheduler_InvalidTimezoneFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Nowhere/City"

	c := NewScheduler(cfg, discardLogger())

	assert.Equal(t, time.UTC, c.Location())
}
