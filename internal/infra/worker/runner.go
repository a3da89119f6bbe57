package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"newsbot/internal/domain/entity"
	"newsbot/internal/usecase/fetch"
)

// ErrRunInProgress is returned by RunOnce when the previous run has not finished.
var ErrRunInProgress = errors.New("refresh already in progress")

// Refresher runs one refresh over a set of sources.
type Refresher interface {
	Refresh(ctx context.Context, sources []entity.Source, opts fetch.RefreshOptions) (fetch.Report, error)
}

// Runner drives scheduled refreshes. At most one refresh runs at a time; a
// tick that arrives while one is running is skipped.
type Runner struct {
	refresher Refresher
	sources   []entity.Source
	opts      fetch.RefreshOptions
	deadline  time.Duration
	metrics   *WorkerMetrics
	logger    *slog.Logger
	running   atomic.Bool
}

// NewRunner creates a Runner. deadline bounds each whole refresh; zero means
// no deadline. metrics may be nil.
func NewRunner(refresher Refresher, sources []entity.Source, opts fetch.RefreshOptions,
	deadline time.Duration, metrics *WorkerMetrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		refresher: refresher,
		sources:   sources,
		opts:      opts,
		deadline:  deadline,
		metrics:   metrics,
		logger:    logger,
	}
}

// RunOnce performs one refresh under the configured deadline.
func (r *Runner) RunOnce(ctx context.Context) (fetch.Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Warn("refresh skipped, previous run still in progress")
		r.record(func(m *WorkerMetrics) { m.RecordRun("skipped") })
		return fetch.Report{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	start := time.Now()
	r.record(func(m *WorkerMetrics) { m.RecordRun("started") })

	if r.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.deadline)
		defer cancel()
	}

	report, err := r.refresher.Refresh(ctx, r.sources, r.opts)
	elapsed := time.Since(start)
	if err != nil {
		r.logger.Error("refresh failed", slog.Any("error", err), slog.Duration("duration", elapsed))
		r.record(func(m *WorkerMetrics) {
			m.RecordRun("failure")
			m.RecordDuration(elapsed.Seconds())
		})
		return report, err
	}

	fresh, stale, empty := report.Counts()
	r.record(func(m *WorkerMetrics) {
		m.RecordRun("success")
		m.RecordDuration(elapsed.Seconds())
		m.RecordSources(fresh, stale, empty)
		m.RecordLastSuccess()
	})
	return report, nil
}

// Schedule registers the runner on c. Every tick runs under ctx.
func (r *Runner) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		// エラーは RunOnce 内でログ済み
		_, _ = r.RunOnce(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("schedule refresh %q: %w", spec, err)
	}
	return id, nil
}

// NewScheduler returns a cron scheduler evaluated in cfg.Timezone. An invalid
// timezone falls back to UTC.
func NewScheduler(cfg WorkerConfig, logger *slog.Logger) *cron.Cron {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	return cron.New(cron.WithLocation(loc))
}

func (r *Runner) record(fn func(m *WorkerMetrics)) {
	if r.metrics != nil {
		fn(r.metrics)
	}
}
