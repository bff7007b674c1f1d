// Package jobs contains background workers that run on a schedule.
// The pipeline job periodically collects, cleans and pushes side events.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/event-scraper/event-scraper/internal/safego"
)

// ErrRunInProgress is returned by TriggerRun while another run is active.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Runner is the unit of work a PipelineJob schedules.
type Runner interface {
	Run(ctx context.Context) error
}

// PipelineJob runs a Runner on a fixed interval
type PipelineJob struct {
	runner Runner

	running   bool
	runningMu sync.Mutex
	lastErr   error
	lastRun   time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPipelineJob creates a new pipeline job
func NewPipelineJob(runner Runner) *PipelineJob {
	return &PipelineJob{
		runner: runner,
		stopCh: make(chan struct{}),
	}
}

// Start begins the periodic job. The first run starts immediately.
func (j *PipelineJob) Start(ctx context.Context, interval time.Duration) {
	slog.Info("starting pipeline job", "interval", interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		j.runScheduled(ctx)

		for {
			select {
			case <-ticker.C:
				j.runScheduled(ctx)
			case <-j.stopCh:
				slog.Info("pipeline job stopped")
				return
			case <-ctx.Done():
				slog.Info("pipeline job context cancelled")
				return
			}
		}
	}()
}

// Stop stops the job and waits for an in-flight run to finish
func (j *PipelineJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
	j.wg.Wait()
}

func (j *PipelineJob) runScheduled(ctx context.Context) {
	if err := j.TriggerRun(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			slog.Warn("skipping scheduled pipeline run, previous run still active")
			return
		}
		slog.Error("scheduled pipeline run failed", "error", err)
	}
}

// TriggerRun runs the pipeline synchronously unless a run is already active.
func (j *PipelineJob) TriggerRun(ctx context.Context) error {
	j.runningMu.Lock()
	if j.running {
		j.runningMu.Unlock()
		return ErrRunInProgress
	}
	j.running = true
	j.runningMu.Unlock()

	start := time.Now()
	err := safego.Run("pipeline-job", func() error { return j.runner.Run(ctx) })

	j.runningMu.Lock()
	j.running = false
	j.lastErr = err
	j.lastRun = start
	j.runningMu.Unlock()

	if err == nil {
		slog.Info("pipeline run finished", "duration", time.Since(start))
	}
	return err
}

// Status reports whether a run is active and the outcome of the last one.
func (j *PipelineJob) Status() (running bool, lastRun time.Time, lastErr error) {
	j.runningMu.Lock()
	defer j.runningMu.Unlock()
	return j.running, j.lastRun, j.lastErr
}
