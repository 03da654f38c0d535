// Package scheduler wires up the cron job that runs the daily collection.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"editalwatch/collector-service/internal/model"
	"editalwatch/collector-service/internal/pipeline"
)

// Runner is the slice of the collector the scheduler drives.
type Runner interface {
	Run(ctx context.Context, progress pipeline.ProgressFunc) ([]model.CallRecord, error)
}

// Scheduler wraps robfig/cron and fires one collection run per day.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string // cron spec, e.g. "0 6 * * *"
	log    *zap.Logger
}

// New creates a Scheduler that fires daily at the given hour.
func New(runner Runner, hour int, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		spec:   fmt.Sprintf("0 %d * * *", hour),
		log:    log,
	}
}

// Start registers the job and starts the scheduler. Collection does not
// run at startup; the first run waits for the next tick or a manual
// trigger through the API.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.log.Info("scheduled collection started")
	records, err := s.runner.Run(ctx, nil)
	if err != nil {
		s.log.Warn("scheduled collection aborted", zap.Error(err))
		return
	}
	s.log.Info("scheduled collection complete", zap.Int("new", len(records)))
}
