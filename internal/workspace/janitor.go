package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Janitor runs Manager.Sweep on a cron schedule.
type Janitor struct {
	cron   *cron.Cron
	mgr    *Manager
	age    time.Duration
	logger *zap.Logger
}

// NewJanitor validates schedule (standard cron spec or descriptor such as "@every 15m").
func NewJanitor(mgr *Manager, schedule string, age time.Duration, logger *zap.Logger) (*Janitor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Janitor{cron: cron.New(), mgr: mgr, age: age, logger: logger}
	if _, err := j.cron.AddFunc(schedule, j.RunOnce); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	return j, nil
}

// RunOnce performs a single sweep and logs the outcome.
func (j *Janitor) RunOnce() {
	start := time.Now()
	n, err := j.mgr.Sweep(j.age)
	if err != nil {
		j.logger.Error("workspace_sweep",
			zap.String("component", "workspace"),
			zap.String("status", "error"),
			zap.Error(err),
		)
		return
	}
	j.logger.Info("workspace_sweep",
		zap.String("component", "workspace"),
		zap.String("status", "ok"),
		zap.Int("removed", n),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

// Run starts the schedule and blocks until ctx is done, then waits for a running
// sweep to finish.
func (j *Janitor) Run(ctx context.Context) error {
	j.cron.Start()
	<-ctx.Done()
	<-j.cron.Stop().Done()
	return nil
}
