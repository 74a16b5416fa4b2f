package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	"meridian/internal/domain/repositories"
	"meridian/internal/domain/services/flowengine"
	jobdomain "meridian/internal/domain/services/job"
)

// Reconciler implements jobdomain.Reconciler: a timer-driven pass that
// finds flows whose heartbeat has lapsed and transitions their owning
// units to failed/stalled, per spec.md §4.5.
type Reconciler struct {
	Runs    repositories.FlowRunRepository
	Units   repositories.UnitRepository
	Runtime flowengine.FlowRuntime

	StallTimeoutSeconds  int
	ReconcileIntervalSec int
	Logger               *slog.Logger
}

var _ jobdomain.Reconciler = (*Reconciler)(nil)

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Reconciler) stallTimeout() int {
	if r.StallTimeoutSeconds > 0 {
		return r.StallTimeoutSeconds
	}
	return 300
}

// Tick runs one reconciliation pass.
func (r *Reconciler) Tick(ctx context.Context) (int, error) {
	stalled, err := r.Runs.ListStalled(ctx, r.stallTimeout())
	if err != nil {
		return 0, err
	}

	count := 0
	for _, run := range stalled {
		if run.IsTerminal() {
			continue
		}

		stalledMsg := "stalled"
		if err := r.Runtime.Complete(ctx, run.ID, "failed", &stalledMsg); err != nil {
			r.logger().Error("job reconciler: complete stalled flow", "error", err, "flow_run_id", run.ID)
			continue
		}
		if err := r.Runtime.Cancel(ctx, run.ID); err != nil {
			r.logger().Error("job reconciler: cancel stalled flow", "error", err, "flow_run_id", run.ID)
		}

		unit, err := r.Units.GetByFlowRunID(ctx, run.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				r.logger().Error("job reconciler: find unit for stalled flow", "error", err, "flow_run_id", run.ID)
			}
			continue
		}
		if unit.Status == models.UnitCompleted || unit.Status == models.UnitFailed {
			continue
		}
		unit.Status = models.UnitFailed
		unit.ErrorMessage = &stalledMsg
		if err := r.Units.Update(ctx, unit); err != nil {
			r.logger().Error("job reconciler: mark unit stalled", "error", err, "unit_id", unit.ID)
			continue
		}
		count++
	}
	return count, nil
}

// Run starts a timer-driven loop calling Tick until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	interval := r.ReconcileIntervalSec
	if interval <= 0 {
		interval = 60
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := r.Tick(ctx)
			if err != nil {
				r.logger().Error("job reconciler: tick", "error", err)
				continue
			}
			if count > 0 {
				r.logger().Info("job reconciler: stalled flows reconciled", "count", count)
			}
		}
	}
}
