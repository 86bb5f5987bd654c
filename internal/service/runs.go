package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"harvester/internal/model"
)

type RunRepository interface {
	CreateRun(run *model.Run)
	GetRun(id string) (*model.Run, error)
	UpdateRun(id string, update func(*model.Run)) error
}

type PageRepository interface {
	AddPage(page model.PageRecord)
	GetPagesByRunID(runID string) []model.PageRecord
}

// runTracker moves run records through their statuses.
type runTracker struct {
	runs   RunRepository
	logger *slog.Logger
}

func (t runTracker) create(kind model.RunKind) *model.Run {
	run := &model.Run{
		ID:     uuid.New().String(),
		Kind:   kind,
		Status: model.RunStatusPending,
	}
	t.runs.CreateRun(run)
	return run
}

func (t runTracker) start(run *model.Run) {
	run.Status = model.RunStatusRunning
	t.update(run.ID, func(r *model.Run) { r.Status = model.RunStatusRunning })
}

func (t runTracker) finish(run *model.Run, summary any, err error) {
	status := model.RunStatusCompleted
	msg := ""
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = model.RunStatusCancelled
		msg = err.Error()
	case err != nil:
		status = model.RunStatusFailed
		msg = err.Error()
	}
	run.Status = status
	run.Error = msg
	run.Summary = summary
	t.update(run.ID, func(r *model.Run) {
		r.Status = status
		r.Error = msg
		r.Summary = summary
	})
	t.logger.Info("run finished", "run_id", run.ID, "kind", run.Kind, "status", status)
}

func (t runTracker) update(id string, fn func(*model.Run)) {
	if err := t.runs.UpdateRun(id, fn); err != nil {
		t.logger.Error("update run", "run_id", id, "error", err)
	}
}
