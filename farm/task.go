/*
task.go - Task assignments and efficiency tracking

PURPOSE:
  pending -> in_progress -> completed, with cancellation from either
  non-terminal state. Completion takes the actual hours, derives the
  efficiency percentage from the estimate, caches it on the task, and
  when the figure falls below threshold inserts an alert in the same
  transaction so the task update and the alert land together.
*/
package farm

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/acrefield/farm-engine/engine"
	"github.com/acrefield/farm-engine/metrics"
)

type TaskService struct {
	deps
}

var assignTaskShape = engine.Shape{
	Name: "assignTask",
	Fields: []engine.Field{
		{Name: "workerId", Kind: engine.KindString, Required: true, NonEmpty: true},
		{Name: "title", Kind: engine.KindString, Required: true, NonEmpty: true},
		{Name: "description", Kind: engine.KindString},
		{Name: "estimatedHours", Kind: engine.KindNumber, Required: true, Min: engine.Ptr(0.25), Max: engine.Ptr(200.0)},
	},
}

var completeTaskShape = engine.Shape{
	Name: "completeTask",
	Fields: []engine.Field{
		{Name: "actualHours", Kind: engine.KindNumber, Required: true},
	},
}

// Assign creates a pending task for an active worker of the farm.
func (s *TaskService) Assign(ctx context.Context, farmID engine.FarmID, caller engine.UserID, payload map[string]any) (*TaskAssignment, error) {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionAssignTask); err != nil {
		return nil, err
	}
	values, verr := assignTaskShape.Validate(payload)
	if verr != nil {
		return nil, verr
	}

	now := s.clock.Now()
	t := TaskAssignment{
		ID:             newID("task"),
		FarmID:         farmID,
		WorkerID:       values.String("workerId"),
		Title:          values.String("title"),
		Description:    values.String("description"),
		EstimatedHours: decimal.NewFromFloat(values.Number("estimatedHours")),
		Status:         engine.TaskPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		w, err := tx.GetWorker(ctx, t.WorkerID)
		if err != nil {
			return err
		}
		if w.FarmID != farmID || !w.Active() {
			return engine.ErrNotFound
		}
		return tx.InsertTask(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, farmID, caller, "assignTask", AuditAllow, t.ID)
	s.dispatch(ctx, farmID, caller, "task.assigned", t.ID, map[string]string{"worker": t.WorkerID})
	return &t, nil
}

// List returns tasks matching the filter.
func (s *TaskService) List(ctx context.Context, caller engine.UserID, f TaskFilter) ([]TaskAssignment, error) {
	if _, err := s.authorize(ctx, f.FarmID, caller, engine.ActionViewFarm); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, f)
}

// Start moves a pending task to in_progress. The assigned worker may
// start their own task; managers may start any.
func (s *TaskService) Start(ctx context.Context, farmID engine.FarmID, caller engine.UserID, taskID string) (*TaskAssignment, error) {
	return s.transition(ctx, farmID, caller, taskID, engine.TaskInProgress, engine.ActionStartTask, nil)
}

// Complete finishes an in_progress task, recording the hours actually
// worked and the derived efficiency percentage. When efficiency lands
// below the alert threshold an alert row is written in the same
// transaction as the task.
func (s *TaskService) Complete(ctx context.Context, farmID engine.FarmID, caller engine.UserID, taskID string, actualHours float64) (*TaskAssignment, error) {
	if _, verr := completeTaskShape.Validate(map[string]any{"actualHours": actualHours}); verr != nil {
		return nil, verr
	}
	actual := decimal.NewFromFloat(actualHours)
	return s.transition(ctx, farmID, caller, taskID, engine.TaskCompleted, engine.ActionCompleteTask, &actual)
}

// Cancel abandons a task from either non-terminal state.
func (s *TaskService) Cancel(ctx context.Context, farmID engine.FarmID, caller engine.UserID, taskID string) (*TaskAssignment, error) {
	return s.transition(ctx, farmID, caller, taskID, engine.TaskCancelled, engine.ActionCancelTask, nil)
}

func (s *TaskService) transition(ctx context.Context, farmID engine.FarmID, caller engine.UserID, taskID string, target engine.Status, action engine.Action, actual *decimal.Decimal) (*TaskAssignment, error) {
	binding, err := s.authorize(ctx, farmID, caller, action)
	if err != nil {
		return nil, err
	}

	var out TaskAssignment
	var alert *Alert
	err = s.transactRetry(ctx, func(tx Store) error {
		alert = nil

		t, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t.FarmID != farmID {
			return engine.ErrNotFound
		}

		var assignee engine.UserID
		if w, err := tx.GetWorker(ctx, t.WorkerID); err == nil {
			assignee = w.UserID
		}

		stamps, err := engine.Decide(engine.TransitionRequest{
			Kind:       engine.KindTask,
			Current:    t.Status,
			Target:     target,
			Caller:     caller,
			CallerRole: binding.Role,
			AssigneeID: assignee,
			At:         s.clock.Now(),
		})
		if err != nil {
			return err
		}

		out = *t
		out.Status = target
		out.UpdatedAt = s.clock.Now()
		if stamps.CompletedAt != nil {
			out.CompletedAt = stamps.CompletedAt
		}
		if stamps.CancelledAt != nil {
			out.CancelledAt = stamps.CancelledAt
		}

		if target == engine.TaskCompleted {
			pct, err := engine.Efficiency(engine.Hours{Value: t.EstimatedHours}, engine.Hours{Value: *actual})
			if err != nil {
				return err
			}
			out.ActualHours = actual
			out.EfficiencyPct = &pct

			if severity, ok := engine.EfficiencyAlert(pct); ok {
				a := Alert{
					ID:        newID("alert"),
					FarmID:    farmID,
					WorkerID:  t.WorkerID,
					TaskID:    t.ID,
					Severity:  severity,
					Metric:    "efficiency",
					Value:     pct,
					Message:   fmt.Sprintf("task %q completed at %s%% efficiency", t.Title, pct.String()),
					CreatedAt: s.clock.Now(),
				}
				if err := tx.InsertAlert(ctx, a); err != nil {
					return err
				}
				alert = &a
			}
		}

		if err := tx.UpdateTask(ctx, out, t.Version); err != nil {
			return err
		}
		out.Version = t.Version + 1
		return nil
	})
	observeTransition(engine.KindTask, target, err)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, farmID, caller, string(action), AuditAllow, taskID)
	s.dispatch(ctx, farmID, caller, "task."+string(target), taskID, nil)
	if alert != nil {
		metrics.ObserveAlert(string(alert.Severity))
		s.log.Warn("efficiency below threshold",
			zap.String("farm_id", string(farmID)),
			zap.String("task", taskID),
			zap.String("worker", alert.WorkerID),
			zap.String("severity", string(alert.Severity)),
			zap.String("efficiency_pct", alert.Value.String()),
		)
		s.dispatch(ctx, farmID, caller, "alert.efficiency", alert.ID, map[string]string{
			"severity": string(alert.Severity),
			"task":     taskID,
		})
	}
	return &out, nil
}
