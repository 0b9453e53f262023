// worker.go - Worker registry: hire, list, terminate (soft delete).
package farm

import (
	"context"

	"github.com/acrefield/farm-engine/engine"
	"github.com/shopspring/decimal"
)

type WorkerService struct {
	deps
}

var hireWorkerShape = engine.Shape{
	Name: "hireWorker",
	Fields: []engine.Field{
		{Name: "name", Kind: engine.KindString, Required: true, NonEmpty: true},
		{Name: "userId", Kind: engine.KindString},
		{Name: "hourlyRate", Kind: engine.KindNumber, Required: true, Min: engine.Ptr(0.0)},
	},
}

// Hire registers a worker on the farm. Manager+.
func (s *WorkerService) Hire(ctx context.Context, farmID engine.FarmID, caller engine.UserID, payload map[string]any) (*Worker, error) {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionManageWorkers); err != nil {
		return nil, err
	}
	values, verr := hireWorkerShape.Validate(payload)
	if verr != nil {
		return nil, verr
	}

	now := s.clock.Now()
	w := Worker{
		ID:         newID("worker"),
		FarmID:     farmID,
		UserID:     engine.UserID(values.String("userId")),
		Name:       values.String("name"),
		HourlyRate: decimal.NewFromFloat(values.Number("hourlyRate")),
		Status:     engine.WorkerActive,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}
	if err := s.store.InsertWorker(ctx, w); err != nil {
		return nil, err
	}

	s.audit(ctx, farmID, caller, "hireWorker", AuditAllow, w.ID)
	return &w, nil
}

// List returns the farm's workers, active and terminated.
func (s *WorkerService) List(ctx context.Context, farmID engine.FarmID, caller engine.UserID) ([]Worker, error) {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionViewFarm); err != nil {
		return nil, err
	}
	return s.store.ListWorkers(ctx, farmID)
}

// Terminate soft-deletes a worker via the status flag. Terminated is a
// terminal status: the record stays for payroll history but accepts no
// further transitions.
func (s *WorkerService) Terminate(ctx context.Context, farmID engine.FarmID, caller engine.UserID, workerID string) (*Worker, error) {
	binding, err := s.authorize(ctx, farmID, caller, engine.ActionManageWorkers)
	if err != nil {
		return nil, err
	}

	var out Worker
	err = s.transactRetry(ctx, func(tx Store) error {
		w, err := tx.GetWorker(ctx, workerID)
		if err != nil {
			return err
		}
		if w.FarmID != farmID {
			return engine.ErrNotFound
		}

		stamps, err := engine.Decide(engine.TransitionRequest{
			Kind:       engine.KindWorker,
			Current:    w.Status,
			Target:     engine.WorkerTerminated,
			Caller:     caller,
			CallerRole: binding.Role,
			At:         s.clock.Now(),
		})
		if err != nil {
			return err
		}

		out = *w
		out.Status = engine.WorkerTerminated
		out.TerminatedAt = stamps.CancelledAt
		out.UpdatedAt = s.clock.Now()
		if err := tx.UpdateWorker(ctx, out, w.Version); err != nil {
			return err
		}
		out.Version = w.Version + 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, farmID, caller, "terminateWorker", AuditAllow, workerID)
	s.dispatch(ctx, farmID, caller, "worker.terminated", workerID, nil)
	return &out, nil
}

func (w *Worker) Active() bool { return w.Status == engine.WorkerActive }
