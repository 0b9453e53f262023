/*
shift.go - Shift lifecycle

PURPOSE:
  scheduled -> pending_approval -> confirmed -> completed, with manager
  cancellation from pending_approval/confirmed. Scheduling is a manager
  action; submission and completion may be done by the assigned worker.

Every transition re-reads the shift inside the transaction and writes
with a version check, so two racing mutations on the same shift resolve
to exactly one winner.
*/
package farm

import (
	"context"

	"github.com/acrefield/farm-engine/engine"
	"github.com/shopspring/decimal"
)

type ShiftService struct {
	deps
}

var scheduleShiftShape = engine.Shape{
	Name: "scheduleShift",
	Fields: []engine.Field{
		{Name: "workerId", Kind: engine.KindString, Required: true, NonEmpty: true},
		{Name: "date", Kind: engine.KindDate, Required: true},
		{Name: "hours", Kind: engine.KindNumber, Required: true, Min: engine.Ptr(0.5), Max: engine.Ptr(16.0)},
		{Name: "duty", Kind: engine.KindEnum, Required: true, Enum: []string{"harvest", "planting", "irrigation", "livestock", "maintenance"}},
		{Name: "notes", Kind: engine.KindString},
	},
}

// Schedule creates a shift in the scheduled state.
func (s *ShiftService) Schedule(ctx context.Context, farmID engine.FarmID, caller engine.UserID, payload map[string]any) (*Shift, error) {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionScheduleShift); err != nil {
		return nil, err
	}
	values, verr := scheduleShiftShape.Validate(payload)
	if verr != nil {
		return nil, verr
	}

	now := s.clock.Now()
	sh := Shift{
		ID:        newID("shift"),
		FarmID:    farmID,
		WorkerID:  values.String("workerId"),
		Date:      values.Date("date"),
		Hours:     decimal.NewFromFloat(values.Number("hours")),
		Duty:      values.String("duty"),
		Notes:     values.String("notes"),
		Status:    engine.ShiftScheduled,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		w, err := tx.GetWorker(ctx, sh.WorkerID)
		if err != nil {
			return err
		}
		if w.FarmID != farmID || !w.Active() {
			return engine.ErrNotFound
		}
		return tx.InsertShift(ctx, sh)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, farmID, caller, "scheduleShift", AuditAllow, sh.ID)
	return &sh, nil
}

// List returns shifts matching the filter. The farm id in the filter is
// authoritative; callers cannot list across tenants.
func (s *ShiftService) List(ctx context.Context, caller engine.UserID, f ShiftFilter) ([]Shift, error) {
	if _, err := s.authorize(ctx, f.FarmID, caller, engine.ActionViewFarm); err != nil {
		return nil, err
	}
	return s.store.ListShifts(ctx, f)
}

// Submit moves a scheduled shift to pending_approval.
func (s *ShiftService) Submit(ctx context.Context, farmID engine.FarmID, caller engine.UserID, shiftID string) (*Shift, error) {
	return s.transition(ctx, farmID, caller, shiftID, engine.ShiftPendingApproval, engine.ActionSubmitShift, "")
}

// Confirm approves a pending shift. Manager+.
func (s *ShiftService) Confirm(ctx context.Context, farmID engine.FarmID, caller engine.UserID, shiftID string) (*Shift, error) {
	return s.transition(ctx, farmID, caller, shiftID, engine.ShiftConfirmed, engine.ActionConfirmShift, "")
}

// Complete marks a confirmed shift worked.
func (s *ShiftService) Complete(ctx context.Context, farmID engine.FarmID, caller engine.UserID, shiftID string) (*Shift, error) {
	return s.transition(ctx, farmID, caller, shiftID, engine.ShiftCompleted, engine.ActionCompleteShift, "")
}

// Cancel is the soft delete for shifts. Manager+.
func (s *ShiftService) Cancel(ctx context.Context, farmID engine.FarmID, caller engine.UserID, shiftID, reason string) (*Shift, error) {
	return s.transition(ctx, farmID, caller, shiftID, engine.ShiftCancelled, engine.ActionCancelShift, reason)
}

func (s *ShiftService) transition(ctx context.Context, farmID engine.FarmID, caller engine.UserID, shiftID string, target engine.Status, action engine.Action, reason string) (*Shift, error) {
	binding, err := s.authorize(ctx, farmID, caller, action)
	if err != nil {
		return nil, err
	}

	var out Shift
	err = s.transactRetry(ctx, func(tx Store) error {
		sh, err := tx.GetShift(ctx, shiftID)
		if err != nil {
			return err
		}
		if sh.FarmID != farmID {
			return engine.ErrNotFound
		}

		// The shift's assignee is the worker's linked user, if any.
		var assignee engine.UserID
		if w, err := tx.GetWorker(ctx, sh.WorkerID); err == nil {
			assignee = w.UserID
		}

		stamps, err := engine.Decide(engine.TransitionRequest{
			Kind:       engine.KindShift,
			Current:    sh.Status,
			Target:     target,
			Caller:     caller,
			CallerRole: binding.Role,
			AssigneeID: assignee,
			Reason:     reason,
			At:         s.clock.Now(),
		})
		if err != nil {
			return err
		}

		out = *sh
		out.Status = target
		out.UpdatedAt = s.clock.Now()
		if stamps.ApprovedBy != nil {
			out.ApprovedBy = stamps.ApprovedBy
			out.ApprovedAt = stamps.ApprovedAt
		}
		if stamps.CompletedAt != nil {
			out.CompletedAt = stamps.CompletedAt
		}
		if stamps.CancelledAt != nil {
			out.CancelledAt = stamps.CancelledAt
		}
		if err := tx.UpdateShift(ctx, out, sh.Version); err != nil {
			return err
		}
		out.Version = sh.Version + 1
		return nil
	})
	observeTransition(engine.KindShift, target, err)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, farmID, caller, string(action), AuditAllow, shiftID)
	s.dispatch(ctx, farmID, caller, "shift."+string(target), shiftID, nil)
	return &out, nil
}
