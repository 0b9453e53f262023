/*
timeoff.go - Time-off request lifecycle

PURPOSE:
  pending -> approved | rejected. Approval and rejection are manager+
  actions; rejection requires a non-empty reason; both final states are
  terminal. A second approve on the same request fails with
  IllegalTransition and never re-stamps approvedAt, even when the two
  calls race: the read-decide-write runs under a version check.
*/
package farm

import (
	"context"

	"github.com/acrefield/farm-engine/engine"
)

type TimeOffService struct {
	deps
}

var requestTimeOffShape = engine.Shape{
	Name: "requestTimeOff",
	Fields: []engine.Field{
		{Name: "workerId", Kind: engine.KindString, Required: true, NonEmpty: true},
		{Name: "from", Kind: engine.KindDate, Required: true},
		{Name: "to", Kind: engine.KindDate, Required: true},
		{Name: "reason", Kind: engine.KindString, Required: true, NonEmpty: true},
	},
}

var rejectTimeOffShape = engine.Shape{
	Name: "rejectTimeOff",
	Fields: []engine.Field{
		{Name: "reason", Kind: engine.KindString, Required: true, NonEmpty: true},
	},
}

// Request files a time-off request in the pending state. Workers may only
// request for their own worker record; managers may file for anyone.
func (s *TimeOffService) Request(ctx context.Context, farmID engine.FarmID, caller engine.UserID, payload map[string]any) (*TimeOffRequest, error) {
	binding, err := s.authorize(ctx, farmID, caller, engine.ActionRequestTimeOff)
	if err != nil {
		return nil, err
	}
	values, verr := requestTimeOffShape.Validate(payload)
	if verr != nil {
		return nil, verr
	}

	from, to := values.Date("from"), values.Date("to")
	if to.Before(from) {
		return nil, &engine.ValidationError{
			Shape: "requestTimeOff",
			Violations: []engine.FieldViolation{
				{Field: "to", Constraint: "must not be before from", Received: values.String("to")},
			},
		}
	}

	now := s.clock.Now()
	r := TimeOffRequest{
		ID:        newID("timeoff"),
		FarmID:    farmID,
		WorkerID:  values.String("workerId"),
		From:      from,
		To:        to,
		Reason:    values.String("reason"),
		Status:    engine.TimeOffPending,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		w, err := tx.GetWorker(ctx, r.WorkerID)
		if err != nil {
			return err
		}
		if w.FarmID != farmID || !w.Active() {
			return engine.ErrNotFound
		}
		// Workers file for themselves only.
		if !binding.Role.AtLeast(engine.RoleManager) && w.UserID != caller {
			return &engine.InsufficientRoleError{
				Action:   engine.ActionRequestTimeOff,
				Held:     binding.Role,
				Required: engine.RoleManager,
			}
		}
		return tx.InsertTimeOff(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, farmID, caller, "requestTimeOff", AuditAllow, r.ID)
	s.dispatch(ctx, farmID, caller, "timeoff.requested", r.ID, map[string]string{"worker": r.WorkerID})
	return &r, nil
}

// List returns requests matching the filter.
func (s *TimeOffService) List(ctx context.Context, caller engine.UserID, f TimeOffFilter) ([]TimeOffRequest, error) {
	if _, err := s.authorize(ctx, f.FarmID, caller, engine.ActionViewFarm); err != nil {
		return nil, err
	}
	return s.store.ListTimeOff(ctx, f)
}

// ListPending returns the approval queue for a farm.
func (s *TimeOffService) ListPending(ctx context.Context, farmID engine.FarmID, caller engine.UserID) ([]TimeOffRequest, error) {
	return s.List(ctx, caller, TimeOffFilter{FarmID: farmID, Status: engine.TimeOffPending})
}

// Approve moves a pending request to approved, stamping approvedBy and
// approvedAt exactly once.
func (s *TimeOffService) Approve(ctx context.Context, farmID engine.FarmID, caller engine.UserID, requestID string) (*TimeOffRequest, error) {
	return s.transition(ctx, farmID, caller, requestID, engine.TimeOffApproved, engine.ActionApproveTimeOff, "")
}

// Reject moves a pending request to rejected. The reason is mandatory.
func (s *TimeOffService) Reject(ctx context.Context, farmID engine.FarmID, caller engine.UserID, requestID, reason string) (*TimeOffRequest, error) {
	return s.transition(ctx, farmID, caller, requestID, engine.TimeOffRejected, engine.ActionRejectTimeOff, reason)
}

func (s *TimeOffService) transition(ctx context.Context, farmID engine.FarmID, caller engine.UserID, requestID string, target engine.Status, action engine.Action, reason string) (*TimeOffRequest, error) {
	binding, err := s.authorize(ctx, farmID, caller, action)
	if err != nil {
		return nil, err
	}

	if target == engine.TimeOffRejected {
		if _, verr := rejectTimeOffShape.Validate(map[string]any{"reason": reason}); verr != nil {
			return nil, verr
		}
	}

	var out TimeOffRequest
	err = s.transactRetry(ctx, func(tx Store) error {
		r, err := tx.GetTimeOff(ctx, requestID)
		if err != nil {
			return err
		}
		if r.FarmID != farmID {
			return engine.ErrNotFound
		}

		stamps, err := engine.Decide(engine.TransitionRequest{
			Kind:       engine.KindTimeOff,
			Current:    r.Status,
			Target:     target,
			Caller:     caller,
			CallerRole: binding.Role,
			Reason:     reason,
			At:         s.clock.Now(),
		})
		if err != nil {
			return err
		}

		out = *r
		out.Status = target
		out.UpdatedAt = s.clock.Now()
		out.ApprovedBy = stamps.ApprovedBy
		if stamps.ApprovedAt != nil {
			out.ApprovedAt = stamps.ApprovedAt
		}
		if stamps.RejectionReason != nil {
			out.RejectionReason = stamps.RejectionReason
		}
		if err := tx.UpdateTimeOff(ctx, out, r.Version); err != nil {
			return err
		}
		out.Version = r.Version + 1
		return nil
	})
	observeTransition(engine.KindTimeOff, target, err)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, farmID, caller, string(action), AuditAllow, requestID)
	s.dispatch(ctx, farmID, caller, "timeoff."+string(target), requestID, nil)
	return &out, nil
}
