/*
payroll.go - Payroll record lifecycle

PURPOSE:
  draft -> approved -> paid, no skipping. Amounts are decimals; a draft
  with a net amount above gross is rejected at validation time. paidAt
  is stamped on the final step only.
*/
package farm

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/acrefield/farm-engine/engine"
)

type PayrollService struct {
	deps
}

var draftPayrollShape = engine.Shape{
	Name: "draftPayroll",
	Fields: []engine.Field{
		{Name: "workerId", Kind: engine.KindString, Required: true, NonEmpty: true},
		{Name: "periodStart", Kind: engine.KindDate, Required: true},
		{Name: "periodEnd", Kind: engine.KindDate, Required: true},
		{Name: "grossAmount", Kind: engine.KindNumber, Required: true, Min: engine.Ptr(0.0)},
		{Name: "netAmount", Kind: engine.KindNumber, Required: true, Min: engine.Ptr(0.0)},
	},
}

// CreateDraft opens a payroll record for a worker and pay period.
func (s *PayrollService) CreateDraft(ctx context.Context, farmID engine.FarmID, caller engine.UserID, payload map[string]any) (*PayrollRecord, error) {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionDraftPayroll); err != nil {
		return nil, err
	}
	values, verr := draftPayrollShape.Validate(payload)
	if verr != nil {
		return nil, verr
	}

	gross := decimal.NewFromFloat(values.Number("grossAmount"))
	net := decimal.NewFromFloat(values.Number("netAmount"))
	var violations []engine.FieldViolation
	if net.GreaterThan(gross) {
		violations = append(violations, engine.FieldViolation{
			Field:      "netAmount",
			Constraint: "must not exceed grossAmount",
			Received:   net.String(),
		})
	}
	if values.Date("periodEnd").Before(values.Date("periodStart")) {
		violations = append(violations, engine.FieldViolation{
			Field:      "periodEnd",
			Constraint: "must not be before periodStart",
			Received:   values.String("periodEnd"),
		})
	}
	if len(violations) > 0 {
		return nil, &engine.ValidationError{Shape: "draftPayroll", Violations: violations}
	}

	now := s.clock.Now()
	p := PayrollRecord{
		ID:          newID("payroll"),
		FarmID:      farmID,
		WorkerID:    values.String("workerId"),
		PeriodStart: values.Date("periodStart"),
		PeriodEnd:   values.Date("periodEnd"),
		GrossAmount: gross,
		NetAmount:   net,
		Status:      engine.PayrollDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		w, err := tx.GetWorker(ctx, p.WorkerID)
		if err != nil {
			return err
		}
		if w.FarmID != farmID {
			return engine.ErrNotFound
		}
		return tx.InsertPayroll(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, farmID, caller, "draftPayroll", AuditAllow, p.ID)
	return &p, nil
}

// List returns payroll records matching the filter.
func (s *PayrollService) List(ctx context.Context, caller engine.UserID, f PayrollFilter) ([]PayrollRecord, error) {
	if _, err := s.authorize(ctx, f.FarmID, caller, engine.ActionViewReports); err != nil {
		return nil, err
	}
	return s.store.ListPayroll(ctx, f)
}

// Approve moves a draft record to approved.
func (s *PayrollService) Approve(ctx context.Context, farmID engine.FarmID, caller engine.UserID, recordID string) (*PayrollRecord, error) {
	return s.transition(ctx, farmID, caller, recordID, engine.PayrollApproved, engine.ActionApprovePayroll)
}

// MarkPaid moves an approved record to paid, stamping paidAt.
func (s *PayrollService) MarkPaid(ctx context.Context, farmID engine.FarmID, caller engine.UserID, recordID string) (*PayrollRecord, error) {
	return s.transition(ctx, farmID, caller, recordID, engine.PayrollPaid, engine.ActionPayPayroll)
}

func (s *PayrollService) transition(ctx context.Context, farmID engine.FarmID, caller engine.UserID, recordID string, target engine.Status, action engine.Action) (*PayrollRecord, error) {
	binding, err := s.authorize(ctx, farmID, caller, action)
	if err != nil {
		return nil, err
	}

	var out PayrollRecord
	err = s.transactRetry(ctx, func(tx Store) error {
		p, err := tx.GetPayroll(ctx, recordID)
		if err != nil {
			return err
		}
		if p.FarmID != farmID {
			return engine.ErrNotFound
		}

		stamps, err := engine.Decide(engine.TransitionRequest{
			Kind:       engine.KindPayroll,
			Current:    p.Status,
			Target:     target,
			Caller:     caller,
			CallerRole: binding.Role,
			At:         s.clock.Now(),
		})
		if err != nil {
			return err
		}

		out = *p
		out.Status = target
		out.UpdatedAt = s.clock.Now()
		if stamps.ApprovedBy != nil {
			out.ApprovedBy = stamps.ApprovedBy
			out.ApprovedAt = stamps.ApprovedAt
		}
		if stamps.PaidAt != nil {
			out.PaidAt = stamps.PaidAt
		}
		if err := tx.UpdatePayroll(ctx, out, p.Version); err != nil {
			return err
		}
		out.Version = p.Version + 1
		return nil
	})
	observeTransition(engine.KindPayroll, target, err)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, farmID, caller, string(action), AuditAllow, recordID)
	s.dispatch(ctx, farmID, caller, "payroll."+string(target), recordID, nil)
	return &out, nil
}
