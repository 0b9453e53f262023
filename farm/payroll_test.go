package farm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acrefield/farm-engine/engine"
	"github.com/acrefield/farm-engine/farm"
)

func draftPayroll(t *testing.T, fx *fixture) *farm.PayrollRecord {
	t.Helper()
	p, err := fx.svc.Payroll.CreateDraft(context.Background(), fx.farmID, ownerUser, map[string]any{
		"workerId":    fx.workerID,
		"periodStart": "2026-04-01",
		"periodEnd":   "2026-04-15",
		"grossAmount": 1480.0,
		"netAmount":   1184.0,
	})
	require.NoError(t, err)
	return p
}

func TestPayroll_NetAboveGrossRejected(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Payroll.CreateDraft(context.Background(), fx.farmID, ownerUser, map[string]any{
		"workerId":    fx.workerID,
		"periodStart": "2026-04-01",
		"periodEnd":   "2026-04-15",
		"grossAmount": 1000.0,
		"netAmount":   1200.0,
	})

	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "netAmount", verr.Violations[0].Field)
}

func TestPayroll_LifecycleNoSkipping(t *testing.T) {
	// draft -> paid directly is illegal; the approval step cannot be skipped.

	fx := newFixture(t)
	ctx := context.Background()
	p := draftPayroll(t, fx)

	_, err := fx.svc.Payroll.MarkPaid(ctx, fx.farmID, ownerUser, p.ID)
	require.ErrorIs(t, err, engine.ErrIllegalTransition)

	approved, err := fx.svc.Payroll.Approve(ctx, fx.farmID, managerUser, p.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.PayrollApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, managerUser, *approved.ApprovedBy)
	assert.Nil(t, approved.PaidAt)

	paid, err := fx.svc.Payroll.MarkPaid(ctx, fx.farmID, ownerUser, p.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.PayrollPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, fx.clock.At, *paid.PaidAt)
	assert.Equal(t, int64(3), paid.Version)

	// Paid is terminal.
	_, err = fx.svc.Payroll.Approve(ctx, fx.farmID, ownerUser, p.ID)
	assert.ErrorIs(t, err, engine.ErrIllegalTransition)
}

func TestPayroll_ViewerCannotDraft(t *testing.T) {
	// Drafting sits at the worker level so accountants can prepare records,
	// but read-only members cannot.

	fx := newFixture(t)

	_, err := fx.svc.Payroll.CreateDraft(context.Background(), fx.farmID, viewerUser, map[string]any{
		"workerId":    fx.workerID,
		"periodStart": "2026-04-01",
		"periodEnd":   "2026-04-15",
		"grossAmount": 100.0,
		"netAmount":   90.0,
	})

	assert.ErrorIs(t, err, engine.ErrInsufficientRole)
}
