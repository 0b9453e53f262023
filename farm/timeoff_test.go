package farm_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acrefield/farm-engine/engine"
	"github.com/acrefield/farm-engine/farm"
)

func requestTimeOff(t *testing.T, fx *fixture, caller engine.UserID) *farm.TimeOffRequest {
	t.Helper()
	r, err := fx.svc.TimeOff.Request(context.Background(), fx.farmID, caller, map[string]any{
		"workerId": fx.workerID,
		"from":     "2026-04-20",
		"to":       "2026-04-22",
		"reason":   "family visit",
	})
	require.NoError(t, err)
	return r
}

func TestTimeOff_WorkerRequestsForSelf(t *testing.T) {
	fx := newFixture(t)

	r := requestTimeOff(t, fx, workerUser)

	assert.Equal(t, engine.TimeOffPending, r.Status)
	assert.Equal(t, int64(1), r.Version)
	assert.Nil(t, r.ApprovedAt)
}

func TestTimeOff_WorkerCannotRequestForAnother(t *testing.T) {
	// GIVEN: A second worker record not linked to workerUser
	// WHEN: workerUser files time off for it
	// THEN: Denied; only managers file on behalf of others

	fx := newFixture(t)
	ctx := context.Background()

	other, err := fx.svc.Workers.Hire(ctx, fx.farmID, managerUser, map[string]any{
		"name": "Sam Rowe", "hourlyRate": 16.0,
	})
	require.NoError(t, err)

	_, err = fx.svc.TimeOff.Request(ctx, fx.farmID, workerUser, map[string]any{
		"workerId": other.ID, "from": "2026-04-20", "to": "2026-04-21", "reason": "x",
	})

	assert.ErrorIs(t, err, engine.ErrInsufficientRole)
}

func TestTimeOff_ApproveStampsExactlyOnce(t *testing.T) {
	// GIVEN: A pending request approved by a manager
	// WHEN: A second approval arrives for the same request
	// THEN: The second call fails with IllegalTransition and the stored
	//       approvedBy/approvedAt are untouched

	fx := newFixture(t)
	ctx := context.Background()
	r := requestTimeOff(t, fx, workerUser)

	first, err := fx.svc.TimeOff.Approve(ctx, fx.farmID, managerUser, r.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ApprovedBy)
	require.NotNil(t, first.ApprovedAt)
	assert.Equal(t, managerUser, *first.ApprovedBy)
	assert.Equal(t, int64(2), first.Version)

	_, err = fx.svc.TimeOff.Approve(ctx, fx.farmID, ownerUser, r.ID)
	require.ErrorIs(t, err, engine.ErrIllegalTransition)

	var illegal *engine.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, engine.TimeOffApproved, illegal.Current)
	assert.Equal(t, engine.TimeOffApproved, illegal.Attempted)

	stored, err := fx.svc.TimeOff.List(ctx, managerUser, farm.TimeOffFilter{FarmID: fx.farmID})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, managerUser, *stored[0].ApprovedBy)
	assert.Equal(t, *first.ApprovedAt, *stored[0].ApprovedAt)
	assert.Equal(t, int64(2), stored[0].Version)
}

func TestTimeOff_ConcurrentApprovalsApplyOnce(t *testing.T) {
	// GIVEN: One pending request and several approvals racing for it
	// WHEN: The approvals run concurrently
	// THEN: Exactly one wins; every loser re-reads the approved state and
	//       gets IllegalTransition, and the stored request carries a single
	//       stamp and a single version bump

	fx := newFixture(t)
	ctx := context.Background()
	r := requestTimeOff(t, fx, workerUser)

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.svc.TimeOff.Approve(ctx, fx.farmID, managerUser, r.ID)
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, engine.ErrIllegalTransition):
			losses++
		default:
			t.Fatalf("unexpected error from racing approve: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, losses)

	stored, err := fx.svc.TimeOff.List(ctx, managerUser, farm.TimeOffFilter{FarmID: fx.farmID})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, engine.TimeOffApproved, stored[0].Status)
	assert.Equal(t, int64(2), stored[0].Version)
	require.NotNil(t, stored[0].ApprovedBy)
	assert.Equal(t, managerUser, *stored[0].ApprovedBy)
}

func TestTimeOff_RejectRequiresReason(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := requestTimeOff(t, fx, workerUser)

	_, err := fx.svc.TimeOff.Reject(ctx, fx.farmID, managerUser, r.ID, "  ")
	assert.ErrorIs(t, err, engine.ErrValidation)

	rejected, err := fx.svc.TimeOff.Reject(ctx, fx.farmID, managerUser, r.ID, "harvest week, no cover")
	require.NoError(t, err)
	assert.Equal(t, engine.TimeOffRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "harvest week, no cover", *rejected.RejectionReason)
	assert.Nil(t, rejected.ApprovedAt)
}

func TestTimeOff_WorkerCannotApprove(t *testing.T) {
	fx := newFixture(t)
	r := requestTimeOff(t, fx, workerUser)

	_, err := fx.svc.TimeOff.Approve(context.Background(), fx.farmID, workerUser, r.ID)

	var roleErr *engine.InsufficientRoleError
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, engine.RoleManager, roleErr.Required)
}

func TestTimeOff_InvertedRangeRejected(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.TimeOff.Request(context.Background(), fx.farmID, workerUser, map[string]any{
		"workerId": fx.workerID, "from": "2026-04-22", "to": "2026-04-20", "reason": "x",
	})

	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestTimeOff_PendingQueue(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r1 := requestTimeOff(t, fx, workerUser)

	r2, err := fx.svc.TimeOff.Request(ctx, fx.farmID, managerUser, map[string]any{
		"workerId": fx.workerID, "from": "2026-05-04", "to": "2026-05-05", "reason": "appointment",
	})
	require.NoError(t, err)

	_, err = fx.svc.TimeOff.Approve(ctx, fx.farmID, managerUser, r1.ID)
	require.NoError(t, err)

	pending, err := fx.svc.TimeOff.ListPending(ctx, fx.farmID, managerUser)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, r2.ID, pending[0].ID)
}
