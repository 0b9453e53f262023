package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acrefield/farm-engine/engine"
	"github.com/acrefield/farm-engine/farm"
	"github.com/acrefield/farm-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedFarmAndWorker(t *testing.T, s *sqlite.Store) (engine.FarmID, string) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, time.April, 6, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertFarm(ctx, farm.Farm{
		ID: "farm-1", Name: "Acre Field", OwnerID: "user-owner", CreatedAt: now,
	}))
	require.NoError(t, s.InsertBinding(ctx, engine.RoleBinding{
		FarmID: "farm-1", UserID: "user-owner", Role: engine.RoleOwner, CreatedAt: now, Version: 1,
	}))
	require.NoError(t, s.InsertWorker(ctx, farm.Worker{
		ID: "worker-1", FarmID: "farm-1", UserID: "user-jo", Name: "Jo Field",
		HourlyRate: decimal.NewFromFloat(18.5), Status: engine.WorkerActive,
		CreatedAt: now, UpdatedAt: now, Version: 1,
	}))
	return "farm-1", "worker-1"
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestSQLite_WorkerRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedFarmAndWorker(t, s)
	ctx := context.Background()

	w, err := s.GetWorker(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, "Jo Field", w.Name)
	assert.Equal(t, engine.UserID("user-jo"), w.UserID)
	assert.True(t, w.HourlyRate.Equal(decimal.NewFromFloat(18.5)))
	assert.Equal(t, engine.WorkerActive, w.Status)
	assert.Nil(t, w.TerminatedAt)
	assert.Equal(t, int64(1), w.Version)
}

func TestSQLite_ShiftRoundTripWithStamps(t *testing.T) {
	s := newTestStore(t)
	farmID, workerID := seedFarmAndWorker(t, s)
	ctx := context.Background()
	now := time.Date(2026, time.April, 7, 0, 0, 0, 0, time.UTC)

	sh := farm.Shift{
		ID: "shift-1", FarmID: farmID, WorkerID: workerID,
		Date: now, Hours: decimal.NewFromFloat(7.5), Duty: "harvest", Notes: "east rows",
		Status: engine.ShiftScheduled, CreatedAt: now, UpdatedAt: now, Version: 1,
	}
	require.NoError(t, s.InsertShift(ctx, sh))

	approver := engine.UserID("user-owner")
	approvedAt := now.Add(2 * time.Hour)
	sh.Status = engine.ShiftConfirmed
	sh.ApprovedBy = &approver
	sh.ApprovedAt = &approvedAt
	require.NoError(t, s.UpdateShift(ctx, sh, 1))

	stored, err := s.GetShift(ctx, "shift-1")
	require.NoError(t, err)
	assert.Equal(t, engine.ShiftConfirmed, stored.Status)
	require.NotNil(t, stored.ApprovedBy)
	assert.Equal(t, approver, *stored.ApprovedBy)
	require.NotNil(t, stored.ApprovedAt)
	assert.True(t, stored.ApprovedAt.Equal(approvedAt))
	assert.True(t, stored.Hours.Equal(decimal.NewFromFloat(7.5)))
	assert.Equal(t, int64(2), stored.Version)
}

func TestSQLite_GetMissingIsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetShift(context.Background(), "nope")
	assert.ErrorIs(t, err, engine.ErrNotFound)

	_, err = s.GetBinding(context.Background(), "farm-x", "user-x")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

// =============================================================================
// OPTIMISTIC LOCKING
// =============================================================================

func TestSQLite_StaleVersionConflicts(t *testing.T) {
	// GIVEN: A shift at version 1, already moved once
	// WHEN: A writer comes back with the version it read before the move
	// THEN: ErrVersionConflict; a missing row is NotFound instead

	s := newTestStore(t)
	farmID, workerID := seedFarmAndWorker(t, s)
	ctx := context.Background()
	now := time.Now().UTC()

	sh := farm.Shift{
		ID: "shift-1", FarmID: farmID, WorkerID: workerID,
		Date: now, Hours: decimal.NewFromInt(8), Duty: "harvest",
		Status: engine.ShiftScheduled, CreatedAt: now, UpdatedAt: now, Version: 1,
	}
	require.NoError(t, s.InsertShift(ctx, sh))

	sh.Status = engine.ShiftPendingApproval
	require.NoError(t, s.UpdateShift(ctx, sh, 1))

	sh.Status = engine.ShiftCancelled
	err := s.UpdateShift(ctx, sh, 1)
	assert.ErrorIs(t, err, engine.ErrVersionConflict)
	assert.True(t, engine.IsRetryable(engine.ErrPersistenceUnavailable))
	assert.False(t, engine.IsRetryable(err))

	missing := sh
	missing.ID = "ghost"
	err = s.UpdateShift(ctx, missing, 1)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestSQLite_BindingVersioning(t *testing.T) {
	s := newTestStore(t)
	seedFarmAndWorker(t, s)
	ctx := context.Background()

	b, err := s.GetBinding(ctx, "farm-1", "user-owner")
	require.NoError(t, err)

	b.Role = engine.RoleManager
	require.NoError(t, s.UpdateBinding(ctx, *b, 1))

	err = s.UpdateBinding(ctx, *b, 1)
	assert.ErrorIs(t, err, engine.ErrVersionConflict)

	updated, err := s.GetBinding(ctx, "farm-1", "user-owner")
	require.NoError(t, err)
	assert.Equal(t, engine.RoleManager, updated.Role)
	assert.Equal(t, int64(2), updated.Version)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	farmID, workerID := seedFarmAndWorker(t, s)
	ctx := context.Background()
	now := time.Now().UTC()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx farm.Store) error {
		if err := tx.InsertTask(ctx, farm.TaskAssignment{
			ID: "task-1", FarmID: farmID, WorkerID: workerID, Title: "Fence repair",
			EstimatedHours: decimal.NewFromInt(8), Status: engine.TaskPending,
			CreatedAt: now, UpdatedAt: now, Version: 1,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetTask(ctx, "task-1")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestSQLite_WithTxCommitsTaskAndAlertTogether(t *testing.T) {
	s := newTestStore(t)
	farmID, workerID := seedFarmAndWorker(t, s)
	ctx := context.Background()
	now := time.Now().UTC()

	eff := engine.MustParseDecimal("53.3")
	err := s.WithTx(ctx, func(tx farm.Store) error {
		if err := tx.InsertTask(ctx, farm.TaskAssignment{
			ID: "task-1", FarmID: farmID, WorkerID: workerID, Title: "Fence repair",
			EstimatedHours: decimal.NewFromInt(8), Status: engine.TaskCompleted,
			EfficiencyPct: &eff, CreatedAt: now, UpdatedAt: now, Version: 1,
		}); err != nil {
			return err
		}
		return tx.InsertAlert(ctx, farm.Alert{
			ID: "alert-1", FarmID: farmID, WorkerID: workerID, TaskID: "task-1",
			Severity: engine.SeverityCritical, Metric: "efficiency", Value: eff,
			Message: "way over estimate", CreatedAt: now,
		})
	})
	require.NoError(t, err)

	task, err := s.GetTask(ctx, "task-1")
	require.NoError(t, err)
	require.NotNil(t, task.EfficiencyPct)
	assert.Equal(t, "53.3", task.EfficiencyPct.String())

	alerts, err := s.ListAlerts(ctx, farmID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "53.3", alerts[0].Value.String())
}

// =============================================================================
// FILTERS
// =============================================================================

func TestSQLite_ShiftFilterByStatusAndWindow(t *testing.T) {
	s := newTestStore(t)
	farmID, workerID := seedFarmAndWorker(t, s)
	ctx := context.Background()

	mk := func(id string, day int, status engine.Status) farm.Shift {
		d := time.Date(2026, time.April, day, 0, 0, 0, 0, time.UTC)
		return farm.Shift{
			ID: id, FarmID: farmID, WorkerID: workerID, Date: d,
			Hours: decimal.NewFromInt(8), Duty: "harvest", Status: status,
			CreatedAt: d, UpdatedAt: d, Version: 1,
		}
	}
	require.NoError(t, s.InsertShift(ctx, mk("s1", 7, engine.ShiftCompleted)))
	require.NoError(t, s.InsertShift(ctx, mk("s2", 8, engine.ShiftScheduled)))
	require.NoError(t, s.InsertShift(ctx, mk("s3", 20, engine.ShiftCompleted)))

	from := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC)
	got, err := s.ListShifts(ctx, farm.ShiftFilter{
		FarmID: farmID, Status: engine.ShiftCompleted, From: &from, To: &to,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)
}

func TestSQLite_TimeOffRoundTrip(t *testing.T) {
	s := newTestStore(t)
	farmID, workerID := seedFarmAndWorker(t, s)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	r := farm.TimeOffRequest{
		ID: "to-1", FarmID: farmID, WorkerID: workerID,
		From: now, To: now.AddDate(0, 0, 2), Reason: "family visit",
		Status: engine.TimeOffPending, CreatedAt: now, UpdatedAt: now, Version: 1,
	}
	require.NoError(t, s.InsertTimeOff(ctx, r))

	reason := "harvest week, no cover"
	r.Status = engine.TimeOffRejected
	r.RejectionReason = &reason
	require.NoError(t, s.UpdateTimeOff(ctx, r, 1))

	stored, err := s.GetTimeOff(ctx, "to-1")
	require.NoError(t, err)
	assert.Equal(t, engine.TimeOffRejected, stored.Status)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, reason, *stored.RejectionReason)
	assert.Nil(t, stored.ApprovedAt)

	pending, err := s.ListTimeOff(ctx, farm.TimeOffFilter{FarmID: farmID, Status: engine.TimeOffPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLite_CountOwners(t *testing.T) {
	s := newTestStore(t)
	seedFarmAndWorker(t, s)
	ctx := context.Background()

	require.NoError(t, s.InsertBinding(ctx, engine.RoleBinding{
		FarmID: "farm-1", UserID: "user-m", Role: engine.RoleManager, CreatedAt: time.Now(), Version: 1,
	}))

	n, err := s.CountOwners(ctx, "farm-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
