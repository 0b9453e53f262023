package farm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acrefield/farm-engine/engine"
	"github.com/acrefield/farm-engine/farm"
)

func assignTask(t *testing.T, fx *fixture, estimated float64) *farm.TaskAssignment {
	t.Helper()
	task, err := fx.svc.Tasks.Assign(context.Background(), fx.farmID, managerUser, map[string]any{
		"workerId":       fx.workerID,
		"title":          "Fence repair, north paddock",
		"estimatedHours": estimated,
	})
	require.NoError(t, err)
	return task
}

func TestTask_CompletionComputesEfficiency(t *testing.T) {
	// GIVEN: A task estimated at 8 hours
	// WHEN: The assigned worker completes it in 10
	// THEN: Efficiency is 80.0 and a warning-level alert is raised

	fx := newFixture(t)
	ctx := context.Background()
	task := assignTask(t, fx, 8.0)

	started, err := fx.svc.Tasks.Start(ctx, fx.farmID, workerUser, task.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.TaskInProgress, started.Status)

	done, err := fx.svc.Tasks.Complete(ctx, fx.farmID, workerUser, task.ID, 10.0)
	require.NoError(t, err)

	assert.Equal(t, engine.TaskCompleted, done.Status)
	require.NotNil(t, done.ActualHours)
	require.NotNil(t, done.EfficiencyPct)
	assert.Equal(t, "80", done.EfficiencyPct.String())
	require.NotNil(t, done.CompletedAt)

	alerts, err := fx.svc.Reports.Alerts(ctx, fx.farmID, managerUser)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, engine.SeverityWarning, alerts[0].Severity)
	assert.Equal(t, task.ID, alerts[0].TaskID)
	assert.Equal(t, "efficiency", alerts[0].Metric)
}

func TestTask_BadOverrunRaisesCriticalAlert(t *testing.T) {
	// 8 estimated, 15 actual: 53.3%, below the critical threshold.

	fx := newFixture(t)
	ctx := context.Background()
	task := assignTask(t, fx, 8.0)

	_, err := fx.svc.Tasks.Start(ctx, fx.farmID, managerUser, task.ID)
	require.NoError(t, err)

	done, err := fx.svc.Tasks.Complete(ctx, fx.farmID, managerUser, task.ID, 15.0)
	require.NoError(t, err)
	assert.Equal(t, "53.3", done.EfficiencyPct.String())

	alerts, err := fx.svc.Reports.Alerts(ctx, fx.farmID, managerUser)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, engine.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "53.3", alerts[0].Value.String())
}

func TestTask_OnTargetCompletionRaisesNoAlert(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	task := assignTask(t, fx, 8.0)

	_, err := fx.svc.Tasks.Start(ctx, fx.farmID, managerUser, task.ID)
	require.NoError(t, err)
	done, err := fx.svc.Tasks.Complete(ctx, fx.farmID, managerUser, task.ID, 8.0)
	require.NoError(t, err)
	assert.Equal(t, "100", done.EfficiencyPct.String())

	alerts, err := fx.svc.Reports.Alerts(ctx, fx.farmID, managerUser)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestTask_ZeroActualHoursRejected(t *testing.T) {
	// Division guard: completion with zero hours is a validation error and
	// the task stays in progress.

	fx := newFixture(t)
	ctx := context.Background()
	task := assignTask(t, fx, 4.0)

	_, err := fx.svc.Tasks.Start(ctx, fx.farmID, managerUser, task.ID)
	require.NoError(t, err)

	_, err = fx.svc.Tasks.Complete(ctx, fx.farmID, managerUser, task.ID, 0)
	require.ErrorIs(t, err, engine.ErrValidation)

	tasks, err := fx.svc.Tasks.List(ctx, managerUser, farm.TaskFilter{FarmID: fx.farmID})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, engine.TaskInProgress, tasks[0].Status)
	assert.Nil(t, tasks[0].EfficiencyPct)
}

func TestTask_UnassignedWorkerCannotStart(t *testing.T) {
	// A worker-level member who is not the assignee has no claim on the task.

	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Workers.Hire(ctx, fx.farmID, managerUser, map[string]any{
		"name": "Sam Rowe", "userId": "user-sam", "hourlyRate": 16.0,
	})
	require.NoError(t, err)
	_, err = fx.svc.Team.AddMember(ctx, fx.farmID, ownerUser, map[string]any{"userId": "user-sam", "role": "worker"})
	require.NoError(t, err)

	task := assignTask(t, fx, 4.0)

	_, err = fx.svc.Tasks.Start(ctx, fx.farmID, "user-sam", task.ID)
	assert.ErrorIs(t, err, engine.ErrInsufficientRole)
}

func TestTask_CancelledTaskIsTerminal(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	task := assignTask(t, fx, 4.0)

	cancelled, err := fx.svc.Tasks.Cancel(ctx, fx.farmID, managerUser, task.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.TaskCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = fx.svc.Tasks.Start(ctx, fx.farmID, managerUser, task.ID)
	assert.ErrorIs(t, err, engine.ErrIllegalTransition)
}
