/*
seed.go - Demo data loader for development and demonstrations

PURPOSE:
  Populates a fresh demo farm with realistic data: a worker roster,
  shifts along the approval chain, a pending time off request, a
  payroll draft, and tasks including one completed below the
  efficiency threshold so the alert path has something to show.

HOW SEEDING WORKS:
 1. Create a farm owned by the authenticated caller
 2. Add a manager and a linked worker account as members
 3. Hire workers, schedule and walk shifts through their states
 4. Draft payroll, assign tasks, complete one with an overrun

  Everything goes through the domain services, never the store, so the
  demo data is exactly what the real request pipeline would produce.

NOTE:
  Only wire the seed route in development environments.

SEE ALSO:
  - server.go: route registration is gated by config
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/acrefield/farm-engine/engine"
	"github.com/acrefield/farm-engine/farm"
)

// demoMembers are added alongside the owner. The worker login is linked
// to the hired hand below so assignee flows can be demonstrated.
const (
	demoManagerUser = "demo-manager"
	demoWorkerUser  = "demo-hand"
)

// LoadDemo seeds a demo farm owned by the caller.
func (h *Handler) LoadDemo(w http.ResponseWriter, r *http.Request) {
	f, err := seedDemoFarm(r.Context(), h.Services, callerFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFarmDTO(f))
}

func seedDemoFarm(ctx context.Context, svc *farm.Services, owner engine.UserID) (*farm.Farm, error) {
	f, err := svc.Team.CreateFarm(ctx, owner, map[string]any{"name": "Demo Acres"})
	if err != nil {
		return nil, err
	}

	members := []map[string]any{
		{"userId": demoManagerUser, "role": "manager"},
		{"userId": demoWorkerUser, "role": "worker"},
	}
	for _, m := range members {
		if _, err := svc.Team.AddMember(ctx, f.ID, owner, m); err != nil {
			return nil, fmt.Errorf("adding member %v: %w", m["userId"], err)
		}
	}

	hand, err := svc.Workers.Hire(ctx, f.ID, owner, map[string]any{
		"name": "Rosa Vance", "userId": demoWorkerUser, "hourlyRate": 19.25,
	})
	if err != nil {
		return nil, err
	}
	if _, err := svc.Workers.Hire(ctx, f.ID, owner, map[string]any{
		"name": "Eli Thorpe", "hourlyRate": 17.0,
	}); err != nil {
		return nil, err
	}

	// One shift fully worked, one still waiting for the manager.
	worked, err := svc.Shifts.Schedule(ctx, f.ID, demoManagerUser, map[string]any{
		"workerId": hand.ID, "date": "2026-08-24", "hours": 8, "duty": "harvest",
	})
	if err != nil {
		return nil, err
	}
	if _, err := svc.Shifts.Submit(ctx, f.ID, demoWorkerUser, worked.ID); err != nil {
		return nil, err
	}
	if _, err := svc.Shifts.Confirm(ctx, f.ID, demoManagerUser, worked.ID); err != nil {
		return nil, err
	}
	if _, err := svc.Shifts.Complete(ctx, f.ID, demoWorkerUser, worked.ID); err != nil {
		return nil, err
	}
	pending, err := svc.Shifts.Schedule(ctx, f.ID, demoManagerUser, map[string]any{
		"workerId": hand.ID, "date": "2026-09-02", "hours": 6, "duty": "irrigation",
	})
	if err != nil {
		return nil, err
	}
	if _, err := svc.Shifts.Submit(ctx, f.ID, demoWorkerUser, pending.ID); err != nil {
		return nil, err
	}

	if _, err := svc.TimeOff.Request(ctx, f.ID, demoWorkerUser, map[string]any{
		"workerId": hand.ID, "from": "2026-09-14", "to": "2026-09-16", "reason": "family visit",
	}); err != nil {
		return nil, err
	}

	if _, err := svc.Payroll.CreateDraft(ctx, f.ID, demoManagerUser, map[string]any{
		"workerId": hand.ID, "periodStart": "2026-08-17", "periodEnd": "2026-08-30",
		"grossAmount": 616.0, "netAmount": 512.4,
	}); err != nil {
		return nil, err
	}

	// A task completed with a heavy overrun leaves a visible alert.
	overrun, err := svc.Tasks.Assign(ctx, f.ID, demoManagerUser, map[string]any{
		"workerId": hand.ID, "title": "Fence line repair", "estimatedHours": 6,
	})
	if err != nil {
		return nil, err
	}
	if _, err := svc.Tasks.Start(ctx, f.ID, demoWorkerUser, overrun.ID); err != nil {
		return nil, err
	}
	if _, err := svc.Tasks.Complete(ctx, f.ID, demoWorkerUser, overrun.ID, 10.5); err != nil {
		return nil, err
	}
	if _, err := svc.Tasks.Assign(ctx, f.ID, demoManagerUser, map[string]any{
		"workerId": hand.ID, "title": "Silage pit cover", "estimatedHours": 3,
	}); err != nil {
		return nil, err
	}

	if _, err := svc.Health.Record(ctx, f.ID, demoWorkerUser, map[string]any{
		"animalTag": "cow-118", "vaccine": "blackleg", "dosesScheduled": 2, "dosesGiven": 1,
	}); err != nil {
		return nil, err
	}

	return f, nil
}
