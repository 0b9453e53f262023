/*
service.go - Shared orchestration for all domain services

PURPOSE:
  Every service runs the same request pipeline; the shared pieces live
  here: authorization with audit, versioned-transaction retry, id minting,
  and fire-and-forget notification.

RETRY-ONCE ON VERSION CONFLICT:
  Transitions read the entity fresh inside WithTx, decide, and write with
  a compare-and-swap on the row version. When the CAS loses a race the
  whole function is retried exactly once: the second pass reads the fresh
  (usually terminal) state and the transition engine then reports
  IllegalTransition. Exactly one of two racing approvals can ever apply.

SEE ALSO:
  - store.go: WithTx and Update* contracts
  - ../engine/errors.go: The error taxonomy flowing out of here
*/
package farm

import (
	"context"
	"errors"
	"fmt"

	"github.com/acrefield/farm-engine/engine"
	"github.com/acrefield/farm-engine/metrics"
	"github.com/acrefield/farm-engine/notify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// SERVICE BUNDLE
// =============================================================================

// Services bundles every domain service over one store.
type Services struct {
	Team    *TeamService
	Workers *WorkerService
	Shifts  *ShiftService
	TimeOff *TimeOffService
	Payroll *PayrollService
	Tasks   *TaskService
	Health  *HealthService
	Reports *ReportService
}

// NewServices wires the services. The store is always injected, never a
// process-wide singleton, so tests instantiate isolated stores.
func NewServices(store Store, log *zap.Logger, dispatcher notify.Dispatcher, clock engine.Clock) *Services {
	if dispatcher == nil {
		dispatcher = notify.Noop{}
	}
	if clock == nil {
		clock = engine.SystemClock{}
	}
	d := deps{store: store, log: log, notifier: dispatcher, clock: clock}
	return &Services{
		Team:    &TeamService{deps: d},
		Workers: &WorkerService{deps: d},
		Shifts:  &ShiftService{deps: d},
		TimeOff: &TimeOffService{deps: d},
		Payroll: &PayrollService{deps: d},
		Tasks:   &TaskService{deps: d},
		Health:  &HealthService{deps: d},
		Reports: &ReportService{deps: d},
	}
}

type deps struct {
	store    Store
	log      *zap.Logger
	notifier notify.Dispatcher
	clock    engine.Clock
}

// =============================================================================
// AUTHORIZATION WITH AUDIT
// =============================================================================

// authorize resolves the caller's binding freshly and decides the action.
// Denials are audited and logged; the guard itself stays pure.
func (d deps) authorize(ctx context.Context, farmID engine.FarmID, caller engine.UserID, action engine.Action) (*engine.RoleBinding, error) {
	binding, err := d.store.GetBinding(ctx, farmID, caller)
	if err != nil && !engine.IsNotFound(err) {
		return nil, fmt.Errorf("resolving role binding: %w", err)
	}

	if err := engine.Authorize(binding, farmID, caller, action); err != nil {
		metrics.ObserveAuthzDenied(string(action))
		d.audit(ctx, farmID, caller, string(action), AuditDeny, err.Error())
		d.log.Warn("authorization denied",
			zap.String("farm_id", string(farmID)),
			zap.String("caller", string(caller)),
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return nil, err
	}
	return binding, nil
}

// audit is best-effort: a failed audit write never fails the request.
func (d deps) audit(ctx context.Context, farmID engine.FarmID, actor engine.UserID, action string, outcome AuditOutcome, detail string) {
	entry := AuditEntry{
		ID:      newID("audit"),
		FarmID:  farmID,
		ActorID: actor,
		Action:  action,
		Outcome: outcome,
		Detail:  detail,
		At:      d.clock.Now(),
	}
	if err := d.store.AppendAudit(ctx, entry); err != nil {
		d.log.Error("audit append failed", zap.Error(err), zap.String("action", action))
	}
}

// =============================================================================
// TRANSACTION RETRY
// =============================================================================

// transactRetry runs fn in a transaction, retrying exactly once on an
// optimistic-lock conflict. fn must re-read everything it decides on.
func (d deps) transactRetry(ctx context.Context, fn func(Store) error) error {
	err := d.store.WithTx(ctx, fn)
	if errors.Is(err, engine.ErrVersionConflict) {
		metrics.ObserveVersionConflict()
		err = d.store.WithTx(ctx, fn)
	}
	return err
}

// =============================================================================
// NOTIFICATION
// =============================================================================

// dispatch sends a notification after a committed transition. Failures are
// logged and swallowed: the transition already happened.
func (d deps) dispatch(ctx context.Context, farmID engine.FarmID, actor engine.UserID, kind, subject string, detail map[string]string) {
	err := d.notifier.Dispatch(ctx, notify.Event{
		FarmID:  string(farmID),
		Kind:    kind,
		Subject: subject,
		Actor:   string(actor),
		Detail:  detail,
	})
	if err != nil {
		d.log.Warn("notification dispatch failed",
			zap.String("kind", kind),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

// observeTransition records a transition attempt's outcome.
func observeTransition(kind engine.EntityKind, target engine.Status, err error) {
	result := "applied"
	if err != nil {
		result = "rejected"
	}
	metrics.ObserveTransition(string(kind), string(target), result)
}

// =============================================================================
// HELPERS
// =============================================================================

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
