/*
transition.go - Per-entity status transition tables

PURPOSE:
  Enforces legal status transitions for every stateful entity. Given the
  entity's current status, the requested target, and the caller's resolved
  role, returns the side-effect fields to stamp or an IllegalTransitionError.

TRANSITION TABLES:
  Shift:       scheduled -> pending_approval -> confirmed -> completed
               pending_approval/confirmed -> cancelled   (manager+)
  TimeOff:     pending -> approved                        (manager+)
               pending -> rejected                        (manager+, reason required)
  Payroll:     draft -> approved -> paid                  (strictly sequential)
  Task:        pending -> in_progress -> completed        (assigned worker or supervisor)
               pending/in_progress -> cancelled

  Anything not in the table is rejected, including setting a status to its
  current value: payload updates go through a separate update path, never
  through a transition.

TERMINAL STATES:
  completed, rejected, paid, cancelled (and terminated workers) have no
  outgoing edges and are therefore immutable.

STAMPS:
  Each edge declares which timestamp/actor fields the service must stamp
  (approvedAt/approvedBy, completedAt, paidAt, cancelledAt, rejection
  reason). Decide returns the stamps populated; services copy them onto
  the entity inside the same store transaction as the status write.

SEE ALSO:
  - authz.go: Role ordering reused for per-edge minimum roles
  - farm package: Services that read fresh state and apply the decision
*/
package engine

import (
	"time"
)

// =============================================================================
// STATUSES
// =============================================================================

type Status string

type EntityKind string

const (
	KindShift   EntityKind = "shift"
	KindTimeOff EntityKind = "timeOffRequest"
	KindPayroll EntityKind = "payrollRecord"
	KindTask    EntityKind = "taskAssignment"
	KindWorker  EntityKind = "worker"
)

// Shift lifecycle
const (
	ShiftScheduled       Status = "scheduled"
	ShiftPendingApproval Status = "pending_approval"
	ShiftConfirmed       Status = "confirmed"
	ShiftCompleted       Status = "completed"
	ShiftCancelled       Status = "cancelled"
)

// TimeOffRequest lifecycle
const (
	TimeOffPending  Status = "pending"
	TimeOffApproved Status = "approved"
	TimeOffRejected Status = "rejected"
)

// PayrollRecord lifecycle
const (
	PayrollDraft    Status = "draft"
	PayrollApproved Status = "approved"
	PayrollPaid     Status = "paid"
)

// TaskAssignment lifecycle
const (
	TaskPending    Status = "pending"
	TaskInProgress Status = "in_progress"
	TaskCompleted  Status = "completed"
	TaskCancelled  Status = "cancelled"
)

// Worker lifecycle (soft delete)
const (
	WorkerActive     Status = "active"
	WorkerTerminated Status = "terminated"
)

// =============================================================================
// TRANSITION TABLE
// =============================================================================

type stampKind int

const (
	stampNone stampKind = iota
	stampApproved
	stampRejected
	stampCompleted
	stampPaid
	stampCancelled
)

type edge struct {
	From Status
	To   Status

	// MinRole is the minimum caller role for this edge.
	MinRole Role

	// AllowAssignee permits the entity's assignee to take this edge even
	// when their role is exactly RoleWorker (tasks: the assigned worker or
	// a supervisor completes).
	AllowAssignee bool

	// RequiresReason rejects the edge unless a non-empty reason is supplied.
	RequiresReason bool

	Stamp stampKind
}

var transitionTables = map[EntityKind][]edge{
	KindShift: {
		{From: ShiftScheduled, To: ShiftPendingApproval, MinRole: RoleManager, AllowAssignee: true},
		{From: ShiftPendingApproval, To: ShiftConfirmed, MinRole: RoleManager, Stamp: stampApproved},
		{From: ShiftConfirmed, To: ShiftCompleted, MinRole: RoleManager, AllowAssignee: true, Stamp: stampCompleted},
		{From: ShiftPendingApproval, To: ShiftCancelled, MinRole: RoleManager, Stamp: stampCancelled},
		{From: ShiftConfirmed, To: ShiftCancelled, MinRole: RoleManager, Stamp: stampCancelled},
	},
	KindTimeOff: {
		{From: TimeOffPending, To: TimeOffApproved, MinRole: RoleManager, Stamp: stampApproved},
		{From: TimeOffPending, To: TimeOffRejected, MinRole: RoleManager, RequiresReason: true, Stamp: stampRejected},
	},
	KindPayroll: {
		{From: PayrollDraft, To: PayrollApproved, MinRole: RoleManager, Stamp: stampApproved},
		{From: PayrollApproved, To: PayrollPaid, MinRole: RoleManager, Stamp: stampPaid},
	},
	KindTask: {
		{From: TaskPending, To: TaskInProgress, MinRole: RoleManager, AllowAssignee: true},
		{From: TaskInProgress, To: TaskCompleted, MinRole: RoleManager, AllowAssignee: true, Stamp: stampCompleted},
		{From: TaskPending, To: TaskCancelled, MinRole: RoleManager, Stamp: stampCancelled},
		{From: TaskInProgress, To: TaskCancelled, MinRole: RoleManager, Stamp: stampCancelled},
	},
	KindWorker: {
		{From: WorkerActive, To: WorkerTerminated, MinRole: RoleManager, Stamp: stampCancelled},
	},
}

// =============================================================================
// DECISION
// =============================================================================

// TransitionRequest carries everything Decide needs. All state is
// already-fetched; Decide performs no I/O.
type TransitionRequest struct {
	Kind    EntityKind
	Current Status
	Target  Status

	Caller     UserID
	CallerRole Role

	// AssigneeID is the entity's assigned worker's user id, if any.
	// Used by edges with AllowAssignee.
	AssigneeID UserID

	// Reason accompanies rejections/cancellations.
	Reason string

	At time.Time
}

// Stamps are the side-effect fields a permitted transition requires the
// service to write alongside the status change.
type Stamps struct {
	ApprovedBy      *UserID
	ApprovedAt      *time.Time
	CompletedAt     *time.Time
	PaidAt          *time.Time
	CancelledAt     *time.Time
	RejectionReason *string
}

// Decide checks the transition against the entity's table. It returns the
// stamps to apply, or an error: IllegalTransitionError when the edge does
// not exist (including self-transitions), InsufficientRoleError when the
// edge exists but the caller's role is too low, ValidationError when a
// required reason is missing.
func Decide(req TransitionRequest) (Stamps, error) {
	table, ok := transitionTables[req.Kind]
	if !ok {
		return Stamps{}, &IllegalTransitionError{Kind: req.Kind, Current: req.Current, Attempted: req.Target}
	}

	var found *edge
	for i := range table {
		if table[i].From == req.Current && table[i].To == req.Target {
			found = &table[i]
			break
		}
	}
	if found == nil {
		return Stamps{}, &IllegalTransitionError{Kind: req.Kind, Current: req.Current, Attempted: req.Target}
	}

	permitted := req.CallerRole.AtLeast(found.MinRole)
	if !permitted && found.AllowAssignee && req.AssigneeID != "" && req.AssigneeID == req.Caller {
		permitted = req.CallerRole.AtLeast(RoleWorker)
	}
	if !permitted {
		return Stamps{}, &InsufficientRoleError{
			Action:   Action(string(req.Kind) + ":" + string(req.Target)),
			Held:     req.CallerRole,
			Required: found.MinRole,
		}
	}

	if found.RequiresReason && isBlank(req.Reason) {
		return Stamps{}, &ValidationError{
			Shape: string(req.Kind) + " transition",
			Violations: []FieldViolation{
				{Field: "reason", Constraint: "must not be empty", Received: req.Reason},
			},
		}
	}

	at := req.At
	stamps := Stamps{}
	switch found.Stamp {
	case stampApproved:
		caller := req.Caller
		stamps.ApprovedBy = &caller
		stamps.ApprovedAt = &at
	case stampRejected:
		reason := req.Reason
		stamps.RejectionReason = &reason
	case stampCompleted:
		stamps.CompletedAt = &at
	case stampPaid:
		stamps.PaidAt = &at
	case stampCancelled:
		stamps.CancelledAt = &at
	}
	return stamps, nil
}

// Terminal reports whether a status has no outgoing edges for the kind.
func Terminal(kind EntityKind, s Status) bool {
	for _, e := range transitionTables[kind] {
		if e.From == s {
			return false
		}
	}
	return true
}
