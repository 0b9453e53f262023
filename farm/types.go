/*
Package farm provides the domain services of the farm-management core.

PURPOSE:
  Each service orchestrates the same sequence for its resource:
  validate -> authorize -> fresh read -> transition decision -> versioned
  write -> derived aggregates -> audit -> fire-and-forget notification.
  The decisions themselves live in the engine package; services own the
  wiring to storage and notifications.

RESOURCES (this file):
  Farm:           The tenant boundary. Every other record carries a FarmID.
  Worker:         Registry entry for a laborer. Soft-deleted by termination.
  Shift:          scheduled -> pending_approval -> confirmed -> completed.
  TimeOffRequest: pending -> approved/rejected.
  PayrollRecord:  draft -> approved -> paid.
  TaskAssignment: pending -> in_progress -> completed/cancelled; completion
                  computes efficiency and may raise an alert.
  HealthRecord:   Vaccination doses per animal; feeds compliance reports.
  Alert:          Threshold breach raised by the aggregate layer.

VERSIONING:
  Every stateful record carries a Version. Stores perform compare-and-swap
  on it so racing transitions on the same row are serialized: exactly one
  wins, the loser re-reads and observes an already-terminal state.

SEE ALSO:
  - store.go: The persistence boundary these records cross
  - ../engine: Pure decision logic
*/
package farm

import (
	"time"

	"github.com/acrefield/farm-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// TENANT
// =============================================================================

type Farm struct {
	ID        engine.FarmID
	Name      string
	OwnerID   engine.UserID
	CreatedAt time.Time
}

// =============================================================================
// WORKER REGISTRY
// =============================================================================

type Worker struct {
	ID     string
	FarmID engine.FarmID

	// UserID links the worker to a login identity; empty for workers who
	// never access the system themselves.
	UserID engine.UserID

	Name       string
	HourlyRate decimal.Decimal
	Status     engine.Status // active | terminated

	TerminatedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int64
}

// =============================================================================
// SHIFT
// =============================================================================

type Shift struct {
	ID       string
	FarmID   engine.FarmID
	WorkerID string

	Date  time.Time
	Hours decimal.Decimal
	Duty  string // harvest, irrigation, livestock, ...
	Notes string

	Status      engine.Status
	ApprovedBy  *engine.UserID
	ApprovedAt  *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

// =============================================================================
// TIME OFF
// =============================================================================

type TimeOffRequest struct {
	ID       string
	FarmID   engine.FarmID
	WorkerID string

	From   time.Time
	To     time.Time
	Reason string

	Status          engine.Status
	ApprovedBy      *engine.UserID
	ApprovedAt      *time.Time
	RejectionReason *string

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

// =============================================================================
// PAYROLL
// =============================================================================

type PayrollRecord struct {
	ID       string
	FarmID   engine.FarmID
	WorkerID string

	PeriodStart time.Time
	PeriodEnd   time.Time
	GrossAmount decimal.Decimal
	NetAmount   decimal.Decimal

	Status     engine.Status
	ApprovedBy *engine.UserID
	ApprovedAt *time.Time
	PaidAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

// =============================================================================
// TASK ASSIGNMENT
// =============================================================================

type TaskAssignment struct {
	ID       string
	FarmID   engine.FarmID
	WorkerID string

	Title          string
	Description    string
	EstimatedHours decimal.Decimal

	// Set on completion.
	ActualHours   *decimal.Decimal
	EfficiencyPct *decimal.Decimal // cache of the derived metric, recomputable

	Status      engine.Status
	CompletedAt *time.Time
	CancelledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

// =============================================================================
// HEALTH RECORD
// =============================================================================

type HealthRecord struct {
	ID     string
	FarmID engine.FarmID

	AnimalTag      string
	Vaccine        string
	DosesScheduled int
	DosesGiven     int

	RecordedBy engine.UserID
	RecordedAt time.Time
}

// =============================================================================
// ALERT
// =============================================================================

type Alert struct {
	ID     string
	FarmID engine.FarmID

	WorkerID string
	TaskID   string

	Severity engine.AlertSeverity
	Metric   string
	Value    decimal.Decimal
	Message  string

	CreatedAt time.Time
}

// =============================================================================
// AUDIT
// =============================================================================

type AuditOutcome string

const (
	AuditAllow AuditOutcome = "allow"
	AuditDeny  AuditOutcome = "deny"
)

// AuditEntry records who attempted what and how it was decided.
// Authorization denials and completed transitions are both recorded.
type AuditEntry struct {
	ID      string
	FarmID  engine.FarmID
	ActorID engine.UserID
	Action  string
	Outcome AuditOutcome
	Detail  string
	At      time.Time
}
