/*
store.go - Persistence boundary for the farm domain

PURPOSE:
  Defines the interface between the domain services and the database.
  Implementations: store/sqlite (production) and store/memory (tests).

VERSIONED UPDATES:
  Every Update* method takes the version the caller read. The store
  compares-and-swaps on that version and returns engine.ErrVersionConflict
  when the row moved underneath the caller. This is the per-entity
  serialization safeguard: two racing approvals on the same row cannot
  both apply.

ATOMICITY:
  WithTx runs a function against a transactional view of the store.
  Either every write inside commits or none do, which is what makes
  engine.ErrPersistenceUnavailable safe to retry.

TENANCY:
  Get* methods return the record regardless of farm; the calling service
  verifies the FarmID and reports a mismatch as engine.ErrNotFound so a
  foreign tenant learns nothing. List* methods always filter by farm.

SEE ALSO:
  - store/memory.go: In-memory implementation
  - ../store/sqlite/sqlite.go: SQLite implementation
*/
package farm

import (
	"context"
	"time"

	"github.com/acrefield/farm-engine/engine"
)

// =============================================================================
// FILTERS
// =============================================================================

type ShiftFilter struct {
	FarmID   engine.FarmID
	WorkerID string
	Status   engine.Status
	From     *time.Time
	To       *time.Time
}

type TimeOffFilter struct {
	FarmID   engine.FarmID
	WorkerID string
	Status   engine.Status
}

type PayrollFilter struct {
	FarmID   engine.FarmID
	WorkerID string
	Status   engine.Status
}

type TaskFilter struct {
	FarmID   engine.FarmID
	WorkerID string
	Status   engine.Status
	From     *time.Time
	To       *time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence adapter. Writes are all-or-nothing; reads are
// always fresh (no store-side caching of decisions).
type Store interface {
	// Farms and role bindings
	InsertFarm(ctx context.Context, f Farm) error
	GetFarm(ctx context.Context, id engine.FarmID) (*Farm, error)

	InsertBinding(ctx context.Context, b engine.RoleBinding) error
	GetBinding(ctx context.Context, farmID engine.FarmID, userID engine.UserID) (*engine.RoleBinding, error)
	ListBindings(ctx context.Context, farmID engine.FarmID) ([]engine.RoleBinding, error)
	UpdateBinding(ctx context.Context, b engine.RoleBinding, expectedVersion int64) error
	DeleteBinding(ctx context.Context, farmID engine.FarmID, userID engine.UserID) error
	CountOwners(ctx context.Context, farmID engine.FarmID) (int, error)

	// Workers
	InsertWorker(ctx context.Context, w Worker) error
	GetWorker(ctx context.Context, id string) (*Worker, error)
	ListWorkers(ctx context.Context, farmID engine.FarmID) ([]Worker, error)
	UpdateWorker(ctx context.Context, w Worker, expectedVersion int64) error

	// Shifts
	InsertShift(ctx context.Context, s Shift) error
	GetShift(ctx context.Context, id string) (*Shift, error)
	ListShifts(ctx context.Context, f ShiftFilter) ([]Shift, error)
	UpdateShift(ctx context.Context, s Shift, expectedVersion int64) error

	// Time off
	InsertTimeOff(ctx context.Context, r TimeOffRequest) error
	GetTimeOff(ctx context.Context, id string) (*TimeOffRequest, error)
	ListTimeOff(ctx context.Context, f TimeOffFilter) ([]TimeOffRequest, error)
	UpdateTimeOff(ctx context.Context, r TimeOffRequest, expectedVersion int64) error

	// Payroll
	InsertPayroll(ctx context.Context, p PayrollRecord) error
	GetPayroll(ctx context.Context, id string) (*PayrollRecord, error)
	ListPayroll(ctx context.Context, f PayrollFilter) ([]PayrollRecord, error)
	UpdatePayroll(ctx context.Context, p PayrollRecord, expectedVersion int64) error

	// Tasks
	InsertTask(ctx context.Context, t TaskAssignment) error
	GetTask(ctx context.Context, id string) (*TaskAssignment, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]TaskAssignment, error)
	UpdateTask(ctx context.Context, t TaskAssignment, expectedVersion int64) error

	// Health records
	InsertHealthRecord(ctx context.Context, h HealthRecord) error
	ListHealthRecords(ctx context.Context, farmID engine.FarmID, animalTag string) ([]HealthRecord, error)

	// Alerts
	InsertAlert(ctx context.Context, a Alert) error
	ListAlerts(ctx context.Context, farmID engine.FarmID) ([]Alert, error)

	// Audit trail (append-only)
	AppendAudit(ctx context.Context, e AuditEntry) error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
