/*
Package sqlite provides the SQLite-backed farm.Store implementation.

PURPOSE:
  Production persistence for every farm resource. The same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

OPTIMISTIC LOCKING:
  Every mutable table carries a version column. Updates run as

    UPDATE ... SET ..., version = version + 1
    WHERE id = ? AND version = ?

  and report engine.ErrVersionConflict when no row matched but the id
  exists. This is the database half of the exactly-once transition
  guarantee; the services re-read and re-decide on conflict.

ERROR MAPPING:
  sql.ErrNoRows          -> engine.ErrNotFound
  driver/connection fail -> engine.ErrPersistenceUnavailable (retryable)

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery
  A mutex additionally serializes multi-statement transactions; single
  statements are atomic on their own.

TIMESTAMPS AND DECIMALS:
  Times are stored as RFC3339 TEXT in UTC. Monetary and hour values are
  stored as decimal strings, never floats.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - farm/store.go: Interface definition
  - farm/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/acrefield/farm-engine/engine"
	"github.com/acrefield/farm-engine/farm"
)

// Store implements farm.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes WithTx; SQLite has a single writer
	queries
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, queries: queries{run: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS farms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Role bindings: one row per (farm, user). Versioned so role changes
	-- are compare-and-swap like everything else.
	CREATE TABLE IF NOT EXISTS role_bindings (
		farm_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (farm_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_bindings_farm ON role_bindings(farm_id);

	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		farm_id TEXT NOT NULL,
		user_id TEXT,
		name TEXT NOT NULL,
		hourly_rate TEXT NOT NULL,
		status TEXT NOT NULL,
		terminated_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_workers_farm ON workers(farm_id);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		farm_id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		date TEXT NOT NULL,
		hours TEXT NOT NULL,
		duty TEXT NOT NULL,
		notes TEXT,
		status TEXT NOT NULL,
		approved_by TEXT,
		approved_at TEXT,
		completed_at TEXT,
		cancelled_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	-- Hot path: the labor report scans completed shifts by farm and date.
	CREATE INDEX IF NOT EXISTS idx_shifts_farm_status_date
		ON shifts(farm_id, status, date);
	CREATE INDEX IF NOT EXISTS idx_shifts_worker ON shifts(worker_id);

	CREATE TABLE IF NOT EXISTS timeoff_requests (
		id TEXT PRIMARY KEY,
		farm_id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL,
		approved_by TEXT,
		approved_at TEXT,
		rejection_reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_timeoff_farm_status
		ON timeoff_requests(farm_id, status);

	CREATE TABLE IF NOT EXISTS payroll_records (
		id TEXT PRIMARY KEY,
		farm_id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		gross_amount TEXT NOT NULL,
		net_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		approved_by TEXT,
		approved_at TEXT,
		paid_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_payroll_farm_status
		ON payroll_records(farm_id, status);

	CREATE TABLE IF NOT EXISTS task_assignments (
		id TEXT PRIMARY KEY,
		farm_id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		estimated_hours TEXT NOT NULL,
		actual_hours TEXT,
		efficiency_pct TEXT,
		status TEXT NOT NULL,
		completed_at TEXT,
		cancelled_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_farm_status
		ON task_assignments(farm_id, status);

	CREATE TABLE IF NOT EXISTS health_records (
		id TEXT PRIMARY KEY,
		farm_id TEXT NOT NULL,
		animal_tag TEXT NOT NULL,
		vaccine TEXT NOT NULL,
		doses_scheduled INTEGER NOT NULL,
		doses_given INTEGER NOT NULL,
		recorded_by TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_health_farm_animal
		ON health_records(farm_id, animal_tag);

	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		farm_id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		severity TEXT NOT NULL,
		metric TEXT NOT NULL,
		value TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_farm ON alerts(farm_id);

	-- Append-only. No UPDATE or DELETE statements touch this table.
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		farm_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_farm ON audit_log(farm_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(farm.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries: queries{run: sqlTx}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return persistErr("commit transaction", err)
	}
	return nil
}

type txStore struct {
	queries
}

// WithTx inside a transaction reuses the open transaction.
func (ts *txStore) WithTx(_ context.Context, fn func(farm.Store) error) error {
	return fn(ts)
}

// =============================================================================
// QUERY LAYER
// =============================================================================

// runner is satisfied by both *sql.DB and *sql.Tx.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	run runner
}

// -----------------------------------------------------------------------------
// Farms
// -----------------------------------------------------------------------------

func (q queries) InsertFarm(ctx context.Context, f farm.Farm) error {
	_, err := q.run.ExecContext(ctx,
		`INSERT INTO farms (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.Name, f.OwnerID, timeStr(f.CreatedAt),
	)
	if err != nil {
		return persistErr("insert farm", err)
	}
	return nil
}

func (q queries) GetFarm(ctx context.Context, id engine.FarmID) (*farm.Farm, error) {
	var f farm.Farm
	var createdAt string
	err := q.run.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM farms WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.OwnerID, &createdAt)
	if err != nil {
		return nil, readErr("get farm", err)
	}
	f.CreatedAt = parseTime(createdAt)
	return &f, nil
}

// -----------------------------------------------------------------------------
// Role bindings
// -----------------------------------------------------------------------------

func (q queries) InsertBinding(ctx context.Context, b engine.RoleBinding) error {
	_, err := q.run.ExecContext(ctx,
		`INSERT INTO role_bindings (farm_id, user_id, role, created_at, version)
		 VALUES (?, ?, ?, ?, ?)`,
		b.FarmID, b.UserID, int(b.Role), timeStr(b.CreatedAt), b.Version,
	)
	if err != nil {
		return persistErr("insert binding", err)
	}
	return nil
}

func (q queries) GetBinding(ctx context.Context, farmID engine.FarmID, userID engine.UserID) (*engine.RoleBinding, error) {
	var b engine.RoleBinding
	var role int
	var createdAt string
	err := q.run.QueryRowContext(ctx,
		`SELECT farm_id, user_id, role, created_at, version
		 FROM role_bindings WHERE farm_id = ? AND user_id = ?`,
		farmID, userID,
	).Scan(&b.FarmID, &b.UserID, &role, &createdAt, &b.Version)
	if err != nil {
		return nil, readErr("get binding", err)
	}
	b.Role = engine.Role(role)
	b.CreatedAt = parseTime(createdAt)
	return &b, nil
}

func (q queries) ListBindings(ctx context.Context, farmID engine.FarmID) ([]engine.RoleBinding, error) {
	rows, err := q.run.QueryContext(ctx,
		`SELECT farm_id, user_id, role, created_at, version
		 FROM role_bindings WHERE farm_id = ? ORDER BY created_at, user_id`,
		farmID,
	)
	if err != nil {
		return nil, persistErr("list bindings", err)
	}
	defer rows.Close()

	var out []engine.RoleBinding
	for rows.Next() {
		var b engine.RoleBinding
		var role int
		var createdAt string
		if err := rows.Scan(&b.FarmID, &b.UserID, &role, &createdAt, &b.Version); err != nil {
			return nil, persistErr("scan binding", err)
		}
		b.Role = engine.Role(role)
		b.CreatedAt = parseTime(createdAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q queries) UpdateBinding(ctx context.Context, b engine.RoleBinding, expectedVersion int64) error {
	res, err := q.run.ExecContext(ctx,
		`UPDATE role_bindings SET role = ?, version = version + 1
		 WHERE farm_id = ? AND user_id = ? AND version = ?`,
		int(b.Role), b.FarmID, b.UserID, expectedVersion,
	)
	if err != nil {
		return persistErr("update binding", err)
	}
	return q.casOutcome(ctx, res,
		`SELECT COUNT(*) FROM role_bindings WHERE farm_id = ? AND user_id = ?`,
		b.FarmID, b.UserID)
}

func (q queries) DeleteBinding(ctx context.Context, farmID engine.FarmID, userID engine.UserID) error {
	res, err := q.run.ExecContext(ctx,
		`DELETE FROM role_bindings WHERE farm_id = ? AND user_id = ?`,
		farmID, userID,
	)
	if err != nil {
		return persistErr("delete binding", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func (q queries) CountOwners(ctx context.Context, farmID engine.FarmID) (int, error) {
	var n int
	err := q.run.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM role_bindings WHERE farm_id = ? AND role = ?`,
		farmID, int(engine.RoleOwner),
	).Scan(&n)
	if err != nil {
		return 0, persistErr("count owners", err)
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Workers
// -----------------------------------------------------------------------------

func (q queries) InsertWorker(ctx context.Context, w farm.Worker) error {
	_, err := q.run.ExecContext(ctx,
		`INSERT INTO workers
		 (id, farm_id, user_id, name, hourly_rate, status, terminated_at, created_at, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.FarmID, nullString(string(w.UserID)), w.Name, w.HourlyRate.String(),
		w.Status, nullTime(w.TerminatedAt), timeStr(w.CreatedAt), timeStr(w.UpdatedAt), w.Version,
	)
	if err != nil {
		return persistErr("insert worker", err)
	}
	return nil
}

func (q queries) GetWorker(ctx context.Context, id string) (*farm.Worker, error) {
	row := q.run.QueryRowContext(ctx,
		`SELECT id, farm_id, user_id, name, hourly_rate, status, terminated_at, created_at, updated_at, version
		 FROM workers WHERE id = ?`, id)
	w, err := scanWorker(row)
	if err != nil {
		return nil, readErr("get worker", err)
	}
	return w, nil
}

func (q queries) ListWorkers(ctx context.Context, farmID engine.FarmID) ([]farm.Worker, error) {
	rows, err := q.run.QueryContext(ctx,
		`SELECT id, farm_id, user_id, name, hourly_rate, status, terminated_at, created_at, updated_at, version
		 FROM workers WHERE farm_id = ? ORDER BY created_at, id`, farmID)
	if err != nil {
		return nil, persistErr("list workers", err)
	}
	defer rows.Close()

	var out []farm.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, persistErr("scan worker", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (q queries) UpdateWorker(ctx context.Context, w farm.Worker, expectedVersion int64) error {
	res, err := q.run.ExecContext(ctx,
		`UPDATE workers SET
		   name = ?, hourly_rate = ?, status = ?, terminated_at = ?, updated_at = ?,
		   version = version + 1
		 WHERE id = ? AND version = ?`,
		w.Name, w.HourlyRate.String(), w.Status, nullTime(w.TerminatedAt),
		timeStr(w.UpdatedAt), w.ID, expectedVersion,
	)
	if err != nil {
		return persistErr("update worker", err)
	}
	return q.casOutcome(ctx, res, `SELECT COUNT(*) FROM workers WHERE id = ?`, w.ID)
}

// -----------------------------------------------------------------------------
// Shifts
// -----------------------------------------------------------------------------

func (q queries) InsertShift(ctx context.Context, s farm.Shift) error {
	_, err := q.run.ExecContext(ctx,
		`INSERT INTO shifts
		 (id, farm_id, worker_id, date, hours, duty, notes, status,
		  approved_by, approved_at, completed_at, cancelled_at, created_at, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.FarmID, s.WorkerID, timeStr(s.Date), s.Hours.String(), s.Duty, s.Notes, s.Status,
		nullUser(s.ApprovedBy), nullTime(s.ApprovedAt), nullTime(s.CompletedAt), nullTime(s.CancelledAt),
		timeStr(s.CreatedAt), timeStr(s.UpdatedAt), s.Version,
	)
	if err != nil {
		return persistErr("insert shift", err)
	}
	return nil
}

func (q queries) GetShift(ctx context.Context, id string) (*farm.Shift, error) {
	row := q.run.QueryRowContext(ctx, selectShift+` WHERE id = ?`, id)
	s, err := scanShift(row)
	if err != nil {
		return nil, readErr("get shift", err)
	}
	return s, nil
}

const selectShift = `SELECT id, farm_id, worker_id, date, hours, duty, notes, status,
	approved_by, approved_at, completed_at, cancelled_at, created_at, updated_at, version
	FROM shifts`

func (q queries) ListShifts(ctx context.Context, f farm.ShiftFilter) ([]farm.Shift, error) {
	query := selectShift + ` WHERE farm_id = ?`
	args := []any{f.FarmID}
	if f.WorkerID != "" {
		query += ` AND worker_id = ?`
		args = append(args, f.WorkerID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.From != nil {
		query += ` AND date >= ?`
		args = append(args, timeStr(*f.From))
	}
	if f.To != nil {
		query += ` AND date <= ?`
		args = append(args, timeStr(*f.To))
	}
	query += ` ORDER BY date, id`

	rows, err := q.run.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list shifts", err)
	}
	defer rows.Close()

	var out []farm.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, persistErr("scan shift", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (q queries) UpdateShift(ctx context.Context, s farm.Shift, expectedVersion int64) error {
	res, err := q.run.ExecContext(ctx,
		`UPDATE shifts SET
		   status = ?, approved_by = ?, approved_at = ?, completed_at = ?, cancelled_at = ?,
		   notes = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		s.Status, nullUser(s.ApprovedBy), nullTime(s.ApprovedAt), nullTime(s.CompletedAt),
		nullTime(s.CancelledAt), s.Notes, timeStr(s.UpdatedAt), s.ID, expectedVersion,
	)
	if err != nil {
		return persistErr("update shift", err)
	}
	return q.casOutcome(ctx, res, `SELECT COUNT(*) FROM shifts WHERE id = ?`, s.ID)
}

// -----------------------------------------------------------------------------
// Time off
// -----------------------------------------------------------------------------

const selectTimeOff = `SELECT id, farm_id, worker_id, from_date, to_date, reason, status,
	approved_by, approved_at, rejection_reason, created_at, updated_at, version
	FROM timeoff_requests`

func (q queries) InsertTimeOff(ctx context.Context, r farm.TimeOffRequest) error {
	_, err := q.run.ExecContext(ctx,
		`INSERT INTO timeoff_requests
		 (id, farm_id, worker_id, from_date, to_date, reason, status,
		  approved_by, approved_at, rejection_reason, created_at, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FarmID, r.WorkerID, timeStr(r.From), timeStr(r.To), r.Reason, r.Status,
		nullUser(r.ApprovedBy), nullTime(r.ApprovedAt), nullStringPtr(r.RejectionReason),
		timeStr(r.CreatedAt), timeStr(r.UpdatedAt), r.Version,
	)
	if err != nil {
		return persistErr("insert timeoff", err)
	}
	return nil
}

func (q queries) GetTimeOff(ctx context.Context, id string) (*farm.TimeOffRequest, error) {
	row := q.run.QueryRowContext(ctx, selectTimeOff+` WHERE id = ?`, id)
	r, err := scanTimeOff(row)
	if err != nil {
		return nil, readErr("get timeoff", err)
	}
	return r, nil
}

func (q queries) ListTimeOff(ctx context.Context, f farm.TimeOffFilter) ([]farm.TimeOffRequest, error) {
	query := selectTimeOff + ` WHERE farm_id = ?`
	args := []any{f.FarmID}
	if f.WorkerID != "" {
		query += ` AND worker_id = ?`
		args = append(args, f.WorkerID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.run.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list timeoff", err)
	}
	defer rows.Close()

	var out []farm.TimeOffRequest
	for rows.Next() {
		r, err := scanTimeOff(rows)
		if err != nil {
			return nil, persistErr("scan timeoff", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (q queries) UpdateTimeOff(ctx context.Context, r farm.TimeOffRequest, expectedVersion int64) error {
	res, err := q.run.ExecContext(ctx,
		`UPDATE timeoff_requests SET
		   status = ?, approved_by = ?, approved_at = ?, rejection_reason = ?,
		   updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		r.Status, nullUser(r.ApprovedBy), nullTime(r.ApprovedAt), nullStringPtr(r.RejectionReason),
		timeStr(r.UpdatedAt), r.ID, expectedVersion,
	)
	if err != nil {
		return persistErr("update timeoff", err)
	}
	return q.casOutcome(ctx, res, `SELECT COUNT(*) FROM timeoff_requests WHERE id = ?`, r.ID)
}

// -----------------------------------------------------------------------------
// Payroll
// -----------------------------------------------------------------------------

const selectPayroll = `SELECT id, farm_id, worker_id, period_start, period_end,
	gross_amount, net_amount, status, approved_by, approved_at, paid_at,
	created_at, updated_at, version
	FROM payroll_records`

func (q queries) InsertPayroll(ctx context.Context, p farm.PayrollRecord) error {
	_, err := q.run.ExecContext(ctx,
		`INSERT INTO payroll_records
		 (id, farm_id, worker_id, period_start, period_end, gross_amount, net_amount, status,
		  approved_by, approved_at, paid_at, created_at, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.FarmID, p.WorkerID, timeStr(p.PeriodStart), timeStr(p.PeriodEnd),
		p.GrossAmount.String(), p.NetAmount.String(), p.Status,
		nullUser(p.ApprovedBy), nullTime(p.ApprovedAt), nullTime(p.PaidAt),
		timeStr(p.CreatedAt), timeStr(p.UpdatedAt), p.Version,
	)
	if err != nil {
		return persistErr("insert payroll", err)
	}
	return nil
}

func (q queries) GetPayroll(ctx context.Context, id string) (*farm.PayrollRecord, error) {
	row := q.run.QueryRowContext(ctx, selectPayroll+` WHERE id = ?`, id)
	p, err := scanPayroll(row)
	if err != nil {
		return nil, readErr("get payroll", err)
	}
	return p, nil
}

func (q queries) ListPayroll(ctx context.Context, f farm.PayrollFilter) ([]farm.PayrollRecord, error) {
	query := selectPayroll + ` WHERE farm_id = ?`
	args := []any{f.FarmID}
	if f.WorkerID != "" {
		query += ` AND worker_id = ?`
		args = append(args, f.WorkerID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY period_start, id`

	rows, err := q.run.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list payroll", err)
	}
	defer rows.Close()

	var out []farm.PayrollRecord
	for rows.Next() {
		p, err := scanPayroll(rows)
		if err != nil {
			return nil, persistErr("scan payroll", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (q queries) UpdatePayroll(ctx context.Context, p farm.PayrollRecord, expectedVersion int64) error {
	res, err := q.run.ExecContext(ctx,
		`UPDATE payroll_records SET
		   status = ?, approved_by = ?, approved_at = ?, paid_at = ?,
		   updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		p.Status, nullUser(p.ApprovedBy), nullTime(p.ApprovedAt), nullTime(p.PaidAt),
		timeStr(p.UpdatedAt), p.ID, expectedVersion,
	)
	if err != nil {
		return persistErr("update payroll", err)
	}
	return q.casOutcome(ctx, res, `SELECT COUNT(*) FROM payroll_records WHERE id = ?`, p.ID)
}

// -----------------------------------------------------------------------------
// Tasks
// -----------------------------------------------------------------------------

const selectTask = `SELECT id, farm_id, worker_id, title, description, estimated_hours,
	actual_hours, efficiency_pct, status, completed_at, cancelled_at,
	created_at, updated_at, version
	FROM task_assignments`

func (q queries) InsertTask(ctx context.Context, t farm.TaskAssignment) error {
	_, err := q.run.ExecContext(ctx,
		`INSERT INTO task_assignments
		 (id, farm_id, worker_id, title, description, estimated_hours, actual_hours,
		  efficiency_pct, status, completed_at, cancelled_at, created_at, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.FarmID, t.WorkerID, t.Title, t.Description, t.EstimatedHours.String(),
		nullDecimal(t.ActualHours), nullDecimal(t.EfficiencyPct), t.Status,
		nullTime(t.CompletedAt), nullTime(t.CancelledAt),
		timeStr(t.CreatedAt), timeStr(t.UpdatedAt), t.Version,
	)
	if err != nil {
		return persistErr("insert task", err)
	}
	return nil
}

func (q queries) GetTask(ctx context.Context, id string) (*farm.TaskAssignment, error) {
	row := q.run.QueryRowContext(ctx, selectTask+` WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, readErr("get task", err)
	}
	return t, nil
}

func (q queries) ListTasks(ctx context.Context, f farm.TaskFilter) ([]farm.TaskAssignment, error) {
	query := selectTask + ` WHERE farm_id = ?`
	args := []any{f.FarmID}
	if f.WorkerID != "" {
		query += ` AND worker_id = ?`
		args = append(args, f.WorkerID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.From != nil {
		query += ` AND created_at >= ?`
		args = append(args, timeStr(*f.From))
	}
	if f.To != nil {
		query += ` AND created_at <= ?`
		args = append(args, timeStr(*f.To))
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.run.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list tasks", err)
	}
	defer rows.Close()

	var out []farm.TaskAssignment
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, persistErr("scan task", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (q queries) UpdateTask(ctx context.Context, t farm.TaskAssignment, expectedVersion int64) error {
	res, err := q.run.ExecContext(ctx,
		`UPDATE task_assignments SET
		   status = ?, actual_hours = ?, efficiency_pct = ?, completed_at = ?, cancelled_at = ?,
		   updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		t.Status, nullDecimal(t.ActualHours), nullDecimal(t.EfficiencyPct),
		nullTime(t.CompletedAt), nullTime(t.CancelledAt),
		timeStr(t.UpdatedAt), t.ID, expectedVersion,
	)
	if err != nil {
		return persistErr("update task", err)
	}
	return q.casOutcome(ctx, res, `SELECT COUNT(*) FROM task_assignments WHERE id = ?`, t.ID)
}

// -----------------------------------------------------------------------------
// Health records
// -----------------------------------------------------------------------------

func (q queries) InsertHealthRecord(ctx context.Context, h farm.HealthRecord) error {
	_, err := q.run.ExecContext(ctx,
		`INSERT INTO health_records
		 (id, farm_id, animal_tag, vaccine, doses_scheduled, doses_given, recorded_by, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.FarmID, h.AnimalTag, h.Vaccine, h.DosesScheduled, h.DosesGiven,
		h.RecordedBy, timeStr(h.RecordedAt),
	)
	if err != nil {
		return persistErr("insert health record", err)
	}
	return nil
}

func (q queries) ListHealthRecords(ctx context.Context, farmID engine.FarmID, animalTag string) ([]farm.HealthRecord, error) {
	query := `SELECT id, farm_id, animal_tag, vaccine, doses_scheduled, doses_given, recorded_by, recorded_at
		FROM health_records WHERE farm_id = ?`
	args := []any{farmID}
	if animalTag != "" {
		query += ` AND animal_tag = ?`
		args = append(args, animalTag)
	}
	query += ` ORDER BY recorded_at, id`

	rows, err := q.run.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list health records", err)
	}
	defer rows.Close()

	var out []farm.HealthRecord
	for rows.Next() {
		var h farm.HealthRecord
		var recordedAt string
		if err := rows.Scan(&h.ID, &h.FarmID, &h.AnimalTag, &h.Vaccine,
			&h.DosesScheduled, &h.DosesGiven, &h.RecordedBy, &recordedAt); err != nil {
			return nil, persistErr("scan health record", err)
		}
		h.RecordedAt = parseTime(recordedAt)
		out = append(out, h)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Alerts
// -----------------------------------------------------------------------------

func (q queries) InsertAlert(ctx context.Context, a farm.Alert) error {
	_, err := q.run.ExecContext(ctx,
		`INSERT INTO alerts (id, farm_id, worker_id, task_id, severity, metric, value, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.FarmID, a.WorkerID, a.TaskID, a.Severity, a.Metric, a.Value.String(),
		a.Message, timeStr(a.CreatedAt),
	)
	if err != nil {
		return persistErr("insert alert", err)
	}
	return nil
}

func (q queries) ListAlerts(ctx context.Context, farmID engine.FarmID) ([]farm.Alert, error) {
	rows, err := q.run.QueryContext(ctx,
		`SELECT id, farm_id, worker_id, task_id, severity, metric, value, message, created_at
		 FROM alerts WHERE farm_id = ? ORDER BY created_at, id`, farmID)
	if err != nil {
		return nil, persistErr("list alerts", err)
	}
	defer rows.Close()

	var out []farm.Alert
	for rows.Next() {
		var a farm.Alert
		var value, createdAt string
		if err := rows.Scan(&a.ID, &a.FarmID, &a.WorkerID, &a.TaskID, &a.Severity,
			&a.Metric, &value, &a.Message, &createdAt); err != nil {
			return nil, persistErr("scan alert", err)
		}
		a.Value = engine.MustParseDecimal(value)
		a.CreatedAt = parseTime(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Audit
// -----------------------------------------------------------------------------

func (q queries) AppendAudit(ctx context.Context, e farm.AuditEntry) error {
	_, err := q.run.ExecContext(ctx,
		`INSERT INTO audit_log (id, farm_id, actor_id, action, outcome, detail, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.FarmID, e.ActorID, e.Action, e.Outcome, e.Detail, timeStr(e.At),
	)
	if err != nil {
		return persistErr("append audit", err)
	}
	return nil
}

// =============================================================================
// ROW SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorker(row rowScanner) (*farm.Worker, error) {
	var w farm.Worker
	var userID, terminatedAt sql.NullString
	var hourlyRate, createdAt, updatedAt string
	if err := row.Scan(&w.ID, &w.FarmID, &userID, &w.Name, &hourlyRate, &w.Status,
		&terminatedAt, &createdAt, &updatedAt, &w.Version); err != nil {
		return nil, err
	}
	w.UserID = engine.UserID(userID.String)
	w.HourlyRate = engine.MustParseDecimal(hourlyRate)
	w.TerminatedAt = parseNullTime(terminatedAt)
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	return &w, nil
}

func scanShift(row rowScanner) (*farm.Shift, error) {
	var s farm.Shift
	var notes, approvedBy, approvedAt, completedAt, cancelledAt sql.NullString
	var date, hours, createdAt, updatedAt string
	if err := row.Scan(&s.ID, &s.FarmID, &s.WorkerID, &date, &hours, &s.Duty, &notes,
		&s.Status, &approvedBy, &approvedAt, &completedAt, &cancelledAt,
		&createdAt, &updatedAt, &s.Version); err != nil {
		return nil, err
	}
	s.Date = parseTime(date)
	s.Hours = engine.MustParseDecimal(hours)
	s.Notes = notes.String
	s.ApprovedBy = parseNullUser(approvedBy)
	s.ApprovedAt = parseNullTime(approvedAt)
	s.CompletedAt = parseNullTime(completedAt)
	s.CancelledAt = parseNullTime(cancelledAt)
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func scanTimeOff(row rowScanner) (*farm.TimeOffRequest, error) {
	var r farm.TimeOffRequest
	var approvedBy, approvedAt, rejectionReason sql.NullString
	var from, to, createdAt, updatedAt string
	if err := row.Scan(&r.ID, &r.FarmID, &r.WorkerID, &from, &to, &r.Reason, &r.Status,
		&approvedBy, &approvedAt, &rejectionReason, &createdAt, &updatedAt, &r.Version); err != nil {
		return nil, err
	}
	r.From = parseTime(from)
	r.To = parseTime(to)
	r.ApprovedBy = parseNullUser(approvedBy)
	r.ApprovedAt = parseNullTime(approvedAt)
	if rejectionReason.Valid {
		r.RejectionReason = &rejectionReason.String
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func scanPayroll(row rowScanner) (*farm.PayrollRecord, error) {
	var p farm.PayrollRecord
	var approvedBy, approvedAt, paidAt sql.NullString
	var periodStart, periodEnd, gross, net, createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.FarmID, &p.WorkerID, &periodStart, &periodEnd,
		&gross, &net, &p.Status, &approvedBy, &approvedAt, &paidAt,
		&createdAt, &updatedAt, &p.Version); err != nil {
		return nil, err
	}
	p.PeriodStart = parseTime(periodStart)
	p.PeriodEnd = parseTime(periodEnd)
	p.GrossAmount = engine.MustParseDecimal(gross)
	p.NetAmount = engine.MustParseDecimal(net)
	p.ApprovedBy = parseNullUser(approvedBy)
	p.ApprovedAt = parseNullTime(approvedAt)
	p.PaidAt = parseNullTime(paidAt)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func scanTask(row rowScanner) (*farm.TaskAssignment, error) {
	var t farm.TaskAssignment
	var description, actualHours, efficiencyPct, completedAt, cancelledAt sql.NullString
	var estimated, createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.FarmID, &t.WorkerID, &t.Title, &description, &estimated,
		&actualHours, &efficiencyPct, &t.Status, &completedAt, &cancelledAt,
		&createdAt, &updatedAt, &t.Version); err != nil {
		return nil, err
	}
	t.Description = description.String
	t.EstimatedHours = engine.MustParseDecimal(estimated)
	t.ActualHours = parseNullDecimal(actualHours)
	t.EfficiencyPct = parseNullDecimal(efficiencyPct)
	t.CompletedAt = parseNullTime(completedAt)
	t.CancelledAt = parseNullTime(cancelledAt)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// casOutcome distinguishes a missing row from a version mismatch after a
// compare-and-swap UPDATE touched zero rows.
func (q queries) casOutcome(ctx context.Context, res sql.Result, existsQuery string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("rows affected", err)
	}
	if n > 0 {
		return nil
	}

	var count int
	if err := q.run.QueryRowContext(ctx, existsQuery, args...).Scan(&count); err != nil {
		return persistErr("existence check", err)
	}
	if count == 0 {
		return engine.ErrNotFound
	}
	return engine.ErrVersionConflict
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, engine.ErrPersistenceUnavailable, err)
}

func readErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return engine.ErrNotFound
	}
	return persistErr(op, err)
}

func timeStr(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: timeStr(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullUser(u *engine.UserID) sql.NullString {
	if u == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*u), Valid: true}
}

func parseNullUser(s sql.NullString) *engine.UserID {
	if !s.Valid {
		return nil
	}
	u := engine.UserID(s.String)
	return &u
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) *decimal.Decimal {
	if !s.Valid {
		return nil
	}
	d := engine.MustParseDecimal(s.String)
	return &d
}
