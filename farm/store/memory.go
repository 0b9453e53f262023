// Package store provides an in-memory farm.Store implementation (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/acrefield/farm-engine/engine"
	"github.com/acrefield/farm-engine/farm"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements farm.Store with maps. Updates enforce the same
// optimistic version check as the SQLite store, so transition races are
// reproducible in tests.
type Memory struct {
	mu sync.RWMutex
	d  data
}

type bindingKey struct {
	FarmID engine.FarmID
	UserID engine.UserID
}

type data struct {
	farms    map[engine.FarmID]farm.Farm
	bindings map[bindingKey]engine.RoleBinding
	workers  map[string]farm.Worker
	shifts   map[string]farm.Shift
	timeoff  map[string]farm.TimeOffRequest
	payroll  map[string]farm.PayrollRecord
	tasks    map[string]farm.TaskAssignment
	health   []farm.HealthRecord
	alerts   []farm.Alert
	audit    []farm.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{d: data{
		farms:    make(map[engine.FarmID]farm.Farm),
		bindings: make(map[bindingKey]engine.RoleBinding),
		workers:  make(map[string]farm.Worker),
		shifts:   make(map[string]farm.Shift),
		timeoff:  make(map[string]farm.TimeOffRequest),
		payroll:  make(map[string]farm.PayrollRecord),
		tasks:    make(map[string]farm.TaskAssignment),
	}}
}

func (d *data) clone() data {
	c := data{
		farms:    make(map[engine.FarmID]farm.Farm, len(d.farms)),
		bindings: make(map[bindingKey]engine.RoleBinding, len(d.bindings)),
		workers:  make(map[string]farm.Worker, len(d.workers)),
		shifts:   make(map[string]farm.Shift, len(d.shifts)),
		timeoff:  make(map[string]farm.TimeOffRequest, len(d.timeoff)),
		payroll:  make(map[string]farm.PayrollRecord, len(d.payroll)),
		tasks:    make(map[string]farm.TaskAssignment, len(d.tasks)),
		health:   append([]farm.HealthRecord(nil), d.health...),
		alerts:   append([]farm.Alert(nil), d.alerts...),
		audit:    append([]farm.AuditEntry(nil), d.audit...),
	}
	for k, v := range d.farms {
		c.farms[k] = v
	}
	for k, v := range d.bindings {
		c.bindings[k] = v
	}
	for k, v := range d.workers {
		c.workers[k] = v
	}
	for k, v := range d.shifts {
		c.shifts[k] = v
	}
	for k, v := range d.timeoff {
		c.timeoff[k] = v
	}
	for k, v := range d.payroll {
		c.payroll[k] = v
	}
	for k, v := range d.tasks {
		c.tasks[k] = v
	}
	return c
}

// =============================================================================
// FARMS AND BINDINGS
// =============================================================================

func (d *data) insertFarm(f farm.Farm) error {
	d.farms[f.ID] = f
	return nil
}

func (d *data) getFarm(id engine.FarmID) (*farm.Farm, error) {
	f, ok := d.farms[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	out := f
	return &out, nil
}

func (d *data) insertBinding(b engine.RoleBinding) error {
	if b.Version == 0 {
		b.Version = 1
	}
	d.bindings[bindingKey{b.FarmID, b.UserID}] = b
	return nil
}

func (d *data) getBinding(farmID engine.FarmID, userID engine.UserID) (*engine.RoleBinding, error) {
	b, ok := d.bindings[bindingKey{farmID, userID}]
	if !ok {
		return nil, engine.ErrNotFound
	}
	out := b
	return &out, nil
}

func (d *data) listBindings(farmID engine.FarmID) ([]engine.RoleBinding, error) {
	var out []engine.RoleBinding
	for _, b := range d.bindings {
		if b.FarmID == farmID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (d *data) updateBinding(b engine.RoleBinding, expectedVersion int64) error {
	k := bindingKey{b.FarmID, b.UserID}
	cur, ok := d.bindings[k]
	if !ok {
		return engine.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return engine.ErrVersionConflict
	}
	b.Version = expectedVersion + 1
	d.bindings[k] = b
	return nil
}

func (d *data) deleteBinding(farmID engine.FarmID, userID engine.UserID) error {
	k := bindingKey{farmID, userID}
	if _, ok := d.bindings[k]; !ok {
		return engine.ErrNotFound
	}
	delete(d.bindings, k)
	return nil
}

func (d *data) countOwners(farmID engine.FarmID) (int, error) {
	n := 0
	for _, b := range d.bindings {
		if b.FarmID == farmID && b.Role == engine.RoleOwner {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// WORKERS
// =============================================================================

func (d *data) insertWorker(w farm.Worker) error {
	if w.Version == 0 {
		w.Version = 1
	}
	d.workers[w.ID] = w
	return nil
}

func (d *data) getWorker(id string) (*farm.Worker, error) {
	w, ok := d.workers[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	out := w
	return &out, nil
}

func (d *data) listWorkers(farmID engine.FarmID) ([]farm.Worker, error) {
	var out []farm.Worker
	for _, w := range d.workers {
		if w.FarmID == farmID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *data) updateWorker(w farm.Worker, expectedVersion int64) error {
	cur, ok := d.workers[w.ID]
	if !ok {
		return engine.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return engine.ErrVersionConflict
	}
	w.Version = expectedVersion + 1
	d.workers[w.ID] = w
	return nil
}

// =============================================================================
// SHIFTS
// =============================================================================

func (d *data) insertShift(s farm.Shift) error {
	if s.Version == 0 {
		s.Version = 1
	}
	d.shifts[s.ID] = s
	return nil
}

func (d *data) getShift(id string) (*farm.Shift, error) {
	s, ok := d.shifts[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	out := s
	return &out, nil
}

func (d *data) listShifts(f farm.ShiftFilter) ([]farm.Shift, error) {
	var out []farm.Shift
	for _, s := range d.shifts {
		if s.FarmID != f.FarmID {
			continue
		}
		if f.WorkerID != "" && s.WorkerID != f.WorkerID {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if !inWindow(s.Date, f.From, f.To) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (d *data) updateShift(s farm.Shift, expectedVersion int64) error {
	cur, ok := d.shifts[s.ID]
	if !ok {
		return engine.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return engine.ErrVersionConflict
	}
	s.Version = expectedVersion + 1
	d.shifts[s.ID] = s
	return nil
}

// =============================================================================
// TIME OFF
// =============================================================================

func (d *data) insertTimeOff(r farm.TimeOffRequest) error {
	if r.Version == 0 {
		r.Version = 1
	}
	d.timeoff[r.ID] = r
	return nil
}

func (d *data) getTimeOff(id string) (*farm.TimeOffRequest, error) {
	r, ok := d.timeoff[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	out := r
	return &out, nil
}

func (d *data) listTimeOff(f farm.TimeOffFilter) ([]farm.TimeOffRequest, error) {
	var out []farm.TimeOffRequest
	for _, r := range d.timeoff {
		if r.FarmID != f.FarmID {
			continue
		}
		if f.WorkerID != "" && r.WorkerID != f.WorkerID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (d *data) updateTimeOff(r farm.TimeOffRequest, expectedVersion int64) error {
	cur, ok := d.timeoff[r.ID]
	if !ok {
		return engine.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return engine.ErrVersionConflict
	}
	r.Version = expectedVersion + 1
	d.timeoff[r.ID] = r
	return nil
}

// =============================================================================
// PAYROLL
// =============================================================================

func (d *data) insertPayroll(p farm.PayrollRecord) error {
	if p.Version == 0 {
		p.Version = 1
	}
	d.payroll[p.ID] = p
	return nil
}

func (d *data) getPayroll(id string) (*farm.PayrollRecord, error) {
	p, ok := d.payroll[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	out := p
	return &out, nil
}

func (d *data) listPayroll(f farm.PayrollFilter) ([]farm.PayrollRecord, error) {
	var out []farm.PayrollRecord
	for _, p := range d.payroll {
		if p.FarmID != f.FarmID {
			continue
		}
		if f.WorkerID != "" && p.WorkerID != f.WorkerID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out, nil
}

func (d *data) updatePayroll(p farm.PayrollRecord, expectedVersion int64) error {
	cur, ok := d.payroll[p.ID]
	if !ok {
		return engine.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return engine.ErrVersionConflict
	}
	p.Version = expectedVersion + 1
	d.payroll[p.ID] = p
	return nil
}

// =============================================================================
// TASKS
// =============================================================================

func (d *data) insertTask(t farm.TaskAssignment) error {
	if t.Version == 0 {
		t.Version = 1
	}
	d.tasks[t.ID] = t
	return nil
}

func (d *data) getTask(id string) (*farm.TaskAssignment, error) {
	t, ok := d.tasks[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	out := t
	return &out, nil
}

func (d *data) listTasks(f farm.TaskFilter) ([]farm.TaskAssignment, error) {
	var out []farm.TaskAssignment
	for _, t := range d.tasks {
		if t.FarmID != f.FarmID {
			continue
		}
		if f.WorkerID != "" && t.WorkerID != f.WorkerID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if !inWindow(t.CreatedAt, f.From, f.To) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (d *data) updateTask(t farm.TaskAssignment, expectedVersion int64) error {
	cur, ok := d.tasks[t.ID]
	if !ok {
		return engine.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return engine.ErrVersionConflict
	}
	t.Version = expectedVersion + 1
	d.tasks[t.ID] = t
	return nil
}

// =============================================================================
// HEALTH, ALERTS, AUDIT
// =============================================================================

func (d *data) insertHealthRecord(h farm.HealthRecord) error {
	d.health = append(d.health, h)
	return nil
}

func (d *data) listHealthRecords(farmID engine.FarmID, animalTag string) ([]farm.HealthRecord, error) {
	var out []farm.HealthRecord
	for _, h := range d.health {
		if h.FarmID != farmID {
			continue
		}
		if animalTag != "" && h.AnimalTag != animalTag {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func (d *data) insertAlert(a farm.Alert) error {
	d.alerts = append(d.alerts, a)
	return nil
}

func (d *data) listAlerts(farmID engine.FarmID) ([]farm.Alert, error) {
	var out []farm.Alert
	for _, a := range d.alerts {
		if a.FarmID == farmID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (d *data) appendAudit(e farm.AuditEntry) error {
	d.audit = append(d.audit, e)
	return nil
}

func inWindow(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

// =============================================================================
// LOCKED WRAPPERS (farm.Store)
// =============================================================================

func (m *Memory) InsertFarm(_ context.Context, f farm.Farm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.insertFarm(f)
}

func (m *Memory) GetFarm(_ context.Context, id engine.FarmID) (*farm.Farm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getFarm(id)
}

func (m *Memory) InsertBinding(_ context.Context, b engine.RoleBinding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.insertBinding(b)
}

func (m *Memory) GetBinding(_ context.Context, farmID engine.FarmID, userID engine.UserID) (*engine.RoleBinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getBinding(farmID, userID)
}

func (m *Memory) ListBindings(_ context.Context, farmID engine.FarmID) ([]engine.RoleBinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.listBindings(farmID)
}

func (m *Memory) UpdateBinding(_ context.Context, b engine.RoleBinding, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.updateBinding(b, expectedVersion)
}

func (m *Memory) DeleteBinding(_ context.Context, farmID engine.FarmID, userID engine.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.deleteBinding(farmID, userID)
}

func (m *Memory) CountOwners(_ context.Context, farmID engine.FarmID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.countOwners(farmID)
}

func (m *Memory) InsertWorker(_ context.Context, w farm.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.insertWorker(w)
}

func (m *Memory) GetWorker(_ context.Context, id string) (*farm.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getWorker(id)
}

func (m *Memory) ListWorkers(_ context.Context, farmID engine.FarmID) ([]farm.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.listWorkers(farmID)
}

func (m *Memory) UpdateWorker(_ context.Context, w farm.Worker, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.updateWorker(w, expectedVersion)
}

func (m *Memory) InsertShift(_ context.Context, s farm.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.insertShift(s)
}

func (m *Memory) GetShift(_ context.Context, id string) (*farm.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getShift(id)
}

func (m *Memory) ListShifts(_ context.Context, f farm.ShiftFilter) ([]farm.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.listShifts(f)
}

func (m *Memory) UpdateShift(_ context.Context, s farm.Shift, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.updateShift(s, expectedVersion)
}

func (m *Memory) InsertTimeOff(_ context.Context, r farm.TimeOffRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.insertTimeOff(r)
}

func (m *Memory) GetTimeOff(_ context.Context, id string) (*farm.TimeOffRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getTimeOff(id)
}

func (m *Memory) ListTimeOff(_ context.Context, f farm.TimeOffFilter) ([]farm.TimeOffRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.listTimeOff(f)
}

func (m *Memory) UpdateTimeOff(_ context.Context, r farm.TimeOffRequest, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.updateTimeOff(r, expectedVersion)
}

func (m *Memory) InsertPayroll(_ context.Context, p farm.PayrollRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.insertPayroll(p)
}

func (m *Memory) GetPayroll(_ context.Context, id string) (*farm.PayrollRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getPayroll(id)
}

func (m *Memory) ListPayroll(_ context.Context, f farm.PayrollFilter) ([]farm.PayrollRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.listPayroll(f)
}

func (m *Memory) UpdatePayroll(_ context.Context, p farm.PayrollRecord, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.updatePayroll(p, expectedVersion)
}

func (m *Memory) InsertTask(_ context.Context, t farm.TaskAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.insertTask(t)
}

func (m *Memory) GetTask(_ context.Context, id string) (*farm.TaskAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getTask(id)
}

func (m *Memory) ListTasks(_ context.Context, f farm.TaskFilter) ([]farm.TaskAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.listTasks(f)
}

func (m *Memory) UpdateTask(_ context.Context, t farm.TaskAssignment, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.updateTask(t, expectedVersion)
}

func (m *Memory) InsertHealthRecord(_ context.Context, h farm.HealthRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.insertHealthRecord(h)
}

func (m *Memory) ListHealthRecords(_ context.Context, farmID engine.FarmID, animalTag string) ([]farm.HealthRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.listHealthRecords(farmID, animalTag)
}

func (m *Memory) InsertAlert(_ context.Context, a farm.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.insertAlert(a)
}

func (m *Memory) ListAlerts(_ context.Context, farmID engine.FarmID) ([]farm.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.listAlerts(farmID)
}

func (m *Memory) AppendAudit(_ context.Context, e farm.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.appendAudit(e)
}

// AuditEntries returns a copy of the audit trail. Test helper.
func (m *Memory) AuditEntries() []farm.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]farm.AuditEntry(nil), m.d.audit...)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn against a transactional view. The write lock is held
// for the whole function, which both simulates a database transaction and
// serializes read-decide-write sequences in tests: racing transitions see
// each other's committed state, exactly like SQLite under WithTx.
func (m *Memory) WithTx(_ context.Context, fn func(farm.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(&txView{d: &m.d}); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

// txView exposes the unlocked data to fn while WithTx holds the lock.
type txView struct {
	d *data
}

func (v *txView) InsertFarm(_ context.Context, f farm.Farm) error { return v.d.insertFarm(f) }
func (v *txView) GetFarm(_ context.Context, id engine.FarmID) (*farm.Farm, error) {
	return v.d.getFarm(id)
}
func (v *txView) InsertBinding(_ context.Context, b engine.RoleBinding) error {
	return v.d.insertBinding(b)
}
func (v *txView) GetBinding(_ context.Context, farmID engine.FarmID, userID engine.UserID) (*engine.RoleBinding, error) {
	return v.d.getBinding(farmID, userID)
}
func (v *txView) ListBindings(_ context.Context, farmID engine.FarmID) ([]engine.RoleBinding, error) {
	return v.d.listBindings(farmID)
}
func (v *txView) UpdateBinding(_ context.Context, b engine.RoleBinding, expectedVersion int64) error {
	return v.d.updateBinding(b, expectedVersion)
}
func (v *txView) DeleteBinding(_ context.Context, farmID engine.FarmID, userID engine.UserID) error {
	return v.d.deleteBinding(farmID, userID)
}
func (v *txView) CountOwners(_ context.Context, farmID engine.FarmID) (int, error) {
	return v.d.countOwners(farmID)
}
func (v *txView) InsertWorker(_ context.Context, w farm.Worker) error { return v.d.insertWorker(w) }
func (v *txView) GetWorker(_ context.Context, id string) (*farm.Worker, error) {
	return v.d.getWorker(id)
}
func (v *txView) ListWorkers(_ context.Context, farmID engine.FarmID) ([]farm.Worker, error) {
	return v.d.listWorkers(farmID)
}
func (v *txView) UpdateWorker(_ context.Context, w farm.Worker, expectedVersion int64) error {
	return v.d.updateWorker(w, expectedVersion)
}
func (v *txView) InsertShift(_ context.Context, s farm.Shift) error { return v.d.insertShift(s) }
func (v *txView) GetShift(_ context.Context, id string) (*farm.Shift, error) {
	return v.d.getShift(id)
}
func (v *txView) ListShifts(_ context.Context, f farm.ShiftFilter) ([]farm.Shift, error) {
	return v.d.listShifts(f)
}
func (v *txView) UpdateShift(_ context.Context, s farm.Shift, expectedVersion int64) error {
	return v.d.updateShift(s, expectedVersion)
}
func (v *txView) InsertTimeOff(_ context.Context, r farm.TimeOffRequest) error {
	return v.d.insertTimeOff(r)
}
func (v *txView) GetTimeOff(_ context.Context, id string) (*farm.TimeOffRequest, error) {
	return v.d.getTimeOff(id)
}
func (v *txView) ListTimeOff(_ context.Context, f farm.TimeOffFilter) ([]farm.TimeOffRequest, error) {
	return v.d.listTimeOff(f)
}
func (v *txView) UpdateTimeOff(_ context.Context, r farm.TimeOffRequest, expectedVersion int64) error {
	return v.d.updateTimeOff(r, expectedVersion)
}
func (v *txView) InsertPayroll(_ context.Context, p farm.PayrollRecord) error {
	return v.d.insertPayroll(p)
}
func (v *txView) GetPayroll(_ context.Context, id string) (*farm.PayrollRecord, error) {
	return v.d.getPayroll(id)
}
func (v *txView) ListPayroll(_ context.Context, f farm.PayrollFilter) ([]farm.PayrollRecord, error) {
	return v.d.listPayroll(f)
}
func (v *txView) UpdatePayroll(_ context.Context, p farm.PayrollRecord, expectedVersion int64) error {
	return v.d.updatePayroll(p, expectedVersion)
}
func (v *txView) InsertTask(_ context.Context, t farm.TaskAssignment) error {
	return v.d.insertTask(t)
}
func (v *txView) GetTask(_ context.Context, id string) (*farm.TaskAssignment, error) {
	return v.d.getTask(id)
}
func (v *txView) ListTasks(_ context.Context, f farm.TaskFilter) ([]farm.TaskAssignment, error) {
	return v.d.listTasks(f)
}
func (v *txView) UpdateTask(_ context.Context, t farm.TaskAssignment, expectedVersion int64) error {
	return v.d.updateTask(t, expectedVersion)
}
func (v *txView) InsertHealthRecord(_ context.Context, h farm.HealthRecord) error {
	return v.d.insertHealthRecord(h)
}
func (v *txView) ListHealthRecords(_ context.Context, farmID engine.FarmID, animalTag string) ([]farm.HealthRecord, error) {
	return v.d.listHealthRecords(farmID, animalTag)
}
func (v *txView) InsertAlert(_ context.Context, a farm.Alert) error { return v.d.insertAlert(a) }
func (v *txView) ListAlerts(_ context.Context, farmID engine.FarmID) ([]farm.Alert, error) {
	return v.d.listAlerts(farmID)
}
func (v *txView) AppendAudit(_ context.Context, e farm.AuditEntry) error {
	return v.d.appendAudit(e)
}

// Nested transactions reuse the current view.
func (v *txView) WithTx(_ context.Context, fn func(farm.Store) error) error {
	return fn(v)
}
