/*
handlers.go - HTTP API handlers for the farm-management core

PURPOSE:
  Exposes the domain services via REST API. Handles HTTP request and
  response, JSON serialization, and delegates every decision to the
  domain layer. Handlers never inspect roles themselves.

ENDPOINTS:
  Team:
    POST   /api/farms                          Create farm (caller becomes owner)
    GET    /api/farms/{farmID}/members         List members
    POST   /api/farms/{farmID}/members         Add member (owner only)
    PUT    /api/farms/{farmID}/members/{userID}    Change role (owner only)
    DELETE /api/farms/{farmID}/members/{userID}    Remove member (owner only)

  Workers:
    GET    /api/farms/{farmID}/workers
    POST   /api/farms/{farmID}/workers
    POST   /api/farms/{farmID}/workers/{id}/terminate

  Shifts:
    GET    /api/farms/{farmID}/shifts
    POST   /api/farms/{farmID}/shifts
    POST   /api/farms/{farmID}/shifts/{id}/submit
    POST   /api/farms/{farmID}/shifts/{id}/confirm
    POST   /api/farms/{farmID}/shifts/{id}/complete
    POST   /api/farms/{farmID}/shifts/{id}/cancel

  Time off:
    GET    /api/farms/{farmID}/timeoff         ?status= filter
    GET    /api/farms/{farmID}/timeoff/pending
    POST   /api/farms/{farmID}/timeoff
    POST   /api/farms/{farmID}/timeoff/{id}/approve
    POST   /api/farms/{farmID}/timeoff/{id}/reject

  Payroll:
    GET    /api/farms/{farmID}/payroll
    POST   /api/farms/{farmID}/payroll
    POST   /api/farms/{farmID}/payroll/{id}/approve
    POST   /api/farms/{farmID}/payroll/{id}/pay

  Tasks:
    GET    /api/farms/{farmID}/tasks
    POST   /api/farms/{farmID}/tasks
    POST   /api/farms/{farmID}/tasks/{id}/start
    POST   /api/farms/{farmID}/tasks/{id}/complete
    POST   /api/farms/{farmID}/tasks/{id}/cancel

  Health:
    GET    /api/farms/{farmID}/health          ?animalTag= filter
    POST   /api/farms/{farmID}/health
    GET    /api/farms/{farmID}/health/compliance

  Reports:
    GET    /api/farms/{farmID}/reports/labor   ?from=&to=&format=json|csv
    GET    /api/farms/{farmID}/alerts

ERROR HANDLING:
  Domain errors map to HTTP status by category:
  - 400: validation (body carries every violation)
  - 403: not a member / insufficient role
  - 404: unknown record, including records of other farms
  - 409: illegal transition (body carries current and attempted state)
  - 503: persistence unavailable (client may retry)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/acrefield/farm-engine/engine"
	"github.com/acrefield/farm-engine/farm"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Services *farm.Services
	Log      *zap.Logger
}

// NewHandler creates a handler over the domain services.
func NewHandler(services *farm.Services, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Services: services, Log: log}
}

func farmID(r *http.Request) engine.FarmID {
	return engine.FarmID(chi.URLParam(r, "farmID"))
}

func decodePayload(r *http.Request) (map[string]any, error) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// =============================================================================
// TEAM HANDLERS
// =============================================================================

// CreateFarm creates a farm with the caller as owner.
func (h *Handler) CreateFarm(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	f, err := h.Services.Team.CreateFarm(r.Context(), callerFrom(r.Context()), payload)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFarmDTO(f))
}

// ListMembers returns the farm's role bindings.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.Services.Team.ListMembers(r.Context(), farmID(r), callerFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]MemberDTO, 0, len(bindings))
	for _, b := range bindings {
		dtos = append(dtos, toMemberDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddMember binds a user to the farm.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	b, err := h.Services.Team.AddMember(r.Context(), farmID(r), callerFrom(r.Context()), payload)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberDTO(*b))
}

// ChangeRole moves a member to a new role level.
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	target := engine.UserID(chi.URLParam(r, "userID"))
	b, err := h.Services.Team.ChangeRole(r.Context(), farmID(r), callerFrom(r.Context()), target, payload)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(*b))
}

// RemoveMember deletes a member's binding.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	target := engine.UserID(chi.URLParam(r, "userID"))
	if err := h.Services.Team.RemoveMember(r.Context(), farmID(r), callerFrom(r.Context()), target); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// WORKER HANDLERS
// =============================================================================

func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Services.Workers.List(r.Context(), farmID(r), callerFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]WorkerDTO, 0, len(workers))
	for i := range workers {
		dtos = append(dtos, toWorkerDTO(&workers[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) HireWorker(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	worker, err := h.Services.Workers.Hire(r.Context(), farmID(r), callerFrom(r.Context()), payload)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkerDTO(worker))
}

func (h *Handler) TerminateWorker(w http.ResponseWriter, r *http.Request) {
	worker, err := h.Services.Workers.Terminate(r.Context(), farmID(r), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkerDTO(worker))
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	filter := farm.ShiftFilter{
		FarmID:   farmID(r),
		WorkerID: r.URL.Query().Get("workerId"),
		Status:   engine.Status(r.URL.Query().Get("status")),
	}
	shifts, err := h.Services.Shifts.List(r.Context(), callerFrom(r.Context()), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]ShiftDTO, 0, len(shifts))
	for i := range shifts {
		dtos = append(dtos, toShiftDTO(&shifts[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ScheduleShift(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	shift, err := h.Services.Shifts.Schedule(r.Context(), farmID(r), callerFrom(r.Context()), payload)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftDTO(shift))
}

func (h *Handler) SubmitShift(w http.ResponseWriter, r *http.Request) {
	h.shiftTransition(w, r, h.Services.Shifts.Submit)
}

func (h *Handler) ConfirmShift(w http.ResponseWriter, r *http.Request) {
	h.shiftTransition(w, r, h.Services.Shifts.Confirm)
}

func (h *Handler) CompleteShift(w http.ResponseWriter, r *http.Request) {
	h.shiftTransition(w, r, h.Services.Shifts.Complete)
}

func (h *Handler) CancelShift(w http.ResponseWriter, r *http.Request) {
	// The body itself is optional, a malformed one is still a client error.
	var body CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	shift, err := h.Services.Shifts.Cancel(r.Context(), farmID(r), callerFrom(r.Context()), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

func (h *Handler) shiftTransition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, fid engine.FarmID, caller engine.UserID, id string) (*farm.Shift, error)) {

	shift, err := op(r.Context(), farmID(r), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

// =============================================================================
// TIME OFF HANDLERS
// =============================================================================

func (h *Handler) ListTimeOff(w http.ResponseWriter, r *http.Request) {
	filter := farm.TimeOffFilter{
		FarmID:   farmID(r),
		WorkerID: r.URL.Query().Get("workerId"),
		Status:   engine.Status(r.URL.Query().Get("status")),
	}
	requests, err := h.Services.TimeOff.List(r.Context(), callerFrom(r.Context()), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]TimeOffDTO, 0, len(requests))
	for i := range requests {
		dtos = append(dtos, toTimeOffDTO(&requests[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PendingTimeOff is the approval queue for managers.
func (h *Handler) PendingTimeOff(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Services.TimeOff.ListPending(r.Context(), farmID(r), callerFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]TimeOffDTO, 0, len(requests))
	for i := range requests {
		dtos = append(dtos, toTimeOffDTO(&requests[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RequestTimeOff(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := h.Services.TimeOff.Request(r.Context(), farmID(r), callerFrom(r.Context()), payload)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimeOffDTO(req))
}

func (h *Handler) ApproveTimeOff(w http.ResponseWriter, r *http.Request) {
	req, err := h.Services.TimeOff.Approve(r.Context(), farmID(r), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeOffDTO(req))
}

func (h *Handler) RejectTimeOff(w http.ResponseWriter, r *http.Request) {
	var body RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := h.Services.TimeOff.Reject(r.Context(), farmID(r), callerFrom(r.Context()), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeOffDTO(req))
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

func (h *Handler) ListPayroll(w http.ResponseWriter, r *http.Request) {
	filter := farm.PayrollFilter{
		FarmID:   farmID(r),
		WorkerID: r.URL.Query().Get("workerId"),
		Status:   engine.Status(r.URL.Query().Get("status")),
	}
	records, err := h.Services.Payroll.List(r.Context(), callerFrom(r.Context()), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]PayrollDTO, 0, len(records))
	for i := range records {
		dtos = append(dtos, toPayrollDTO(&records[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) DraftPayroll(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	record, err := h.Services.Payroll.CreateDraft(r.Context(), farmID(r), callerFrom(r.Context()), payload)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayrollDTO(record))
}

func (h *Handler) ApprovePayroll(w http.ResponseWriter, r *http.Request) {
	record, err := h.Services.Payroll.Approve(r.Context(), farmID(r), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(record))
}

func (h *Handler) PayPayroll(w http.ResponseWriter, r *http.Request) {
	record, err := h.Services.Payroll.MarkPaid(r.Context(), farmID(r), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(record))
}

// =============================================================================
// TASK HANDLERS
// =============================================================================

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := farm.TaskFilter{
		FarmID:   farmID(r),
		WorkerID: r.URL.Query().Get("workerId"),
		Status:   engine.Status(r.URL.Query().Get("status")),
	}
	tasks, err := h.Services.Tasks.List(r.Context(), callerFrom(r.Context()), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]TaskDTO, 0, len(tasks))
	for i := range tasks {
		dtos = append(dtos, toTaskDTO(&tasks[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AssignTask(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	task, err := h.Services.Tasks.Assign(r.Context(), farmID(r), callerFrom(r.Context()), payload)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskDTO(task))
}

func (h *Handler) StartTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.Services.Tasks.Start(r.Context(), farmID(r), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(task))
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	var body CompleteTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	task, err := h.Services.Tasks.Complete(r.Context(), farmID(r), callerFrom(r.Context()), chi.URLParam(r, "id"), body.ActualHours)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(task))
}

func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.Services.Tasks.Cancel(r.Context(), farmID(r), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(task))
}

// =============================================================================
// HEALTH HANDLERS
// =============================================================================

func (h *Handler) ListHealthRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.Services.Health.History(r.Context(), farmID(r), callerFrom(r.Context()), r.URL.Query().Get("animalTag"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]HealthRecordDTO, 0, len(records))
	for i := range records {
		dtos = append(dtos, toHealthRecordDTO(&records[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RecordHealth(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	record, err := h.Services.Health.Record(r.Context(), farmID(r), callerFrom(r.Context()), payload)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHealthRecordDTO(record))
}

func (h *Handler) ComplianceReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Services.Health.ComplianceReport(r.Context(), farmID(r), callerFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]ComplianceRowDTO, 0, len(report))
	for _, row := range report {
		dtos = append(dtos, ComplianceRowDTO{
			Vaccine:        row.Vaccine,
			DosesScheduled: row.DosesScheduled,
			DosesGiven:     row.DosesGiven,
			Percent:        row.Percent.String(),
			Anomalous:      row.Anomalous,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// LaborReport builds the labor rollup for a window. The from/to query
// params are YYYY-MM-DD; format=csv switches the renderer.
func (h *Handler) LaborReport(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}

	report, err := h.Services.Reports.LaborSummary(r.Context(), farmID(r), callerFrom(r.Context()), from, to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	var renderer farm.ExportRenderer = jsonRenderer{}
	if r.URL.Query().Get("format") == "csv" {
		renderer = csvRenderer{}
	}
	body, contentType, err := renderer.RenderLabor(report)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render report", err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Services.Reports.Alerts(r.Context(), farmID(r), callerFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]AlertDTO, 0, len(alerts))
	for _, a := range alerts {
		dtos = append(dtos, toAlertDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	return time.Parse("2006-01-02", r.URL.Query().Get(name))
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// writeDomainError translates a domain error into the HTTP contract.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		resp := ErrorResponse{Error: "Validation failed", Details: verr.Error()}
		for _, v := range verr.Violations {
			dto := ViolationDTO{Field: v.Field, Constraint: v.Constraint}
			if v.Received != nil {
				dto.Received = fmt.Sprint(v.Received)
			}
			resp.Violations = append(resp.Violations, dto)
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	var illegal *engine.IllegalTransitionError
	if errors.As(err, &illegal) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "Illegal state transition",
			Details: illegal.Error(),
			Transition: &TransitionError{
				Current:   string(illegal.Current),
				Attempted: string(illegal.Attempted),
			},
		})
		return
	}

	switch {
	case errors.Is(err, engine.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, engine.ErrNotAMember), errors.Is(err, engine.ErrInsufficientRole),
		errors.Is(err, engine.ErrLastOwner):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", nil)
	case errors.Is(err, engine.ErrIllegalTransition), errors.Is(err, engine.ErrVersionConflict):
		writeError(w, http.StatusConflict, "Conflict", err)
	case errors.Is(err, engine.ErrPersistenceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable", nil)
	default:
		h.Log.Error("unhandled domain error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
