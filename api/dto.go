/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND HOURS:
  Decimals are serialized as JSON strings to avoid float drift on the
  wire. Clients parse them with a decimal library, not parseFloat.

VALIDATION:
  Create/transition payloads are passed to the domain shapes as-is; the
  shape reports every violation at once and the handler returns them in
  the error body. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ../engine/schema.go: Shape validation
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/acrefield/farm-engine/engine"
	"github.com/acrefield/farm-engine/farm"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error      string           `json:"error"`
	Details    string           `json:"details,omitempty"`
	Violations []ViolationDTO   `json:"violations,omitempty"`
	Transition *TransitionError `json:"transition,omitempty"`
}

// ViolationDTO is one field-level validation failure.
type ViolationDTO struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Received   string `json:"receivedValue,omitempty"`
}

// TransitionError reports a rejected state change with both states, so a
// stale client can resync instead of retrying blindly.
type TransitionError struct {
	Current   string `json:"current"`
	Attempted string `json:"attempted"`
}

// =============================================================================
// TEAM
// =============================================================================

type FarmDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
}

type MemberDTO struct {
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// =============================================================================
// WORKERS
// =============================================================================

type WorkerDTO struct {
	ID           string  `json:"id"`
	UserID       string  `json:"userId,omitempty"`
	Name         string  `json:"name"`
	HourlyRate   string  `json:"hourlyRate"`
	Status       string  `json:"status"`
	TerminatedAt *string `json:"terminatedAt,omitempty"`
	Version      int64   `json:"version"`
}

// =============================================================================
// SHIFTS
// =============================================================================

type ShiftDTO struct {
	ID          string  `json:"id"`
	WorkerID    string  `json:"workerId"`
	Date        string  `json:"date"`
	Hours       string  `json:"hours"`
	Duty        string  `json:"duty"`
	Notes       string  `json:"notes,omitempty"`
	Status      string  `json:"status"`
	ApprovedBy  *string `json:"approvedBy,omitempty"`
	ApprovedAt  *string `json:"approvedAt,omitempty"`
	CompletedAt *string `json:"completedAt,omitempty"`
	CancelledAt *string `json:"cancelledAt,omitempty"`
	Version     int64   `json:"version"`
}

// CancelRequest carries the optional reason for a cancellation.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// TIME OFF
// =============================================================================

type TimeOffDTO struct {
	ID              string  `json:"id"`
	WorkerID        string  `json:"workerId"`
	From            string  `json:"from"`
	To              string  `json:"to"`
	Reason          string  `json:"reason"`
	Status          string  `json:"status"`
	ApprovedBy      *string `json:"approvedBy,omitempty"`
	ApprovedAt      *string `json:"approvedAt,omitempty"`
	RejectionReason *string `json:"rejectionReason,omitempty"`
	Version         int64   `json:"version"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// PAYROLL
// =============================================================================

type PayrollDTO struct {
	ID          string  `json:"id"`
	WorkerID    string  `json:"workerId"`
	PeriodStart string  `json:"periodStart"`
	PeriodEnd   string  `json:"periodEnd"`
	GrossAmount string  `json:"grossAmount"`
	NetAmount   string  `json:"netAmount"`
	Status      string  `json:"status"`
	ApprovedBy  *string `json:"approvedBy,omitempty"`
	ApprovedAt  *string `json:"approvedAt,omitempty"`
	PaidAt      *string `json:"paidAt,omitempty"`
	Version     int64   `json:"version"`
}

// =============================================================================
// TASKS
// =============================================================================

type TaskDTO struct {
	ID             string  `json:"id"`
	WorkerID       string  `json:"workerId"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	EstimatedHours string  `json:"estimatedHours"`
	ActualHours    *string `json:"actualHours,omitempty"`
	EfficiencyPct  *string `json:"efficiencyPct,omitempty"`
	Status         string  `json:"status"`
	CompletedAt    *string `json:"completedAt,omitempty"`
	CancelledAt    *string `json:"cancelledAt,omitempty"`
	Version        int64   `json:"version"`
}

// CompleteTaskRequest carries the hours actually worked.
type CompleteTaskRequest struct {
	ActualHours float64 `json:"actualHours"`
}

// =============================================================================
// HEALTH
// =============================================================================

type HealthRecordDTO struct {
	ID             string `json:"id"`
	AnimalTag      string `json:"animalTag"`
	Vaccine        string `json:"vaccine"`
	DosesScheduled int    `json:"dosesScheduled"`
	DosesGiven     int    `json:"dosesGiven"`
	RecordedBy     string `json:"recordedBy"`
	RecordedAt     string `json:"recordedAt"`
}

type ComplianceRowDTO struct {
	Vaccine        string `json:"vaccine"`
	DosesScheduled int    `json:"dosesScheduled"`
	DosesGiven     int    `json:"dosesGiven"`
	Percent        string `json:"percent"`
	Anomalous      bool   `json:"anomalous"`
}

// =============================================================================
// REPORTS AND ALERTS
// =============================================================================

type LaborReportDTO struct {
	FarmID     string              `json:"farmId"`
	From       string              `json:"from"`
	To         string              `json:"to"`
	Workers    []WorkerLaborRowDTO `json:"workers"`
	TotalHours string              `json:"totalHours"`
	AlertCount int                 `json:"alertCount"`
}

type WorkerLaborRowDTO struct {
	WorkerID      string  `json:"workerId"`
	WorkerName    string  `json:"workerName,omitempty"`
	ShiftCount    int     `json:"shiftCount"`
	TotalHours    string  `json:"totalHours"`
	AverageHours  *string `json:"averageHours,omitempty"`
	TaskCount     int     `json:"taskCount"`
	AvgEfficiency *string `json:"avgEfficiency,omitempty"`
}

type AlertDTO struct {
	ID        string `json:"id"`
	WorkerID  string `json:"workerId"`
	TaskID    string `json:"taskId"`
	Severity  string `json:"severity"`
	Metric    string `json:"metric"`
	Value     string `json:"value"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toFarmDTO(f *farm.Farm) FarmDTO {
	return FarmDTO{
		ID:        string(f.ID),
		Name:      f.Name,
		OwnerID:   string(f.OwnerID),
		CreatedAt: f.CreatedAt.Format(time.RFC3339),
	}
}

func toMemberDTO(b engine.RoleBinding) MemberDTO {
	return MemberDTO{
		UserID:    string(b.UserID),
		Role:      b.Role.String(),
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}

func toWorkerDTO(w *farm.Worker) WorkerDTO {
	return WorkerDTO{
		ID:           w.ID,
		UserID:       string(w.UserID),
		Name:         w.Name,
		HourlyRate:   w.HourlyRate.String(),
		Status:       string(w.Status),
		TerminatedAt: timePtr(w.TerminatedAt),
		Version:      w.Version,
	}
}

func toShiftDTO(s *farm.Shift) ShiftDTO {
	return ShiftDTO{
		ID:          s.ID,
		WorkerID:    s.WorkerID,
		Date:        s.Date.Format("2006-01-02"),
		Hours:       s.Hours.String(),
		Duty:        s.Duty,
		Notes:       s.Notes,
		Status:      string(s.Status),
		ApprovedBy:  userPtr(s.ApprovedBy),
		ApprovedAt:  timePtr(s.ApprovedAt),
		CompletedAt: timePtr(s.CompletedAt),
		CancelledAt: timePtr(s.CancelledAt),
		Version:     s.Version,
	}
}

func toTimeOffDTO(r *farm.TimeOffRequest) TimeOffDTO {
	return TimeOffDTO{
		ID:              r.ID,
		WorkerID:        r.WorkerID,
		From:            r.From.Format("2006-01-02"),
		To:              r.To.Format("2006-01-02"),
		Reason:          r.Reason,
		Status:          string(r.Status),
		ApprovedBy:      userPtr(r.ApprovedBy),
		ApprovedAt:      timePtr(r.ApprovedAt),
		RejectionReason: r.RejectionReason,
		Version:         r.Version,
	}
}

func toPayrollDTO(p *farm.PayrollRecord) PayrollDTO {
	return PayrollDTO{
		ID:          p.ID,
		WorkerID:    p.WorkerID,
		PeriodStart: p.PeriodStart.Format("2006-01-02"),
		PeriodEnd:   p.PeriodEnd.Format("2006-01-02"),
		GrossAmount: p.GrossAmount.String(),
		NetAmount:   p.NetAmount.String(),
		Status:      string(p.Status),
		ApprovedBy:  userPtr(p.ApprovedBy),
		ApprovedAt:  timePtr(p.ApprovedAt),
		PaidAt:      timePtr(p.PaidAt),
		Version:     p.Version,
	}
}

func toTaskDTO(t *farm.TaskAssignment) TaskDTO {
	return TaskDTO{
		ID:             t.ID,
		WorkerID:       t.WorkerID,
		Title:          t.Title,
		Description:    t.Description,
		EstimatedHours: t.EstimatedHours.String(),
		ActualHours:    decimalPtr(t.ActualHours),
		EfficiencyPct:  decimalPtr(t.EfficiencyPct),
		Status:         string(t.Status),
		CompletedAt:    timePtr(t.CompletedAt),
		CancelledAt:    timePtr(t.CancelledAt),
		Version:        t.Version,
	}
}

func toHealthRecordDTO(h *farm.HealthRecord) HealthRecordDTO {
	return HealthRecordDTO{
		ID:             h.ID,
		AnimalTag:      h.AnimalTag,
		Vaccine:        h.Vaccine,
		DosesScheduled: h.DosesScheduled,
		DosesGiven:     h.DosesGiven,
		RecordedBy:     string(h.RecordedBy),
		RecordedAt:     h.RecordedAt.Format(time.RFC3339),
	}
}

func toAlertDTO(a farm.Alert) AlertDTO {
	return AlertDTO{
		ID:        a.ID,
		WorkerID:  a.WorkerID,
		TaskID:    a.TaskID,
		Severity:  string(a.Severity),
		Metric:    a.Metric,
		Value:     a.Value.String(),
		Message:   a.Message,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func toLaborReportDTO(r *farm.LaborReport) LaborReportDTO {
	dto := LaborReportDTO{
		FarmID:     string(r.FarmID),
		From:       r.From.Format("2006-01-02"),
		To:         r.To.Format("2006-01-02"),
		Workers:    []WorkerLaborRowDTO{},
		TotalHours: r.TotalHours.String(),
		AlertCount: r.AlertCount,
	}
	for _, w := range r.Workers {
		dto.Workers = append(dto.Workers, WorkerLaborRowDTO{
			WorkerID:      w.WorkerID,
			WorkerName:    w.WorkerName,
			ShiftCount:    w.ShiftCount,
			TotalHours:    w.TotalHours.String(),
			AverageHours:  decimalPtr(w.AverageHours),
			TaskCount:     w.TaskCount,
			AvgEfficiency: decimalPtr(w.AvgEfficiency),
		})
	}
	return dto
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func userPtr(u *engine.UserID) *string {
	if u == nil {
		return nil
	}
	s := string(*u)
	return &s
}

func decimalPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
