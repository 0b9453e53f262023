/*
report.go - Labor and efficiency reporting

PURPOSE:
  Read-only rollups over completed work. Reports derive everything from
  stored rows at read time; the per-task efficiency cache is only used
  as a display value, never as an input to another aggregate.
*/
package farm

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/acrefield/farm-engine/engine"
)

type ReportService struct {
	deps
}

// WorkerLaborSummary is one worker's row in the labor report.
type WorkerLaborSummary struct {
	WorkerID   string
	WorkerName string

	ShiftCount    int
	TotalHours    decimal.Decimal
	AverageHours  *decimal.Decimal
	TaskCount     int
	AvgEfficiency *decimal.Decimal
}

// LaborReport covers one farm over one window.
type LaborReport struct {
	FarmID engine.FarmID
	From   time.Time
	To     time.Time

	Workers []WorkerLaborSummary

	TotalHours decimal.Decimal
	AlertCount int
}

// ExportRenderer turns a report into an output format. The service is
// agnostic to the format; api wires a JSON renderer and a CSV one.
type ExportRenderer interface {
	RenderLabor(r *LaborReport) ([]byte, string, error)
}

// LaborSummary builds the per-worker labor rollup for completed shifts
// inside the window. Shifts still in flight are excluded so the report
// only counts hours that survived the approval chain.
func (s *ReportService) LaborSummary(ctx context.Context, farmID engine.FarmID, caller engine.UserID, from, to time.Time) (*LaborReport, error) {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionViewReports); err != nil {
		return nil, err
	}

	workers, err := s.store.ListWorkers(ctx, farmID)
	if err != nil {
		return nil, err
	}
	shifts, err := s.store.ListShifts(ctx, ShiftFilter{
		FarmID: farmID,
		Status: engine.ShiftCompleted,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, TaskFilter{
		FarmID: farmID,
		Status: engine.TaskCompleted,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		return nil, err
	}
	alerts, err := s.store.ListAlerts(ctx, farmID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(workers))
	for _, w := range workers {
		names[w.ID] = w.Name
	}

	hoursByWorker := map[string][]decimal.Decimal{}
	for _, sh := range shifts {
		hoursByWorker[sh.WorkerID] = append(hoursByWorker[sh.WorkerID], sh.Hours)
	}
	effByWorker := map[string][]decimal.Decimal{}
	taskCount := map[string]int{}
	for _, t := range tasks {
		taskCount[t.WorkerID]++
		if t.EfficiencyPct != nil {
			effByWorker[t.WorkerID] = append(effByWorker[t.WorkerID], *t.EfficiencyPct)
		}
	}

	seen := map[string]bool{}
	var ids []string
	for id := range hoursByWorker {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range taskCount {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	report := &LaborReport{FarmID: farmID, From: from, To: to, TotalHours: decimal.Zero}
	for _, id := range ids {
		hours := engine.Summarize(hoursByWorker[id])
		eff := engine.Summarize(effByWorker[id])
		report.Workers = append(report.Workers, WorkerLaborSummary{
			WorkerID:      id,
			WorkerName:    names[id],
			ShiftCount:    hours.Count,
			TotalHours:    hours.Sum,
			AverageHours:  hours.Average,
			TaskCount:     taskCount[id],
			AvgEfficiency: eff.Average,
		})
		report.TotalHours = report.TotalHours.Add(hours.Sum)
	}

	alertCount := 0
	for _, a := range alerts {
		if !a.CreatedAt.Before(from) && !a.CreatedAt.After(to) {
			alertCount++
		}
	}
	report.AlertCount = alertCount

	return report, nil
}

// Alerts lists the efficiency alerts raised on a farm.
func (s *ReportService) Alerts(ctx context.Context, farmID engine.FarmID, caller engine.UserID) ([]Alert, error) {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionViewReports); err != nil {
		return nil, err
	}
	return s.store.ListAlerts(ctx, farmID)
}
