/*
export.go - Report output renderers

PURPOSE:
  Implements the report export formats. The report service hands over a
  plain LaborReport; these renderers own the byte layout and content
  type. CSV is what farm bookkeepers load into spreadsheets, JSON is
  what the web client consumes.

SEE ALSO:
  - handlers.go: LaborReport handler picks the renderer by query param
*/
package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"

	"github.com/acrefield/farm-engine/farm"
)

type jsonRenderer struct{}

func (jsonRenderer) RenderLabor(r *farm.LaborReport) ([]byte, string, error) {
	body, err := json.Marshal(toLaborReportDTO(r))
	if err != nil {
		return nil, "", err
	}
	return body, "application/json", nil
}

type csvRenderer struct{}

// RenderLabor writes one row per worker plus a totals row. Empty cells
// stand for aggregates that have no data, not zero values.
func (csvRenderer) RenderLabor(r *farm.LaborReport) ([]byte, string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"workerId", "workerName", "shiftCount", "totalHours", "averageHours", "taskCount", "avgEfficiencyPct"}
	if err := w.Write(header); err != nil {
		return nil, "", err
	}
	for _, row := range r.Workers {
		avg := ""
		if row.AverageHours != nil {
			avg = row.AverageHours.String()
		}
		eff := ""
		if row.AvgEfficiency != nil {
			eff = row.AvgEfficiency.String()
		}
		record := []string{
			row.WorkerID,
			row.WorkerName,
			strconv.Itoa(row.ShiftCount),
			row.TotalHours.String(),
			avg,
			strconv.Itoa(row.TaskCount),
			eff,
		}
		if err := w.Write(record); err != nil {
			return nil, "", err
		}
	}
	totals := []string{"total", "", "", r.TotalHours.String(), "", "", ""}
	if err := w.Write(totals); err != nil {
		return nil, "", err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "text/csv", nil
}
