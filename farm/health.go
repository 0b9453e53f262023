/*
health.go - Animal health records and vaccination compliance

PURPOSE:
  Health records are append-only dose logs per animal and vaccine. The
  compliance report derives given/scheduled percentages per vaccine,
  clamping figures above 100 and flagging them as anomalous. An
  anomalous entry is stored anyway so the data can be corrected later,
  but the anomaly is logged and surfaced on the report.
*/
package farm

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/acrefield/farm-engine/engine"
)

type HealthService struct {
	deps
}

var recordHealthShape = engine.Shape{
	Name: "recordHealth",
	Fields: []engine.Field{
		{Name: "animalTag", Kind: engine.KindString, Required: true, NonEmpty: true},
		{Name: "vaccine", Kind: engine.KindString, Required: true, NonEmpty: true},
		{Name: "dosesScheduled", Kind: engine.KindNumber, Required: true, Min: engine.Ptr(1.0)},
		{Name: "dosesGiven", Kind: engine.KindNumber, Required: true, Min: engine.Ptr(0.0)},
	},
}

// Record appends a vaccination record for an animal. A dose count above
// the schedule is accepted and stored, but flagged in the log: the farm
// may genuinely administer an extra dose, and refusing the write would
// lose the data.
func (s *HealthService) Record(ctx context.Context, farmID engine.FarmID, caller engine.UserID, payload map[string]any) (*HealthRecord, error) {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionRecordHealth); err != nil {
		return nil, err
	}
	values, verr := recordHealthShape.Validate(payload)
	if verr != nil {
		return nil, verr
	}

	r := HealthRecord{
		ID:             newID("health"),
		FarmID:         farmID,
		AnimalTag:      values.String("animalTag"),
		Vaccine:        values.String("vaccine"),
		DosesScheduled: int(values.Number("dosesScheduled")),
		DosesGiven:     int(values.Number("dosesGiven")),
		RecordedBy:     caller,
		RecordedAt:     s.clock.Now(),
	}
	if err := s.store.InsertHealthRecord(ctx, r); err != nil {
		return nil, err
	}

	if r.DosesGiven > r.DosesScheduled {
		anom := &engine.AnomalousMetricError{
			Metric: "vaccinationCompliance",
			Value:  decimal.NewFromInt(int64(r.DosesGiven)).Div(decimal.NewFromInt(int64(r.DosesScheduled))).Mul(decimal.NewFromInt(100)).Round(1).String(),
			Bound:  "0..100",
		}
		s.log.Warn("anomalous vaccination record stored",
			zap.String("farm_id", string(farmID)),
			zap.String("animal_tag", r.AnimalTag),
			zap.String("vaccine", r.Vaccine),
			zap.Error(anom),
		)
	}

	s.audit(ctx, farmID, caller, "recordHealth", AuditAllow, r.ID)
	return &r, nil
}

// History returns the records for one animal, or the whole farm when
// animalTag is empty.
func (s *HealthService) History(ctx context.Context, farmID engine.FarmID, caller engine.UserID, animalTag string) ([]HealthRecord, error) {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionViewFarm); err != nil {
		return nil, err
	}
	return s.store.ListHealthRecords(ctx, farmID, animalTag)
}

// VaccineCompliance is one row of the compliance report.
type VaccineCompliance struct {
	Vaccine        string
	DosesScheduled int
	DosesGiven     int
	Percent        decimal.Decimal
	Anomalous      bool
}

// ComplianceReport aggregates given vs scheduled doses per vaccine
// across the farm. Percentages are clamped to 100; rows where the raw
// figure exceeded that are marked anomalous.
func (s *HealthService) ComplianceReport(ctx context.Context, farmID engine.FarmID, caller engine.UserID) ([]VaccineCompliance, error) {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionViewReports); err != nil {
		return nil, err
	}
	records, err := s.store.ListHealthRecords(ctx, farmID, "")
	if err != nil {
		return nil, err
	}

	type tally struct{ scheduled, given int }
	byVaccine := map[string]*tally{}
	var order []string
	for _, r := range records {
		t, ok := byVaccine[r.Vaccine]
		if !ok {
			t = &tally{}
			byVaccine[r.Vaccine] = t
			order = append(order, r.Vaccine)
		}
		t.scheduled += r.DosesScheduled
		t.given += r.DosesGiven
	}

	report := make([]VaccineCompliance, 0, len(order))
	for _, vaccine := range order {
		t := byVaccine[vaccine]
		c, err := engine.Compliance(t.given, t.scheduled)
		if err != nil {
			return nil, err
		}
		report = append(report, VaccineCompliance{
			Vaccine:        vaccine,
			DosesScheduled: t.scheduled,
			DosesGiven:     t.given,
			Percent:        c.Percent,
			Anomalous:      c.Anomalous,
		})
	}
	return report, nil
}
