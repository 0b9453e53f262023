/*
aggregate.go - Derived metric computation

PURPOSE:
  Pure functions over already-fetched rows. Never performs I/O. Metrics
  computed here are never the source of truth: they are recomputed from
  persisted facts on every read.

METRICS:
  Efficiency:  estimated/actual * 100, one decimal place. actual <= 0 is
               invalid input and is rejected before any division; the
               function can never produce Infinity.
  Compliance:  given/scheduled * 100, clamped to [0,100]. Values above 100
               (over-administration) are flagged anomalous, never silently
               reported as e.g. 133%.
  Summaries:   counts/sums/averages over a window. An empty input set is
               {count: 0, sum: 0, average: null}, never NaN.

ALERT THRESHOLDS:
  Efficiency below 85 raises a warning alert; below 70, critical. The
  threshold logic is part of this layer's contract, not an incidental
  side effect of task completion.

SEE ALSO:
  - errors.go: AnomalousMetricError
  - farm/task.go: Persists the alert the threshold check demands
*/
package engine

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// EFFICIENCY
// =============================================================================

// Efficiency computes (estimated / actual) * 100 rounded to one decimal
// place. actual must be strictly positive; zero or negative actual hours
// are rejected with a ValidationError before any arithmetic runs.
func Efficiency(estimated, actual Hours) (decimal.Decimal, error) {
	if !actual.IsPositive() {
		return decimal.Zero, &ValidationError{
			Shape: "efficiency",
			Violations: []FieldViolation{
				{Field: "actualHours", Constraint: "must be > 0", Received: actual.String()},
			},
		}
	}
	if estimated.IsNegative() {
		return decimal.Zero, &ValidationError{
			Shape: "efficiency",
			Violations: []FieldViolation{
				{Field: "estimatedHours", Constraint: "must be >= 0", Received: estimated.String()},
			},
		}
	}
	return estimated.Value.Div(actual.Value).Mul(hundred).Round(1), nil
}

// =============================================================================
// ALERT THRESHOLDS
// =============================================================================

type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

var (
	efficiencyWarnBelow     = decimal.NewFromInt(85)
	efficiencyCriticalBelow = decimal.NewFromInt(70)
)

// EfficiencyAlert returns the alert severity a computed efficiency demands,
// or false when the value is at or above the warning threshold.
func EfficiencyAlert(efficiency decimal.Decimal) (AlertSeverity, bool) {
	switch {
	case efficiency.LessThan(efficiencyCriticalBelow):
		return SeverityCritical, true
	case efficiency.LessThan(efficiencyWarnBelow):
		return SeverityWarning, true
	}
	return "", false
}

// =============================================================================
// COMPLIANCE
// =============================================================================

// ComplianceResult reports a dose-compliance percentage. Percent is always
// within [0, 100]; Anomalous marks over-administration (raw value above
// 100), which is flagged for human review rather than silently accepted.
type ComplianceResult struct {
	Percent   decimal.Decimal
	Raw       decimal.Decimal
	Anomalous bool
}

// Compliance computes (given / scheduled) * 100. scheduled must be
// strictly positive. Raw values above 100 are clamped and flagged.
func Compliance(given, scheduled int) (ComplianceResult, error) {
	if scheduled <= 0 {
		return ComplianceResult{}, &ValidationError{
			Shape: "compliance",
			Violations: []FieldViolation{
				{Field: "dosesScheduled", Constraint: "must be > 0", Received: scheduled},
			},
		}
	}
	if given < 0 {
		return ComplianceResult{}, &ValidationError{
			Shape: "compliance",
			Violations: []FieldViolation{
				{Field: "dosesGiven", Constraint: "must be >= 0", Received: given},
			},
		}
	}

	raw := decimal.NewFromInt(int64(given)).
		Div(decimal.NewFromInt(int64(scheduled))).
		Mul(hundred).Round(1)

	result := ComplianceResult{Percent: raw, Raw: raw}
	if raw.GreaterThan(hundred) {
		result.Percent = hundred
		result.Anomalous = true
	}
	return result, nil
}

// =============================================================================
// SUMMARY STATISTICS
// =============================================================================

// Summary holds counts/sums/averages over a filtered window of values.
// An empty window has Average == nil, never NaN.
type Summary struct {
	Count   int
	Sum     decimal.Decimal
	Average *decimal.Decimal
}

// Summarize reduces a slice of values to a Summary.
func Summarize(values []decimal.Decimal) Summary {
	s := Summary{Sum: decimal.Zero}
	if len(values) == 0 {
		return s
	}
	for _, v := range values {
		s.Sum = s.Sum.Add(v)
	}
	s.Count = len(values)
	avg := s.Sum.Div(decimal.NewFromInt(int64(s.Count))).Round(1)
	s.Average = &avg
	return s
}
