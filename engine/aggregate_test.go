package engine_test

import (
	"errors"
	"testing"

	"github.com/acrefield/farm-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// EFFICIENCY
// =============================================================================

func TestEfficiency_RoundsToOneDecimal(t *testing.T) {
	cases := []struct {
		estimated, actual float64
		want              string
	}{
		{8, 10, "80"},
		{8, 15, "53.3"},
		{10, 8, "125"},
		{8, 8, "100"},
		{0, 8, "0"},
		{7, 3, "233.3"},
	}
	for _, c := range cases {
		got, err := engine.Efficiency(engine.NewHours(c.estimated), engine.NewHours(c.actual))
		if err != nil {
			t.Fatalf("efficiency(%v, %v): %v", c.estimated, c.actual, err)
		}
		if !got.Equal(engine.MustParseDecimal(c.want)) {
			t.Errorf("efficiency(%v, %v) = %s, want %s", c.estimated, c.actual, got, c.want)
		}
	}
}

func TestEfficiency_ZeroActualRejectedBeforeComputing(t *testing.T) {
	// Division by zero must never silently produce Infinity.
	for _, actual := range []float64{0, -1} {
		_, err := engine.Efficiency(engine.NewHours(8), engine.NewHours(actual))
		if !errors.Is(err, engine.ErrValidation) {
			t.Errorf("actual=%v: want ValidationError, got %v", actual, err)
		}
	}
}

// =============================================================================
// ALERT THRESHOLDS
// =============================================================================

func TestEfficiencyAlert_Thresholds(t *testing.T) {
	cases := []struct {
		value    string
		severity engine.AlertSeverity
		fires    bool
	}{
		{"80", engine.SeverityWarning, true},   // 80 < 85 but >= 70
		{"53.3", engine.SeverityCritical, true}, // < 70
		{"69.9", engine.SeverityCritical, true},
		{"70", engine.SeverityWarning, true},
		{"84.9", engine.SeverityWarning, true},
		{"85", "", false},
		{"100", "", false},
	}
	for _, c := range cases {
		sev, fires := engine.EfficiencyAlert(engine.MustParseDecimal(c.value))
		if fires != c.fires || sev != c.severity {
			t.Errorf("alert(%s) = (%s, %v), want (%s, %v)", c.value, sev, fires, c.severity, c.fires)
		}
	}
}

// =============================================================================
// COMPLIANCE
// =============================================================================

func TestCompliance_ClampsAndFlagsOverAdministration(t *testing.T) {
	// compliancePercentage(4, 3) must be flagged anomalous, not reported
	// as 133.3% without qualification.
	got, err := engine.Compliance(4, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Anomalous {
		t.Error("over-administration must be flagged anomalous")
	}
	if !got.Percent.Equal(decimal.NewFromInt(100)) {
		t.Errorf("reported percent must be clamped to 100, got %s", got.Percent)
	}
	if !got.Raw.Equal(engine.MustParseDecimal("133.3")) {
		t.Errorf("raw value should be preserved for review, got %s", got.Raw)
	}
}

func TestCompliance_NormalRange(t *testing.T) {
	got, err := engine.Compliance(3, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Anomalous {
		t.Error("75% compliance is not anomalous")
	}
	if !got.Percent.Equal(decimal.NewFromInt(75)) {
		t.Errorf("want 75, got %s", got.Percent)
	}
}

func TestCompliance_InvalidInputs(t *testing.T) {
	if _, err := engine.Compliance(2, 0); !errors.Is(err, engine.ErrValidation) {
		t.Errorf("scheduled=0: want ValidationError, got %v", err)
	}
	if _, err := engine.Compliance(-1, 3); !errors.Is(err, engine.ErrValidation) {
		t.Errorf("given=-1: want ValidationError, got %v", err)
	}
}

// =============================================================================
// SUMMARIES
// =============================================================================

func TestSummarize_EmptyWindow(t *testing.T) {
	// Empty input set is {count: 0, sum: 0, average: null}, never NaN.
	s := engine.Summarize(nil)
	if s.Count != 0 || !s.Sum.IsZero() || s.Average != nil {
		t.Errorf("empty summary wrong: %+v", s)
	}
}

func TestSummarize_Averages(t *testing.T) {
	s := engine.Summarize([]decimal.Decimal{
		engine.MustParseDecimal("8"),
		engine.MustParseDecimal("10"),
		engine.MustParseDecimal("6"),
	})
	if s.Count != 3 {
		t.Errorf("count = %d", s.Count)
	}
	if !s.Sum.Equal(decimal.NewFromInt(24)) {
		t.Errorf("sum = %s", s.Sum)
	}
	if s.Average == nil || !s.Average.Equal(decimal.NewFromInt(8)) {
		t.Errorf("average = %v", s.Average)
	}
}
