package engine_test

import (
	"testing"
	"time"

	"github.com/acrefield/farm-engine/engine"
)

// =============================================================================
// TEST SHAPES
// =============================================================================

var shiftShape = engine.Shape{
	Name: "createShift",
	Fields: []engine.Field{
		{Name: "workerId", Kind: engine.KindString, Required: true, NonEmpty: true},
		{Name: "date", Kind: engine.KindDate, Required: true},
		{Name: "hours", Kind: engine.KindNumber, Required: true, Min: engine.Ptr(0.5), Max: engine.Ptr(16.0)},
		{Name: "role", Kind: engine.KindEnum, Enum: []string{"harvest", "irrigation", "livestock"}},
		{Name: "notes", Kind: engine.KindString},
	},
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestSchema_ValidPayload_Normalizes(t *testing.T) {
	values, verr := shiftShape.Validate(map[string]any{
		"workerId": "w-1",
		"date":     "2026-03-10",
		"hours":    8.0,
		"role":     "harvest",
	})
	if verr != nil {
		t.Fatalf("unexpected validation error: %v", verr)
	}

	if values.String("workerId") != "w-1" {
		t.Errorf("workerId not normalized: %v", values["workerId"])
	}
	if values.Number("hours") != 8.0 {
		t.Errorf("hours not normalized: %v", values["hours"])
	}
	want := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	if !values.Date("date").Equal(want) {
		t.Errorf("date not normalized: %v", values.Date("date"))
	}
	if values.Has("notes") {
		t.Error("absent optional field should not be present in values")
	}
}

func TestSchema_CollectsEveryViolation_NotJustFirst(t *testing.T) {
	// GIVEN: a payload violating three separate fields
	// THEN: all three violations are reported and no values pass downstream
	values, verr := shiftShape.Validate(map[string]any{
		"date":  "not-a-date",
		"hours": 30.0,
		"role":  "accounting",
	})

	if verr == nil {
		t.Fatal("expected validation error")
	}
	if values != nil {
		t.Error("values must be nil when validation fails (all-or-nothing)")
	}
	// workerId missing, date malformed, hours > max, role not in enum
	if len(verr.Violations) != 4 {
		t.Fatalf("expected 4 violations, got %d: %v", len(verr.Violations), verr.Violations)
	}

	fields := map[string]bool{}
	for _, v := range verr.Violations {
		fields[v.Field] = true
	}
	for _, want := range []string{"workerId", "date", "hours", "role"} {
		if !fields[want] {
			t.Errorf("missing violation for %s", want)
		}
	}
}

func TestSchema_NumericBounds(t *testing.T) {
	cases := []struct {
		name  string
		hours any
		ok    bool
	}{
		{"at minimum", 0.5, true},
		{"at maximum", 16.0, true},
		{"below minimum", 0.25, false},
		{"above maximum", 16.5, false},
		{"not a number", "eight", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, verr := shiftShape.Validate(map[string]any{
				"workerId": "w-1",
				"date":     "2026-03-10",
				"hours":    tc.hours,
			})
			if tc.ok && verr != nil {
				t.Errorf("expected valid, got %v", verr)
			}
			if !tc.ok && verr == nil {
				t.Error("expected violation")
			}
		})
	}
}

func TestSchema_BlankStringRejectedWhenNonEmpty(t *testing.T) {
	_, verr := shiftShape.Validate(map[string]any{
		"workerId": "   ",
		"date":     "2026-03-10",
		"hours":    8.0,
	})
	if verr == nil {
		t.Fatal("expected violation for blank workerId")
	}
	if verr.Violations[0].Constraint != "must not be empty" {
		t.Errorf("unexpected constraint: %s", verr.Violations[0].Constraint)
	}
}

func TestSchema_RFC3339DateAccepted(t *testing.T) {
	values, verr := shiftShape.Validate(map[string]any{
		"workerId": "w-1",
		"date":     "2026-03-10T08:00:00Z",
		"hours":    8.0,
	})
	if verr != nil {
		t.Fatalf("unexpected error: %v", verr)
	}
	if values.Date("date").Hour() != 8 {
		t.Errorf("hour lost in normalization: %v", values.Date("date"))
	}
}
