/*
schema.go - Declarative request shape validation

PURPOSE:
  Validates an incoming request payload against a declared Shape before
  anything else runs. Returns either a normalized Values map or a
  ValidationError enumerating EVERY violated field.

ALL-OR-NOTHING:
  Validation never partially applies. If any field fails, no values are
  handed downstream. Handlers surface the violation list verbatim.

SHAPE DECLARATION:
  Shapes are plain data: required fields, kinds, enum sets, numeric bounds.
  Domain packages declare one Shape per operation:

    var createShiftShape = engine.Shape{
        Name: "createShift",
        Fields: []engine.Field{
            {Name: "workerId", Kind: engine.KindString, Required: true},
            {Name: "hours", Kind: engine.KindNumber, Required: true, Min: ptr(0.0), Max: ptr(24.0)},
        },
    }

NORMALIZATION:
  JSON numbers arrive as float64, dates as RFC3339 or YYYY-MM-DD strings.
  Values exposes typed getters so services never touch raw interface{}.

SEE ALSO:
  - errors.go: ValidationError / FieldViolation
  - farm package: Shape declarations per resource operation
*/
package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// SHAPE - Declared contract for one request payload
// =============================================================================

type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
	KindDate   FieldKind = "date"
	KindEnum   FieldKind = "enum"
)

// Field declares one payload field and its constraints.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool

	// Enum is the closed value set for KindEnum fields.
	Enum []string

	// Min/Max bound KindNumber fields (inclusive).
	Min *float64
	Max *float64

	// NonEmpty rejects whitespace-only strings for KindString fields.
	NonEmpty bool
}

// Shape is the declared contract for a request payload.
type Shape struct {
	Name   string
	Fields []Field
}

// Values holds normalized, typed field values after successful validation.
type Values map[string]any

func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

func (v Values) Number(name string) float64 {
	f, _ := v[name].(float64)
	return f
}

func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

func (v Values) Date(name string) time.Time {
	t, _ := v[name].(time.Time)
	return t
}

// Has reports whether an optional field was present in the payload.
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks payload against the shape. It is a pure function: either
// every field validates and a normalized Values is returned, or a
// ValidationError listing all violations is returned and nothing else.
func (s Shape) Validate(payload map[string]any) (Values, *ValidationError) {
	var violations []FieldViolation
	out := make(Values, len(s.Fields))

	for _, f := range s.Fields {
		raw, present := payload[f.Name]
		if !present || raw == nil {
			if f.Required {
				violations = append(violations, FieldViolation{
					Field:      f.Name,
					Constraint: "required",
					Received:   nil,
				})
			}
			continue
		}

		value, violation := normalizeField(f, raw)
		if violation != nil {
			violations = append(violations, *violation)
			continue
		}
		out[f.Name] = value
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Shape: s.Name, Violations: violations}
	}
	return out, nil
}

func normalizeField(f Field, raw any) (any, *FieldViolation) {
	fail := func(constraint string) (any, *FieldViolation) {
		return nil, &FieldViolation{Field: f.Name, Constraint: constraint, Received: raw}
	}

	switch f.Kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return fail("must be a string")
		}
		if f.NonEmpty && isBlank(s) {
			return fail("must not be empty")
		}
		return s, nil

	case KindNumber:
		n, ok := asNumber(raw)
		if !ok {
			return fail("must be a number")
		}
		if f.Min != nil && n < *f.Min {
			return fail(fmt.Sprintf("must be >= %v", *f.Min))
		}
		if f.Max != nil && n > *f.Max {
			return fail(fmt.Sprintf("must be <= %v", *f.Max))
		}
		return n, nil

	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return fail("must be a boolean")
		}
		return b, nil

	case KindDate:
		s, ok := raw.(string)
		if !ok {
			return fail("must be a date string")
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t.UTC(), nil
		}
		return fail("must be RFC3339 or YYYY-MM-DD")

	case KindEnum:
		s, ok := raw.(string)
		if !ok {
			return fail("must be a string")
		}
		for _, allowed := range f.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return fail(fmt.Sprintf("must be one of %v", f.Enum))
	}

	return fail("unknown field kind")
}

func asNumber(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// Ptr returns a pointer to v. Convenience for Shape bounds.
func Ptr[T any](v T) *T { return &v }
