/*
Package engine provides the core authorized-mutation engine for farm resources.

PURPOSE:
  This package contains the tenant-agnostic building blocks that every
  resource router in the system repeats: schema validation, role-based
  authorization, status-transition enforcement, and derived aggregate
  computation. Whether the resource is a shift, a time-off request, a
  payroll record, or a task assignment, the same four decisions are made
  in the same order before anything is persisted.

KEY CONCEPTS IN THIS FILE (types.go):
  - FarmID/UserID: Type-safe identifiers for the tenant boundary and callers
  - Hours: A decimal quantity of worked/estimated hours
  - Clock: Injectable time source so tests control "now"

DESIGN PRINCIPLES:
  1. Purity: Every decision function operates on already-fetched state
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing farm and user IDs
  4. Centralization: One transition table, one role table, never per-router

SEE ALSO:
  - schema.go: Request shape validation
  - authz.go: Role bindings and the action->role table
  - transition.go: Per-entity status transition tables
  - aggregate.go: Efficiency, compliance, and summary math
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type FarmID string
type UserID string

// =============================================================================
// HOURS - Decimal quantity of hours
// =============================================================================

type Hours struct {
	Value decimal.Decimal
}

func NewHours(v float64) Hours {
	return Hours{Value: decimal.NewFromFloat(v)}
}

func (h Hours) Add(o Hours) Hours      { return Hours{Value: h.Value.Add(o.Value)} }
func (h Hours) IsZero() bool           { return h.Value.IsZero() }
func (h Hours) IsPositive() bool       { return h.Value.IsPositive() }
func (h Hours) IsNegative() bool       { return h.Value.IsNegative() }
func (h Hours) Float64() float64       { f, _ := h.Value.Float64(); return f }
func (h Hours) String() string         { return h.Value.String() }
func (h Hours) Equal(o Hours) bool     { return h.Value.Equal(o.Value) }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock supplies the current time. Services take a Clock instead of calling
// time.Now directly so tests can pin timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock delegates to time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
