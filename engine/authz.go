/*
authz.go - Role bindings and the action->minimum-role table

PURPOSE:
  Decides ALLOW or DENY for a caller attempting an action on a farm.
  The decision is a pure function over the caller's already-fetched
  role binding; callers (domain services) read the binding immediately
  before deciding, never from a cache.

ROLE ORDERING:
  viewer < worker < manager < owner

  Authorization is monotone: any action permitted for a role is permitted
  for every higher role. The one deliberate asymmetry: administering the
  farm team itself (removing a member, changing another member's role)
  requires the OWNER, never just a manager. A manager may approve time-off
  and payroll but may not touch membership.

ACTION TABLE:
  A single static table maps every action to its minimum role. Routers
  never re-derive permission checks ad hoc.

SEE ALSO:
  - errors.go: NotAMemberError / InsufficientRoleError
  - transition.go: Per-edge role requirements reuse the same ordering
*/
package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// ROLES
// =============================================================================

// Role is a permission level within one farm. The zero value is invalid.
type Role int

const (
	RoleViewer Role = iota + 1
	RoleWorker      // field workers and accountants share this level
	RoleManager
	RoleOwner
)

var roleNames = map[Role]string{
	RoleViewer:  "viewer",
	RoleWorker:  "worker",
	RoleManager: "manager",
	RoleOwner:   "owner",
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func (r Role) Valid() bool { return r >= RoleViewer && r <= RoleOwner }

// AtLeast reports whether r is at or above min in the role ordering.
func (r Role) AtLeast(min Role) bool { return r >= min }

// ParseRole converts a wire string to a Role.
func ParseRole(s string) (Role, bool) {
	for r, n := range roleNames {
		if n == s {
			return r, true
		}
	}
	return 0, false
}

// =============================================================================
// ROLE BINDING - User <-> farm association
// =============================================================================

// RoleBinding associates a user with a farm at a permission level.
// Every farm has exactly one binding with RoleOwner.
type RoleBinding struct {
	FarmID    FarmID
	UserID    UserID
	Role      Role
	CreatedAt time.Time
	Version   int64
}

// =============================================================================
// ACTIONS
// =============================================================================

type Action string

const (
	// Read actions
	ActionViewFarm    Action = "viewFarm"
	ActionViewReports Action = "viewReports"

	// Worker registry
	ActionManageWorkers Action = "manageWorkers"

	// Shifts
	ActionScheduleShift Action = "scheduleShift"
	ActionSubmitShift   Action = "submitShift"
	ActionConfirmShift  Action = "confirmShift"
	ActionCompleteShift Action = "completeShift"
	ActionCancelShift   Action = "cancelShift"

	// Time off
	ActionRequestTimeOff Action = "requestTimeOff"
	ActionApproveTimeOff Action = "approveTimeOff"
	ActionRejectTimeOff  Action = "rejectTimeOff"

	// Payroll
	ActionDraftPayroll   Action = "draftPayroll"
	ActionApprovePayroll Action = "approvePayroll"
	ActionPayPayroll     Action = "payPayroll"

	// Tasks
	ActionAssignTask   Action = "assignTask"
	ActionStartTask    Action = "startTask"
	ActionCompleteTask Action = "completeTask"
	ActionCancelTask   Action = "cancelTask"

	// Health records
	ActionRecordHealth Action = "recordHealth"

	// Team administration (owner-only, see below)
	ActionAddMember    Action = "addMember"
	ActionChangeRole   Action = "changeRole"
	ActionRemoveMember Action = "removeMember"
)

// minimumRole is the single source of truth for action permissions.
var minimumRole = map[Action]Role{
	ActionViewFarm:    RoleViewer,
	ActionViewReports: RoleViewer,

	ActionManageWorkers: RoleManager,

	ActionScheduleShift: RoleManager,
	ActionSubmitShift:   RoleWorker,
	ActionConfirmShift:  RoleManager,
	ActionCompleteShift: RoleWorker,
	ActionCancelShift:   RoleManager,

	ActionRequestTimeOff: RoleWorker,
	ActionApproveTimeOff: RoleManager,
	ActionRejectTimeOff:  RoleManager,

	ActionDraftPayroll:   RoleWorker, // accountants hold the worker level
	ActionApprovePayroll: RoleManager,
	ActionPayPayroll:     RoleManager,

	ActionAssignTask:   RoleManager,
	ActionStartTask:    RoleWorker,
	ActionCompleteTask: RoleWorker,
	ActionCancelTask:   RoleManager,

	ActionRecordHealth: RoleWorker,

	// Destructive actions on the team itself are owner-only. A manager may
	// approve expenses but may not remove other members.
	ActionAddMember:    RoleOwner,
	ActionChangeRole:   RoleOwner,
	ActionRemoveMember: RoleOwner,
}

// MinimumRole returns the minimum role the action requires.
func MinimumRole(action Action) (Role, bool) {
	r, ok := minimumRole[action]
	return r, ok
}

// =============================================================================
// DECISION
// =============================================================================

// Authorize resolves a caller's binding against an action. A nil binding
// means the caller has no membership for the farm and is denied with
// NotAMemberError. Otherwise the caller's role is compared to the action's
// minimum. Pure: no I/O, no clock.
func Authorize(binding *RoleBinding, farmID FarmID, caller UserID, action Action) error {
	if binding == nil || binding.FarmID != farmID || binding.UserID != caller {
		return &NotAMemberError{FarmID: farmID, UserID: caller}
	}

	required, ok := minimumRole[action]
	if !ok {
		// Unknown actions are never permitted.
		return &InsufficientRoleError{Action: action, Held: binding.Role, Required: RoleOwner}
	}

	if !binding.Role.AtLeast(required) {
		return &InsufficientRoleError{Action: action, Held: binding.Role, Required: required}
	}
	return nil
}
