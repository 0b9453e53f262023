/*
team.go - Farm creation and role binding administration

PURPOSE:
  Manages the farm's team: who belongs, at what level. Administration of
  the team itself (adding members, changing roles, removing members) is
  owner-only; the guard enforces that asymmetry, this service enforces the
  one-owner invariant on top.

ONE OWNER:
  Every farm has exactly one owner: the creator. Members are added at
  viewer/worker/manager; the owner binding can be neither removed nor
  demoted. Ownership transfer is intentionally not an operation.

SEE ALSO:
  - ../engine/authz.go: The action->role table this service consults
*/
package farm

import (
	"context"
	"fmt"

	"github.com/acrefield/farm-engine/engine"
)

type TeamService struct {
	deps
}

// =============================================================================
// SHAPES
// =============================================================================

var memberRoles = []string{"viewer", "worker", "manager"}

var createFarmShape = engine.Shape{
	Name: "createFarm",
	Fields: []engine.Field{
		{Name: "name", Kind: engine.KindString, Required: true, NonEmpty: true},
	},
}

var addMemberShape = engine.Shape{
	Name: "addMember",
	Fields: []engine.Field{
		{Name: "userId", Kind: engine.KindString, Required: true, NonEmpty: true},
		{Name: "role", Kind: engine.KindEnum, Required: true, Enum: memberRoles},
	},
}

var changeRoleShape = engine.Shape{
	Name: "changeRole",
	Fields: []engine.Field{
		{Name: "role", Kind: engine.KindEnum, Required: true, Enum: memberRoles},
	},
}

// =============================================================================
// OPERATIONS
// =============================================================================

// CreateFarm creates a farm with the caller as its owner. The farm and the
// owner binding are written in one transaction.
func (s *TeamService) CreateFarm(ctx context.Context, caller engine.UserID, payload map[string]any) (*Farm, error) {
	values, verr := createFarmShape.Validate(payload)
	if verr != nil {
		return nil, verr
	}

	now := s.clock.Now()
	f := Farm{
		ID:        engine.FarmID(newID("farm")),
		Name:      values.String("name"),
		OwnerID:   caller,
		CreatedAt: now,
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.InsertFarm(ctx, f); err != nil {
			return err
		}
		return tx.InsertBinding(ctx, engine.RoleBinding{
			FarmID:    f.ID,
			UserID:    caller,
			Role:      engine.RoleOwner,
			CreatedAt: now,
			Version:   1,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("creating farm: %w", err)
	}

	s.audit(ctx, f.ID, caller, "createFarm", AuditAllow, f.Name)
	return &f, nil
}

// ListMembers returns the farm's role bindings. Any member may view.
func (s *TeamService) ListMembers(ctx context.Context, farmID engine.FarmID, caller engine.UserID) ([]engine.RoleBinding, error) {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionViewFarm); err != nil {
		return nil, err
	}
	return s.store.ListBindings(ctx, farmID)
}

// AddMember binds a user to the farm. Owner-only. New members never enter
// as owner: the one-owner invariant holds by construction.
func (s *TeamService) AddMember(ctx context.Context, farmID engine.FarmID, caller engine.UserID, payload map[string]any) (*engine.RoleBinding, error) {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionAddMember); err != nil {
		return nil, err
	}

	values, verr := addMemberShape.Validate(payload)
	if verr != nil {
		return nil, verr
	}
	role, _ := engine.ParseRole(values.String("role"))
	target := engine.UserID(values.String("userId"))

	b := engine.RoleBinding{
		FarmID:    farmID,
		UserID:    target,
		Role:      role,
		CreatedAt: s.clock.Now(),
		Version:   1,
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		if existing, err := tx.GetBinding(ctx, farmID, target); err == nil && existing != nil {
			return &engine.ValidationError{
				Shape: "addMember",
				Violations: []engine.FieldViolation{
					{Field: "userId", Constraint: "already a member", Received: string(target)},
				},
			}
		} else if err != nil && !engine.IsNotFound(err) {
			return err
		}
		return tx.InsertBinding(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, farmID, caller, "addMember", AuditAllow, string(target)+" as "+role.String())
	s.dispatch(ctx, farmID, caller, "team.member_added", string(target), map[string]string{"role": role.String()})
	return &b, nil
}

// ChangeRole moves an existing member to a new level. Owner-only; the
// owner binding itself cannot be demoted.
func (s *TeamService) ChangeRole(ctx context.Context, farmID engine.FarmID, caller engine.UserID, target engine.UserID, payload map[string]any) (*engine.RoleBinding, error) {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionChangeRole); err != nil {
		return nil, err
	}

	values, verr := changeRoleShape.Validate(payload)
	if verr != nil {
		return nil, verr
	}
	role, _ := engine.ParseRole(values.String("role"))

	var out engine.RoleBinding
	err := s.transactRetry(ctx, func(tx Store) error {
		b, err := tx.GetBinding(ctx, farmID, target)
		if err != nil {
			return err
		}
		if err := guardLastOwner(ctx, tx, farmID, b); err != nil {
			return err
		}
		out = *b
		out.Role = role
		if err := tx.UpdateBinding(ctx, out, b.Version); err != nil {
			return err
		}
		out.Version = b.Version + 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, farmID, caller, "changeRole", AuditAllow, string(target)+" -> "+role.String())
	return &out, nil
}

// guardLastOwner rejects demoting or removing a binding when it is the
// farm's only owner binding. Counted inside the transaction so the guard
// stays correct even if the data ever holds more than one owner.
func guardLastOwner(ctx context.Context, tx Store, farmID engine.FarmID, b *engine.RoleBinding) error {
	if b.Role != engine.RoleOwner {
		return nil
	}
	owners, err := tx.CountOwners(ctx, farmID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return engine.ErrLastOwner
	}
	return nil
}

// RemoveMember deletes a member's binding. Owner-only; the owner binding
// cannot be removed.
func (s *TeamService) RemoveMember(ctx context.Context, farmID engine.FarmID, caller engine.UserID, target engine.UserID) error {
	if _, err := s.authorize(ctx, farmID, caller, engine.ActionRemoveMember); err != nil {
		return err
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		b, err := tx.GetBinding(ctx, farmID, target)
		if err != nil {
			return err
		}
		if err := guardLastOwner(ctx, tx, farmID, b); err != nil {
			return err
		}
		return tx.DeleteBinding(ctx, farmID, target)
	})
	if err != nil {
		return err
	}

	s.audit(ctx, farmID, caller, "removeMember", AuditAllow, string(target))
	s.dispatch(ctx, farmID, caller, "team.member_removed", string(target), nil)
	return nil
}
