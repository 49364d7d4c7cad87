package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Action is the closed set of operations that can be performed on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"

	// ActionAll is the wildcard action inside a resource grant.
	ActionAll Action = "*"
)

// ParseAction validates an action identifier coming from the outside.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionAll:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action: %q", s)
}

// ActionFromMethod maps an HTTP method to the audit/permission action.
func ActionFromMethod(method string) Action {
	switch method {
	case "POST":
		return ActionCreate
	case "PUT", "PATCH":
		return ActionUpdate
	case "DELETE":
		return ActionDelete
	default:
		return ActionRead
	}
}

// PermissionMap is a role's permission set: either the unconditional "all"
// sentinel or a mapping from resource name to allowed actions.
//
// JSON shape (also the jsonb column format):
//
//	{"all": true}
//	{"properties": ["read", "update"], "leases": ["create", "read", "update"]}
type PermissionMap struct {
	All       bool
	Resources map[string][]Action
}

// AllowAll returns the superuser permission map.
func AllowAll() PermissionMap {
	return PermissionMap{All: true}
}

// Allows reports whether the map grants action on resource.
// The "all" sentinel wins over any resource entry.
func (m PermissionMap) Allows(resource string, action Action) bool {
	if m.All {
		return true
	}
	actions, ok := m.Resources[resource]
	if !ok {
		return false
	}
	for _, a := range actions {
		if a == ActionAll || a == action {
			return true
		}
	}
	return false
}

// IsZero reports whether the map grants nothing at all.
func (m PermissionMap) IsZero() bool {
	return !m.All && len(m.Resources) == 0
}

func (m PermissionMap) MarshalJSON() ([]byte, error) {
	if m.All {
		return json.Marshal(map[string]bool{"all": true})
	}
	if m.Resources == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.Resources)
}

func (m *PermissionMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if allRaw, ok := raw["all"]; ok {
		var all bool
		if err := json.Unmarshal(allRaw, &all); err != nil {
			return err
		}
		if all {
			*m = PermissionMap{All: true}
			return nil
		}
		delete(raw, "all")
	}

	resources := make(map[string][]Action, len(raw))
	for resource, actionsRaw := range raw {
		var actions []Action
		if err := json.Unmarshal(actionsRaw, &actions); err != nil {
			return err
		}
		resources[resource] = actions
	}
	*m = PermissionMap{Resources: resources}
	return nil
}

// Value implements driver.Valuer so the map persists as jsonb.
func (m PermissionMap) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for jsonb columns.
func (m *PermissionMap) Scan(value interface{}) error {
	if value == nil {
		*m = PermissionMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return errors.New("unsupported type for PermissionMap")
}

// RoleType is the property-assignment role. It shares vocabulary with the
// seeded organization roles but is an independent enumeration with its own
// hard-coded action sets.
type RoleType string

const (
	RoleTypeOwner       RoleType = "OWNER"
	RoleTypeAdmin       RoleType = "ADMIN"
	RoleTypeManager     RoleType = "MANAGER"
	RoleTypeCoordinator RoleType = "COORDINATOR"
	RoleTypeViewer      RoleType = "VIEWER"
)

// ParseRoleType validates a property-assignment role type.
func ParseRoleType(s string) (RoleType, error) {
	switch RoleType(s) {
	case RoleTypeOwner, RoleTypeAdmin, RoleTypeManager, RoleTypeCoordinator, RoleTypeViewer:
		return RoleType(s), nil
	}
	return "", fmt.Errorf("unknown role type: %q", s)
}

// roleTypeActions are the static per-assignment action sets.
var roleTypeActions = map[RoleType][]Action{
	RoleTypeOwner:       {ActionAll},
	RoleTypeAdmin:       {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	RoleTypeManager:     {ActionCreate, ActionRead, ActionUpdate},
	RoleTypeCoordinator: {ActionRead, ActionUpdate},
	RoleTypeViewer:      {ActionRead},
}

// Allows reports whether the role type's static action set covers action.
func (rt RoleType) Allows(action Action) bool {
	for _, a := range roleTypeActions[rt] {
		if a == ActionAll || a == action {
			return true
		}
	}
	return false
}

// Actions returns a copy of the role type's static action set.
func (rt RoleType) Actions() []Action {
	actions := roleTypeActions[rt]
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}
