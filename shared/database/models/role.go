package models

import (
	"time"

	"github.com/google/uuid"
)

// System role names. Levels are strictly decreasing; the gateway compares
// them for "at or below my own level" checks.
const (
	RoleNameOwner       = "OWNER"
	RoleNameAdmin       = "ADMIN"
	RoleNameManager     = "MANAGER"
	RoleNameCoordinator = "COORDINATOR"
	RoleNameViewer      = "VIEWER"
)

const (
	RoleLevelOwner       = 10
	RoleLevelAdmin       = 9
	RoleLevelManager     = 7
	RoleLevelCoordinator = 5
	RoleLevelViewer      = 1
)

// Role is an organization-level permission bundle. System roles are shared
// templates with a nil OrganizationID and must never be mutated at runtime.
type Role struct {
	ID             uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name           string        `json:"name" gorm:"size:100;not null"`
	Description    string        `json:"description" gorm:"type:text"`
	Permissions    PermissionMap `json:"permissions" gorm:"type:jsonb"`
	Level          int           `json:"level" gorm:"not null;default:1"`
	IsSystemRole   bool          `json:"is_system_role" gorm:"default:false"`
	OrganizationID *uuid.UUID    `json:"organization_id" gorm:"type:uuid"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`

	// Relations
	Organization *Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
}
