package models

import (
	"time"

	"github.com/google/uuid"
)

// Property is a managed unit inside an organization. The authorization core
// only needs its identity and tenant boundary.
type Property struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrganizationID uuid.UUID `json:"organization_id" gorm:"type:uuid;not null;index"`
	Name           string    `json:"name" gorm:"size:200;not null"`
	Address        string    `json:"address" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PropertyAssignment binds a user to a single property with a role type and
// an optional fine-grained permission override. Like UserRole, revocation is
// a soft flag so the audit trail keeps valid references.
type PropertyAssignment struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID         uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index:idx_assignments_user_property"`
	PropertyID     uuid.UUID      `json:"property_id" gorm:"type:uuid;not null;index:idx_assignments_user_property"`
	OrganizationID uuid.UUID      `json:"organization_id" gorm:"type:uuid;not null;index"`
	RoleType       RoleType       `json:"role_type" gorm:"type:varchar(20);not null"`
	Permissions    *PermissionMap `json:"permissions,omitempty" gorm:"type:jsonb"`
	IsActive       bool           `json:"is_active" gorm:"default:true;not null"`
	AssignedAt     time.Time      `json:"assigned_at" gorm:"autoCreateTime"`
	AssignedBy     *uuid.UUID     `json:"assigned_by" gorm:"type:uuid"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	// Relations
	User     *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Property *Property `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
}
