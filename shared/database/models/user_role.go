package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole binds a user to a role within an organization. A user may hold
// several active bindings at once; the effective level for coarse checks is
// the highest among them. Revocation flips IsActive, rows are never deleted.
type UserRole struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index:idx_user_roles_user_org"`
	RoleID         uuid.UUID  `json:"role_id" gorm:"type:uuid;not null"`
	OrganizationID uuid.UUID  `json:"organization_id" gorm:"type:uuid;not null;index:idx_user_roles_user_org"`
	IsActive       bool       `json:"is_active" gorm:"default:true;not null"`
	AssignedAt     time.Time  `json:"assigned_at" gorm:"autoCreateTime"`
	AssignedBy     *uuid.UUID `json:"assigned_by" gorm:"type:uuid"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Relations
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Role *Role `json:"role,omitempty" gorm:"foreignKey:RoleID"`
}
