package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentcore-backend/shared/database/models"
)

// Store reads and mutates user-role bindings and property assignments.
// Mutations never delete rows: revocation flips IsActive so audit entries
// keep valid references.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store over the shared database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// UserByID resolves an authenticated principal to its user record.
func (s *Store) UserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewError(ErrInvalidCredential, "unknown user").WithUser(userID.String())
	}
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error()).WithUser(userID.String())
	}
	return &user, nil
}

// ActiveRolesForUser returns the roles behind the user's active bindings in
// an organization.
func (s *Store) ActiveRolesForUser(ctx context.Context, userID, orgID uuid.UUID) ([]models.Role, error) {
	var roles []models.Role
	err := s.db.WithContext(ctx).
		Joins("JOIN user_roles ur ON ur.role_id = roles.id").
		Where("ur.user_id = ? AND ur.organization_id = ? AND ur.is_active = ?", userID, orgID, true).
		Find(&roles).Error
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error()).WithUser(userID.String())
	}
	return roles, nil
}

// ActiveAssignmentsForUser returns the user's active property assignments in
// an organization.
func (s *Store) ActiveAssignmentsForUser(ctx context.Context, userID, orgID uuid.UUID) ([]models.PropertyAssignment, error) {
	var assignments []models.PropertyAssignment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND organization_id = ? AND is_active = ?", userID, orgID, true).
		Find(&assignments).Error
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error()).WithUser(userID.String())
	}
	return assignments, nil
}

// ActiveAssignment returns the active assignment binding a user to a
// property, or nil if there is none.
func (s *Store) ActiveAssignment(ctx context.Context, userID, propertyID uuid.UUID) (*models.PropertyAssignment, error) {
	var assignment models.PropertyAssignment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND property_id = ? AND is_active = ?", userID, propertyID, true).
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error()).WithUser(userID.String())
	}
	return &assignment, nil
}

// MaxRoleLevel returns the highest level among the user's active roles,
// or 0 when the user has none.
func (s *Store) MaxRoleLevel(ctx context.Context, userID, orgID uuid.UUID) (int, error) {
	roles, err := s.ActiveRolesForUser(ctx, userID, orgID)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, role := range roles {
		if role.Level > max {
			max = role.Level
		}
	}
	return max, nil
}

// AssignRole creates an active user-role binding. An identical active
// binding is rejected with ErrDuplicateAssignment.
func (s *Store) AssignRole(ctx context.Context, userID, roleID, orgID uuid.UUID, assignedBy *uuid.UUID) (*models.UserRole, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.UserRole{}).
		Where("user_id = ? AND role_id = ? AND organization_id = ? AND is_active = ?", userID, roleID, orgID, true).
		Count(&count).Error
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error()).WithUser(userID.String())
	}
	if count > 0 {
		return nil, NewError(ErrDuplicateAssignment, "user already holds this role").WithUser(userID.String())
	}

	binding := models.UserRole{
		UserID:         userID,
		RoleID:         roleID,
		OrganizationID: orgID,
		IsActive:       true,
		AssignedBy:     assignedBy,
	}
	if err := s.db.WithContext(ctx).Create(&binding).Error; err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error()).WithUser(userID.String())
	}
	return &binding, nil
}

// AssignProperty creates an active property assignment. Duplicate rule is
// scoped to (user, property).
func (s *Store) AssignProperty(ctx context.Context, userID, propertyID uuid.UUID, roleType models.RoleType, orgID uuid.UUID, assignedBy *uuid.UUID, permissions *models.PermissionMap) (*models.PropertyAssignment, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PropertyAssignment{}).
		Where("user_id = ? AND property_id = ? AND is_active = ?", userID, propertyID, true).
		Count(&count).Error
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error()).WithUser(userID.String())
	}
	if count > 0 {
		return nil, NewError(ErrDuplicateAssignment, "user is already assigned to this property").WithUser(userID.String())
	}

	assignment := models.PropertyAssignment{
		UserID:         userID,
		PropertyID:     propertyID,
		OrganizationID: orgID,
		RoleType:       roleType,
		Permissions:    permissions,
		IsActive:       true,
		AssignedBy:     assignedBy,
	}
	if err := s.db.WithContext(ctx).Create(&assignment).Error; err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error()).WithUser(userID.String())
	}
	return &assignment, nil
}

// RevokeUserRole deactivates a binding and returns its prior state for
// audit snapshots. Bindings belonging to a different organization are
// invisible and report ErrAssignmentNotFound.
func (s *Store) RevokeUserRole(ctx context.Context, bindingID, organizationID uuid.UUID) (*models.UserRole, error) {
	var binding models.UserRole
	err := s.db.WithContext(ctx).First(&binding, "id = ? AND organization_id = ?", bindingID, organizationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewError(ErrAssignmentNotFound, "user role "+bindingID.String())
	}
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error())
	}
	if !binding.IsActive {
		return nil, NewError(ErrAssignmentNotFound, "user role already revoked")
	}

	// Update mutates the model in place; keep the pre-revocation copy.
	prior := binding
	if err := s.db.WithContext(ctx).Model(&binding).Update("is_active", false).Error; err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error())
	}
	return &prior, nil
}

// RevokeAssignment deactivates a property assignment. Assignments
// belonging to a different organization are invisible and report
// ErrAssignmentNotFound.
func (s *Store) RevokeAssignment(ctx context.Context, assignmentID, organizationID uuid.UUID) (*models.PropertyAssignment, error) {
	var assignment models.PropertyAssignment
	err := s.db.WithContext(ctx).First(&assignment, "id = ? AND organization_id = ?", assignmentID, organizationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewError(ErrAssignmentNotFound, "assignment "+assignmentID.String())
	}
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error())
	}
	if !assignment.IsActive {
		return nil, NewError(ErrAssignmentNotFound, "assignment already revoked")
	}

	prior := assignment
	if err := s.db.WithContext(ctx).Model(&assignment).Update("is_active", false).Error; err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error())
	}
	return &prior, nil
}
