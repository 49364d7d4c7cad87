package authz

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentcore-backend/shared/database/models"
)

// Protected resource names. The evaluator treats resources as opaque strings;
// these constants exist so handlers and seed data agree on spelling.
const (
	ResourceProperties    = "properties"
	ResourceLeases        = "leases"
	ResourceTenants       = "tenants"
	ResourceMaintenance   = "maintenance"
	ResourceDocuments     = "documents"
	ResourceReports       = "reports"
	ResourceUsers         = "users"
	ResourceRoles         = "roles"
	ResourceOrganizations = "organizations"
	ResourceAuditLogs     = "audit-logs"
)

// SystemRoleDefinition is a seeded role template shared by every
// organization. Definitions are constants; the seeder writes them to the
// roles table with a nil organization.
type SystemRoleDefinition struct {
	Name        string
	Description string
	Level       int
	Permissions models.PermissionMap
}

// SystemRoles returns the built-in role templates ordered by level,
// highest privilege first.
func SystemRoles() []SystemRoleDefinition {
	return []SystemRoleDefinition{
		{
			Name:        models.RoleNameOwner,
			Description: "Organization owner with unconditional access",
			Level:       models.RoleLevelOwner,
			Permissions: models.AllowAll(),
		},
		{
			Name:        models.RoleNameAdmin,
			Description: "Administrator with full access to every resource",
			Level:       models.RoleLevelAdmin,
			Permissions: models.PermissionMap{Resources: map[string][]models.Action{
				ResourceProperties:    {models.ActionAll},
				ResourceLeases:        {models.ActionAll},
				ResourceTenants:       {models.ActionAll},
				ResourceMaintenance:   {models.ActionAll},
				ResourceDocuments:     {models.ActionAll},
				ResourceReports:       {models.ActionAll},
				ResourceUsers:         {models.ActionAll},
				ResourceRoles:         {models.ActionAll},
				ResourceAuditLogs:     {models.ActionRead},
				ResourceOrganizations: {models.ActionRead, models.ActionUpdate},
			}},
		},
		{
			Name:        models.RoleNameManager,
			Description: "Property manager handling day-to-day operations",
			Level:       models.RoleLevelManager,
			Permissions: models.PermissionMap{Resources: map[string][]models.Action{
				ResourceProperties:  {models.ActionRead, models.ActionUpdate},
				ResourceLeases:      {models.ActionCreate, models.ActionRead, models.ActionUpdate},
				ResourceTenants:     {models.ActionCreate, models.ActionRead, models.ActionUpdate},
				ResourceMaintenance: {models.ActionCreate, models.ActionRead, models.ActionUpdate},
				ResourceDocuments:   {models.ActionCreate, models.ActionRead},
				ResourceReports:     {models.ActionRead},
			}},
		},
		{
			Name:        models.RoleNameCoordinator,
			Description: "Coordinator assisting managers on assigned work",
			Level:       models.RoleLevelCoordinator,
			Permissions: models.PermissionMap{Resources: map[string][]models.Action{
				ResourceProperties:  {models.ActionRead},
				ResourceLeases:      {models.ActionRead, models.ActionUpdate},
				ResourceTenants:     {models.ActionRead, models.ActionUpdate},
				ResourceMaintenance: {models.ActionRead, models.ActionUpdate},
				ResourceDocuments:   {models.ActionRead},
			}},
		},
		{
			Name:        models.RoleNameViewer,
			Description: "Read-only access",
			Level:       models.RoleLevelViewer,
			Permissions: models.PermissionMap{Resources: map[string][]models.Action{
				ResourceProperties:  {models.ActionRead},
				ResourceLeases:      {models.ActionRead},
				ResourceTenants:     {models.ActionRead},
				ResourceMaintenance: {models.ActionRead},
				ResourceDocuments:   {models.ActionRead},
				ResourceReports:     {models.ActionRead},
			}},
		},
	}
}

// SystemRoleByName returns the definition for a system role name.
func SystemRoleByName(name string) (SystemRoleDefinition, bool) {
	for _, def := range SystemRoles() {
		if def.Name == name {
			return def, true
		}
	}
	return SystemRoleDefinition{}, false
}

// Registry resolves role records. System roles are loaded once and cached
// read-only; they change only through re-seeding, so the cache is safe to
// share across concurrent requests. Organization roles are always read from
// the store.
type Registry struct {
	db *gorm.DB

	mu          sync.RWMutex
	systemRoles []models.Role
}

// NewRegistry creates a Registry over the shared database handle.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// RoleByID fetches a single role.
func (r *Registry) RoleByID(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	var role models.Role
	err := r.db.WithContext(ctx).First(&role, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewError(ErrRoleNotFound, "role "+id.String())
	}
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error())
	}
	return &role, nil
}

// RolesForOrganization returns the system roles plus the organization's own
// custom roles, ordered by level descending.
func (r *Registry) RolesForOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Role, error) {
	system, err := r.loadSystemRoles(ctx)
	if err != nil {
		return nil, err
	}

	var custom []models.Role
	err = r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("level DESC, name ASC").
		Find(&custom).Error
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error())
	}

	roles := make([]models.Role, 0, len(system)+len(custom))
	roles = append(roles, system...)
	roles = append(roles, custom...)

	// Keep the combined sequence ordered by level; stable so each source's
	// own ordering survives among equal levels.
	sort.SliceStable(roles, func(i, j int) bool {
		return roles[i].Level > roles[j].Level
	})

	return roles, nil
}

// loadSystemRoles fills the cache on first use.
func (r *Registry) loadSystemRoles(ctx context.Context) ([]models.Role, error) {
	r.mu.RLock()
	if r.systemRoles != nil {
		defer r.mu.RUnlock()
		return r.systemRoles, nil
	}
	r.mu.RUnlock()

	var system []models.Role
	err := r.db.WithContext(ctx).
		Where("is_system_role = ?", true).
		Order("level DESC").
		Find(&system).Error
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error())
	}

	r.mu.Lock()
	r.systemRoles = system
	r.mu.Unlock()

	return system, nil
}

// InvalidateCache drops the cached system roles (used after re-seeding).
func (r *Registry) InvalidateCache() {
	r.mu.Lock()
	r.systemRoles = nil
	r.mu.Unlock()
}
