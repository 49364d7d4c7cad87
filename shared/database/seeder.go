package database

import (
	"log"
	"time"

	"rentcore-backend/shared/authz"
	"rentcore-backend/shared/config"
	"rentcore-backend/shared/database/models"
	utils "rentcore-backend/shared/utils/auth"
)

// SeedDatabase seeds the database with initial data
func SeedDatabase() error {
	log.Println("🌱 Checking database seed data...")

	// Seed System Roles
	rolesCreated, err := seedSystemRoles()
	if err != nil {
		return err
	}

	if rolesCreated > 0 {
		log.Printf("✅ Database seeding completed (%d system roles created)", rolesCreated)
	} else {
		log.Println("✅ Database seed data is up to date")
	}

	// Create super admin from config
	if err := CreateSuperAdminFromConfig(); err != nil {
		return err
	}

	return nil
}

// seedSystemRoles writes the built-in role templates. System roles carry a
// nil organization and are shared by every tenant.
func seedSystemRoles() (int, error) {
	created := 0
	for _, def := range authz.SystemRoles() {
		var existing models.Role
		result := DB.Where("name = ? AND is_system_role = ?", def.Name, true).First(&existing)
		if result.Error != nil {
			role := models.Role{
				Name:         def.Name,
				Description:  def.Description,
				Permissions:  def.Permissions,
				Level:        def.Level,
				IsSystemRole: true,
			}
			if err := DB.Create(&role).Error; err != nil {
				return created, err
			}
			created++
		}
	}

	return created, nil
}

// CreateSuperAdminFromConfig creates super admin using config values
func CreateSuperAdminFromConfig() error {
	cfg := config.GetConfig()
	return CreateSuperAdmin(cfg.SuperAdminEmail, cfg.SuperAdminPassword, "Super", "Admin")
}

// CreateSuperAdmin creates a super admin organization and user with an
// active OWNER binding
func CreateSuperAdmin(email, password, firstName, lastName string) error {
	var existingUser models.User
	if err := DB.Where("email = ?", email).First(&existingUser).Error; err == nil {
		log.Println("Super admin already exists")
		return nil
	}

	var superAdminOrg models.Organization
	err := DB.Where("slug = ?", "super-admin").First(&superAdminOrg).Error
	if err != nil {
		superAdminOrg = models.Organization{
			Name:      "Super Admin Organization",
			Slug:      "super-admin",
			Status:    "ACTIVE",
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		if err := DB.Create(&superAdminOrg).Error; err != nil {
			return err
		}
	}

	var ownerRole models.Role
	if err := DB.Where("name = ? AND is_system_role = ?", models.RoleNameOwner, true).First(&ownerRole).Error; err != nil {
		return err
	}

	// Hash password before creating user
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	superAdminUser := models.User{
		Email:          email,
		Password:       hashedPassword,
		FirstName:      firstName,
		LastName:       lastName,
		Status:         models.UserStatusActive,
		OrganizationID: &superAdminOrg.ID,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := DB.Create(&superAdminUser).Error; err != nil {
		return err
	}

	binding := models.UserRole{
		UserID:         superAdminUser.ID,
		RoleID:         ownerRole.ID,
		OrganizationID: superAdminOrg.ID,
		IsActive:       true,
		AssignedAt:     time.Now(),
	}

	if err := DB.Create(&binding).Error; err != nil {
		return err
	}

	log.Printf("✅ Super admin created: %s", email)
	return nil
}

// SeedDemoData creates a demo organization with a few properties and users
// for local development. Idempotent, keyed on the organization slug.
func SeedDemoData() error {
	var existing models.Organization
	if err := DB.Where("slug = ?", "sunrise-properties").First(&existing).Error; err == nil {
		log.Println("Demo data already exists")
		return nil
	}

	org := models.Organization{
		Name:   "Sunrise Properties",
		Slug:   "sunrise-properties",
		Status: "ACTIVE",
	}
	if err := DB.Create(&org).Error; err != nil {
		return err
	}

	properties := []models.Property{
		{Name: "Sunrise Tower", Address: "12 Harbor Street, Portland", OrganizationID: org.ID},
		{Name: "Maple Court", Address: "240 Maple Avenue, Portland", OrganizationID: org.ID},
	}
	for i := range properties {
		if err := DB.Create(&properties[i]).Error; err != nil {
			return err
		}
	}

	hashedPassword, err := utils.HashPassword("demo1234")
	if err != nil {
		return err
	}

	users := map[string]string{
		"manager@sunrise.test": models.RoleNameManager,
		"viewer@sunrise.test":  models.RoleNameViewer,
	}

	for email, roleName := range users {
		user := models.User{
			Email:          email,
			Password:       hashedPassword,
			Status:         models.UserStatusActive,
			OrganizationID: &org.ID,
		}
		if err := DB.Create(&user).Error; err != nil {
			return err
		}

		var role models.Role
		if err := DB.Where("name = ? AND is_system_role = ?", roleName, true).First(&role).Error; err != nil {
			return err
		}

		binding := models.UserRole{
			UserID:         user.ID,
			RoleID:         role.ID,
			OrganizationID: org.ID,
			IsActive:       true,
			AssignedAt:     time.Now(),
		}
		if err := DB.Create(&binding).Error; err != nil {
			return err
		}

		roleType, parseErr := models.ParseRoleType(roleName)
		if parseErr != nil {
			continue
		}
		assignment := models.PropertyAssignment{
			UserID:         user.ID,
			PropertyID:     properties[0].ID,
			OrganizationID: org.ID,
			RoleType:       roleType,
			IsActive:       true,
		}
		if err := DB.Create(&assignment).Error; err != nil {
			return err
		}
	}

	log.Printf("✅ Demo organization created: %s", org.Slug)
	return nil
}
