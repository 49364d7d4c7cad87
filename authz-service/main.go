package main

import (
	"log"
	"net/http"
	"strings"

	"rentcore-backend/authz-service/handlers"
	"rentcore-backend/authz-service/middleware"
	"rentcore-backend/authz-service/services"
	"rentcore-backend/shared/authz"
	"rentcore-backend/shared/config"
	"rentcore-backend/shared/database"
	"rentcore-backend/shared/database/models"
	"rentcore-backend/shared/utils/cache"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func main() {

	// Load configuration
	config.LoadConfig()

	// Initialize database
	if err := database.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDatabase()

	// Initialize Redis Cache Manager
	if err := cache.InitCacheManager(); err != nil {
		log.Printf("⚠️  Warning: Redis cache not available: %v", err)
		log.Println("🔄 Service will continue without decision caching...")
	} else {
		cacheManager := cache.GetCacheManager()
		if cacheManager != nil {
			if err := cacheManager.TestConnection(); err != nil {
				log.Printf("⚠️  Warning: Redis connection test failed: %v", err)
			}
		}
	}

	db := database.GetDB()

	store := authz.NewStore(db)
	registry := authz.NewRegistry(db)

	var decisionCache authz.DecisionCache
	var invalidator handlers.DecisionInvalidator
	if manager := cache.GetCacheManager(); manager != nil {
		decisionCache = manager
		invalidator = manager
	}

	evaluator := authz.NewEvaluator(store, store, decisionCache)

	streamManager := services.GetAuditStreamManager()
	recorder := authz.NewRecorder(authz.NewGormSink(db), streamManager)
	defer recorder.Wait()

	archiveService, err := services.NewAuditArchiveService(db)
	if err != nil {
		log.Printf("⚠️  Warning: Audit archive storage not available: %v", err)
		archiveService = nil
	}

	gateway := middleware.NewGateway(store, evaluator, store)

	checkHandler := handlers.NewPermissionCheckHandler(evaluator)
	roleHandler := handlers.NewRoleHandler(db, registry, store, recorder, invalidator)
	assignmentHandler := handlers.NewAssignmentHandler(db, store, recorder, invalidator)
	auditHandler := handlers.NewAuditHandler(db, streamManager, archiveService)
	cacheHandler := handlers.NewCacheHandler()

	router := gin.Default()
	router.Use(cors.Default())

	api := router.Group("/api/authz")
	api.Use(gateway.Authenticate(), gateway.ScopeOrganization())

	// Decision Routes
	api.POST("/check", checkHandler.CheckPermission)
	api.POST("/batch-check", checkHandler.BatchCheckPermissions)

	scoped := api.Group("")
	scoped.Use(gateway.RequireOrganization())

	// Role Management Routes
	scoped.GET("/roles", gateway.RequirePermission(authz.ResourceRoles, models.ActionRead), roleHandler.GetRoles)
	scoped.POST("/roles", gateway.RequirePermission(authz.ResourceRoles, models.ActionCreate), roleHandler.CreateRole)
	scoped.PUT("/roles/:id", gateway.RequirePermission(authz.ResourceRoles, models.ActionUpdate), roleHandler.UpdateRole)

	// User Role Binding Routes
	scoped.POST("/user-roles", gateway.RequirePermission(authz.ResourceRoles, models.ActionCreate), roleHandler.AssignRole)
	scoped.DELETE("/user-roles/:id", gateway.RequirePermission(authz.ResourceRoles, models.ActionDelete), roleHandler.RevokeRole)

	// Property Assignment Routes
	scoped.GET("/assignments", gateway.RequirePermission(authz.ResourceProperties, models.ActionRead), assignmentHandler.GetAssignments)
	scoped.POST("/assignments", gateway.RequirePermission(authz.ResourceProperties, models.ActionUpdate), assignmentHandler.CreateAssignment)
	scoped.DELETE("/assignments/:id", gateway.RequirePermission(authz.ResourceProperties, models.ActionUpdate), assignmentHandler.RevokeAssignment)

	// Audit Routes
	scoped.GET("/audit-logs", gateway.RequirePermission(authz.ResourceAuditLogs, models.ActionRead), auditHandler.GetAuditLogs)
	scoped.GET("/audit-logs/stream", gateway.RequirePermission(authz.ResourceAuditLogs, models.ActionRead), auditHandler.StreamAuditLogs)
	scoped.POST("/audit-logs/export", gateway.RequirePermission(authz.ResourceAuditLogs, models.ActionRead), auditHandler.ExportAuditLogs)
	scoped.GET("/audit-logs/:entity_type/:entity_id", gateway.RequirePermission(authz.ResourceAuditLogs, models.ActionRead), auditHandler.GetEntityHistory)

	// Cache Management Routes
	scoped.GET("/cache/stats", gateway.RequireRoleLevel(models.RoleLevelAdmin), cacheHandler.GetCacheStats)
	scoped.DELETE("/cache/users/:user_id", gateway.RequireRoleLevel(models.RoleLevelAdmin), cacheHandler.InvalidateUserCache)
	scoped.DELETE("/cache", gateway.RequireRoleLevel(models.RoleLevelAdmin), cacheHandler.InvalidateAllCache)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "authz",
		})
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	port := strings.Split(config.GetConfig().AuthzServiceURL, ":")[2]
	log.Printf("Authorization Service starting on port %s...", port)
	router.Run(":" + port)
}
