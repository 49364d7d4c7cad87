// Package docs RentCore API documentation
package docs

// Swagger documentation info
// @title RentCore Authorization API
// @version 1.0
// @description API documentation for the RentCore authorization service

// @host localhost:8002
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

// Authorization Service Endpoints
// @tag.name authz
// @tag.description Permission decisions
// @tag.name roles
// @tag.description Role and user-role management
// @tag.name assignments
// @tag.description Property assignment management
// @tag.name audit
// @tag.description Audit trail queries, streaming and export
// @tag.name cache
// @tag.description Decision cache maintenance
