package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcore-backend/shared/authz"
	"rentcore-backend/shared/database/models"
	utils "rentcore-backend/shared/utils/auth"
)

type fakeUserSource struct {
	users map[uuid.UUID]*models.User
	err   error
}

func (f *fakeUserSource) UserByID(_ context.Context, userID uuid.UUID) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

type fakeChecker struct {
	decision authz.Decision
	lastProp *uuid.UUID
}

func (f *fakeChecker) CheckPermission(_ context.Context, _, _ uuid.UUID, resource string, action models.Action, propertyID *uuid.UUID) authz.Decision {
	f.lastProp = propertyID
	d := f.decision
	d.Resource = resource
	d.Action = action
	return d
}

type fakeLevels struct {
	level int
	err   error
}

func (f *fakeLevels) MaxRoleLevel(_ context.Context, _, _ uuid.UUID) (int, error) {
	return f.level, f.err
}

func activeUser(orgID *uuid.UUID) *models.User {
	return &models.User{
		ID:             uuid.New(),
		Email:          "user@example.com",
		Status:         models.UserStatusActive,
		OrganizationID: orgID,
	}
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func newTestRouter(gateway *Gateway, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	chain := append([]gin.HandlerFunc{gateway.Authenticate(), gateway.ScopeOrganization()}, handlers...)
	chain = append(chain, okHandler)
	router.GET("/protected", chain...)
	return router
}

func bearerFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := utils.GenerateJWT(user.ID, user.Email, user.OrganizationID)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthenticateMissingHeader(t *testing.T) {
	gateway := NewGateway(&fakeUserSource{}, &fakeChecker{}, &fakeLevels{})
	router := newTestRouter(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CREDENTIAL")
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	gateway := NewGateway(&fakeUserSource{}, &fakeChecker{}, &fakeLevels{})
	router := newTestRouter(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc123")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CREDENTIAL")
}

func TestAuthenticateInvalidToken(t *testing.T) {
	gateway := NewGateway(&fakeUserSource{}, &fakeChecker{}, &fakeLevels{})
	router := newTestRouter(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CREDENTIAL")
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	orgID := uuid.New()
	user := activeUser(&orgID)
	user.Status = models.UserStatusInactive

	users := &fakeUserSource{users: map[uuid.UUID]*models.User{user.ID: user}}
	gateway := NewGateway(users, &fakeChecker{}, &fakeLevels{})
	router := newTestRouter(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerFor(t, user))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "INACTIVE_ACCOUNT")
}

func TestAuthenticateStoreUnavailable(t *testing.T) {
	orgID := uuid.New()
	user := activeUser(&orgID)

	users := &fakeUserSource{err: authz.NewError(authz.ErrStoreUnavailable, "db down")}
	gateway := NewGateway(users, &fakeChecker{}, &fakeLevels{})
	router := newTestRouter(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerFor(t, user))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "STORE_UNAVAILABLE")
}

func TestScopeOrganizationHeaderConflict(t *testing.T) {
	orgID := uuid.New()
	user := activeUser(&orgID)

	users := &fakeUserSource{users: map[uuid.UUID]*models.User{user.ID: user}}
	gateway := NewGateway(users, &fakeChecker{}, &fakeLevels{})
	router := newTestRouter(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerFor(t, user))
	req.Header.Set(OrganizationHeader, uuid.New().String())
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "CROSS_ORGANIZATION_ACCESS_DENIED")
}

func TestScopeOrganizationMatchingHeader(t *testing.T) {
	orgID := uuid.New()
	user := activeUser(&orgID)

	users := &fakeUserSource{users: map[uuid.UUID]*models.User{user.ID: user}}
	gateway := NewGateway(users, &fakeChecker{}, &fakeLevels{})
	router := newTestRouter(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerFor(t, user))
	req.Header.Set(OrganizationHeader, orgID.String())
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScopeOrganizationInvalidHeader(t *testing.T) {
	orgID := uuid.New()
	user := activeUser(&orgID)

	users := &fakeUserSource{users: map[uuid.UUID]*models.User{user.ID: user}}
	gateway := NewGateway(users, &fakeChecker{}, &fakeLevels{})
	router := newTestRouter(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerFor(t, user))
	req.Header.Set(OrganizationHeader, "not-a-uuid")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequireOrganizationWithoutMembership(t *testing.T) {
	user := activeUser(nil)

	users := &fakeUserSource{users: map[uuid.UUID]*models.User{user.ID: user}}
	gateway := NewGateway(users, &fakeChecker{}, &fakeLevels{})
	router := newTestRouter(gateway, gateway.RequireOrganization())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerFor(t, user))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "NO_ORGANIZATION_MEMBERSHIP")
}

func TestRequirePermissionAllowed(t *testing.T) {
	orgID := uuid.New()
	user := activeUser(&orgID)

	users := &fakeUserSource{users: map[uuid.UUID]*models.User{user.ID: user}}
	checker := &fakeChecker{decision: authz.Decision{Allowed: true, Reason: authz.ReasonRolePermission}}
	gateway := NewGateway(users, checker, &fakeLevels{})
	router := newTestRouter(gateway, gateway.RequirePermission(authz.ResourceProperties, models.ActionRead))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerFor(t, user))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, checker.lastProp)
}

func TestRequirePermissionDeniedCarriesDetails(t *testing.T) {
	orgID := uuid.New()
	user := activeUser(&orgID)

	users := &fakeUserSource{users: map[uuid.UUID]*models.User{user.ID: user}}
	checker := &fakeChecker{decision: authz.Decision{
		Allowed:    false,
		Reason:     authz.ReasonNoPermission,
		ScopeLevel: authz.ScopeOrganization,
	}}
	gateway := NewGateway(users, checker, &fakeLevels{})
	router := newTestRouter(gateway, gateway.RequirePermission(authz.ResourceLeases, models.ActionDelete))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerFor(t, user))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "INSUFFICIENT_PERMISSION")
	assert.Contains(t, body, authz.ResourceLeases)
	assert.Contains(t, body, string(models.ActionDelete))
}

func TestRequirePermissionForwardsPropertyScope(t *testing.T) {
	orgID := uuid.New()
	propertyID := uuid.New()
	user := activeUser(&orgID)

	users := &fakeUserSource{users: map[uuid.UUID]*models.User{user.ID: user}}
	checker := &fakeChecker{decision: authz.Decision{Allowed: true}}
	gateway := NewGateway(users, checker, &fakeLevels{})
	router := newTestRouter(gateway, gateway.RequirePermission(authz.ResourceProperties, models.ActionRead))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected?property_id="+propertyID.String(), nil)
	req.Header.Set("Authorization", bearerFor(t, user))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, checker.lastProp)
	assert.Equal(t, propertyID, *checker.lastProp)
}

func TestRequirePermissionRejectsMalformedPropertyID(t *testing.T) {
	orgID := uuid.New()
	user := activeUser(&orgID)

	users := &fakeUserSource{users: map[uuid.UUID]*models.User{user.ID: user}}
	checker := &fakeChecker{decision: authz.Decision{Allowed: true}}
	gateway := NewGateway(users, checker, &fakeLevels{})
	router := newTestRouter(gateway, gateway.RequirePermission(authz.ResourceProperties, models.ActionRead))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected?property_id=not-a-uuid", nil)
	req.Header.Set("Authorization", bearerFor(t, user))
	router.ServeHTTP(w, req)

	// A malformed property id must not silently fall back to the wider
	// organization-scope check.
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_PROPERTY_ID")
	assert.Nil(t, checker.lastProp)
}

func TestRequireRoleLevel(t *testing.T) {
	orgID := uuid.New()
	user := activeUser(&orgID)
	users := &fakeUserSource{users: map[uuid.UUID]*models.User{user.ID: user}}

	tests := []struct {
		name     string
		level    int
		levelErr error
		expected int
	}{
		{"meets minimum", models.RoleLevelAdmin, nil, http.StatusOK},
		{"exceeds minimum", models.RoleLevelOwner, nil, http.StatusOK},
		{"below minimum", models.RoleLevelViewer, nil, http.StatusForbidden},
		{"store failure fails closed", 0, errors.New("db down"), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := NewGateway(users, &fakeChecker{}, &fakeLevels{level: tt.level, err: tt.levelErr})
			router := newTestRouter(gateway, gateway.RequireRoleLevel(models.RoleLevelAdmin))

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", bearerFor(t, user))
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Code)
		})
	}
}
