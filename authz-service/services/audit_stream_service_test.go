package services

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcore-backend/authz-service/middleware"
	"rentcore-backend/shared/database/models"
)

func dialStream(t *testing.T, serverURL string, orgID uuid.UUID) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/stream?org="+orgID.String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestAuditStreamDeliversOnlyToSubscriberOrganization(t *testing.T) {
	gin.SetMode(gin.TestMode)
	manager := GetAuditStreamManager()

	router := gin.New()
	router.GET("/stream", func(c *gin.Context) {
		orgID, err := uuid.Parse(c.Query("org"))
		require.NoError(t, err)
		c.Set(middleware.ContextOrganizationIDKey, orgID)
		manager.HandleConnection(c)
	})
	server := httptest.NewServer(router)
	defer server.Close()

	orgA := uuid.New()
	orgB := uuid.New()
	connA := dialStream(t, server.URL, orgA)
	connB := dialStream(t, server.URL, orgB)

	// Registration flows through the hub goroutine.
	time.Sleep(100 * time.Millisecond)

	entryID := uuid.New().String()
	manager.BroadcastAudit(&models.AuditLog{
		EntityType:     "user_role",
		EntityID:       entryID,
		Action:         models.ActionDelete,
		OrganizationID: &orgA,
	})

	connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received models.AuditLog
	require.NoError(t, connA.ReadJSON(&received))
	assert.Equal(t, entryID, received.EntityID)
	require.NotNil(t, received.OrganizationID)
	assert.Equal(t, orgA, *received.OrganizationID)

	connB.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := connB.ReadMessage()
	assert.Error(t, err, "subscriber of another organization must not receive the entry")
}

func TestAuditStreamSkipsEntriesWithoutOrganization(t *testing.T) {
	gin.SetMode(gin.TestMode)
	manager := GetAuditStreamManager()

	router := gin.New()
	router.GET("/stream", func(c *gin.Context) {
		orgID, err := uuid.Parse(c.Query("org"))
		require.NoError(t, err)
		c.Set(middleware.ContextOrganizationIDKey, orgID)
		manager.HandleConnection(c)
	})
	server := httptest.NewServer(router)
	defer server.Close()

	conn := dialStream(t, server.URL, uuid.New())
	time.Sleep(100 * time.Millisecond)

	manager.BroadcastAudit(&models.AuditLog{
		EntityType: "role",
		EntityID:   uuid.New().String(),
		Action:     models.ActionCreate,
	})

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestAuditStreamRequiresOrganizationScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	manager := GetAuditStreamManager()

	router := gin.New()
	router.GET("/stream", manager.HandleConnection)
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL+"/stream", nil)
	if conn != nil {
		conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}
