package services

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"rentcore-backend/authz-service/middleware"
	"rentcore-backend/shared/config"
	"rentcore-backend/shared/database/models"
)

// AuditStreamManager fans recorded audit entries out to connected
// websocket subscribers (admin dashboards tailing the trail live). Every
// subscriber is bound to the organization it authenticated for and only
// receives that organization's entries.
type AuditStreamManager struct {
	clients    map[string]*streamClient // clientID -> subscriber
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	register   chan *streamClient
	unregister chan *streamClient
	broadcast  chan *models.AuditLog
}

type streamClient struct {
	ID             string
	OrganizationID uuid.UUID
	Connection     *websocket.Conn
}

var streamManager *AuditStreamManager
var streamOnce sync.Once

// GetAuditStreamManager returns the singleton stream manager.
func GetAuditStreamManager() *AuditStreamManager {
	streamOnce.Do(func() {
		streamManager = &AuditStreamManager{
			clients: make(map[string]*streamClient),
			upgrader: websocket.Upgrader{
				CheckOrigin: func(r *http.Request) bool {
					origin := r.Header.Get("Origin")
					if origin == "" || origin == config.GetConfig().FrontendURL {
						return true
					}
					log.Printf("🚫 Audit stream connection rejected from origin: %s", origin)
					return false
				},
			},
			register:   make(chan *streamClient, 100),
			unregister: make(chan *streamClient, 100),
			broadcast:  make(chan *models.AuditLog, 1000),
		}
		go streamManager.run()
	})
	return streamManager
}

func (m *AuditStreamManager) run() {
	for {
		select {
		case client := <-m.register:
			m.registerClient(client)

		case client := <-m.unregister:
			m.unregisterClient(client)

		case entry := <-m.broadcast:
			m.broadcastEntry(entry)
		}
	}
}

func (m *AuditStreamManager) registerClient(client *streamClient) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.clients[client.ID] = client
	log.Printf("🔌 Audit stream client connected: %s (Total: %d)", client.ID, len(m.clients))
}

func (m *AuditStreamManager) unregisterClient(client *streamClient) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if existing, exists := m.clients[client.ID]; exists {
		existing.Connection.Close()
		delete(m.clients, client.ID)
		log.Printf("🔌 Audit stream client disconnected: %s (Total: %d)", client.ID, len(m.clients))
	}
}

// broadcastEntry delivers an entry to the subscribers of the entry's
// organization. Entries without an organization are not deliverable.
func (m *AuditStreamManager) broadcastEntry(entry *models.AuditLog) {
	if entry.OrganizationID == nil {
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for clientID, client := range m.clients {
		if client.OrganizationID != *entry.OrganizationID {
			continue
		}
		client.Connection.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := client.Connection.WriteJSON(entry); err != nil {
			log.Printf("⚠️  Audit stream write failed for %s: %v", clientID, err)
		}
	}
}

// BroadcastAudit implements authz.AuditBroadcaster. Dropped when the
// buffer is full; the stream is a convenience view, the durable trail is
// the database.
func (m *AuditStreamManager) BroadcastAudit(entry *models.AuditLog) {
	select {
	case m.broadcast <- entry:
	default:
		log.Println("⚠️  Audit stream buffer full, dropping broadcast")
	}
}

// HandleConnection upgrades an HTTP request into a stream subscription
// scoped to the requester's organization and pumps it until the client
// goes away.
func (m *AuditStreamManager) HandleConnection(c *gin.Context) {
	orgID, ok := middleware.CurrentOrganizationID(c)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "User is not a member of any organization",
			"code":  "NO_ORGANIZATION_MEMBERSHIP",
		})
		return
	}

	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ Audit stream upgrade failed: %v", err)
		return
	}

	client := &streamClient{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Connection:     conn,
	}
	m.register <- client

	// Reads are only used to detect disconnects.
	go func() {
		defer func() {
			m.unregister <- client
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
