package authz

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentcore-backend/shared/database/models"
)

// Event describes a completed state-changing operation.
type Event struct {
	EntityType     string
	EntityID       string
	Action         models.Action
	OldValues      models.JSONMap
	NewValues      models.JSONMap
	UserID         *uuid.UUID
	OrganizationID *uuid.UUID
	IPAddress      string
	UserAgent      string
}

// AuditSink persists audit rows.
type AuditSink interface {
	Write(ctx context.Context, entry *models.AuditLog) error
}

// AuditBroadcaster pushes recorded entries to live subscribers. May be nil.
type AuditBroadcaster interface {
	BroadcastAudit(entry *models.AuditLog)
}

// Recorder appends audit events best-effort. Writes happen in the
// background and never fail the business operation that triggered them;
// sink errors are logged and dropped. Timestamps are monotonically
// non-decreasing per process so chronological queries stay consistent.
type Recorder struct {
	sink        AuditSink
	broadcaster AuditBroadcaster

	mu   sync.Mutex
	last time.Time
	wg   sync.WaitGroup

	now func() time.Time
}

// NewRecorder creates a Recorder. broadcaster may be nil.
func NewRecorder(sink AuditSink, broadcaster AuditBroadcaster) *Recorder {
	return &Recorder{
		sink:        sink,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// Record appends an audit event, fire-and-forget. The write happens on a
// background goroutine detached from the request context so an aborted
// request cannot cancel it.
func (r *Recorder) Record(event Event) {
	entry := &models.AuditLog{
		EntityType:     event.EntityType,
		EntityID:       event.EntityID,
		Action:         event.Action,
		OldValues:      event.OldValues,
		NewValues:      event.NewValues,
		UserID:         event.UserID,
		OrganizationID: event.OrganizationID,
		IPAddress:      event.IPAddress,
		UserAgent:      event.UserAgent,
		CreatedAt:      r.nextTimestamp(),
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("❌ Audit write panicked: %v", rec)
			}
		}()

		if err := r.sink.Write(context.Background(), entry); err != nil {
			log.Printf("❌ Audit write failed (dropped): entity=%s/%s action=%s: %v",
				entry.EntityType, entry.EntityID, entry.Action, err)
			return
		}

		if r.broadcaster != nil {
			r.broadcaster.BroadcastAudit(entry)
		}
	}()
}

// Wait blocks until in-flight audit writes finish. Used on shutdown.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// nextTimestamp returns a per-process non-decreasing timestamp.
func (r *Recorder) nextTimestamp() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().UTC()
	if ts.Before(r.last) {
		ts = r.last
	}
	r.last = ts
	return ts
}

// GormSink writes audit rows through the shared database handle.
type GormSink struct {
	db *gorm.DB
}

// NewGormSink creates an AuditSink over gorm.
func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

// Write inserts the entry.
func (s *GormSink) Write(ctx context.Context, entry *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}
