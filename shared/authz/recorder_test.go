package authz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcore-backend/shared/database/models"
)

type memorySink struct {
	mu      sync.Mutex
	entries []*models.AuditLog
	err     error
}

func (s *memorySink) Write(_ context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memorySink) all() []*models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.AuditLog, len(s.entries))
	copy(out, s.entries)
	return out
}

type memoryBroadcaster struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (b *memoryBroadcaster) BroadcastAudit(entry *models.AuditLog) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry)
}

func (b *memoryBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func TestRecorderWritesEntry(t *testing.T) {
	sink := &memorySink{}
	recorder := NewRecorder(sink, nil)

	userID := uuid.New()
	recorder.Record(Event{
		EntityType: "role",
		EntityID:   uuid.New().String(),
		Action:     models.ActionCreate,
		NewValues:  models.JSONMap{"name": "Custom"},
		UserID:     &userID,
		IPAddress:  "10.0.0.1",
	})
	recorder.Wait()

	entries := sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "role", entries[0].EntityType)
	assert.Equal(t, models.ActionCreate, entries[0].Action)
	assert.Equal(t, &userID, entries[0].UserID)
	assert.Equal(t, "10.0.0.1", entries[0].IPAddress)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestRecorderTimestampsNeverDecrease(t *testing.T) {
	sink := &memorySink{}
	recorder := NewRecorder(sink, nil)

	// Simulate a clock that steps backwards between events.
	times := []time.Time{
		time.Date(2026, 5, 1, 12, 0, 2, 0, time.UTC),
		time.Date(2026, 5, 1, 12, 0, 1, 0, time.UTC),
		time.Date(2026, 5, 1, 12, 0, 3, 0, time.UTC),
	}
	idx := 0
	recorder.now = func() time.Time {
		ts := times[idx]
		idx++
		return ts
	}

	stamps := make([]time.Time, 0, len(times))
	for range times {
		stamps = append(stamps, recorder.nextTimestamp())
	}

	assert.Equal(t, times[0], stamps[0])
	// The backwards step is clamped to the previous timestamp.
	assert.Equal(t, times[0], stamps[1])
	assert.Equal(t, times[2], stamps[2])
}

func TestRecorderDropsFailedWrites(t *testing.T) {
	sink := &memorySink{err: errors.New("database down")}
	broadcaster := &memoryBroadcaster{}
	recorder := NewRecorder(sink, broadcaster)

	// Must not panic or block the caller.
	recorder.Record(Event{EntityType: "role", EntityID: "x", Action: models.ActionUpdate})
	recorder.Wait()

	assert.Empty(t, sink.all())
	// Failed writes are never broadcast.
	assert.Equal(t, 0, broadcaster.count())
}

func TestRecorderBroadcastsAfterWrite(t *testing.T) {
	sink := &memorySink{}
	broadcaster := &memoryBroadcaster{}
	recorder := NewRecorder(sink, broadcaster)

	recorder.Record(Event{EntityType: "property_assignment", EntityID: "a", Action: models.ActionCreate})
	recorder.Record(Event{EntityType: "property_assignment", EntityID: "b", Action: models.ActionDelete})
	recorder.Wait()

	assert.Len(t, sink.all(), 2)
	assert.Equal(t, 2, broadcaster.count())
}

func TestRecorderConcurrentRecords(t *testing.T) {
	sink := &memorySink{}
	recorder := NewRecorder(sink, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.Record(Event{EntityType: "role", EntityID: "r", Action: models.ActionUpdate})
		}()
	}
	wg.Wait()
	recorder.Wait()

	entries := sink.all()
	require.Len(t, entries, 50)
	for _, entry := range entries {
		assert.False(t, entry.CreatedAt.IsZero())
	}
}
