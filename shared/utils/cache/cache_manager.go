package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rentcore-backend/shared/authz"
	"rentcore-backend/shared/config"
)

// Manager is a redis-backed authz.DecisionCache. Decisions are cheap to
// recompute, so every failure path degrades to a cache miss.
type Manager struct {
	client *redis.Client
}

var (
	globalManager *Manager

	// DecisionTTL bounds the revocation race window: a revoked binding may
	// keep granting access until the cached decision expires.
	DecisionTTL = 5 * time.Minute
)

// InitCacheManager initializes the global cache manager
func InitCacheManager() error {
	cfg := config.GetConfig()

	redisDB, err := strconv.Atoi(cfg.RedisDB)
	if err != nil {
		log.Printf("❌ Invalid Redis DB number: %s, using default 0", cfg.RedisDB)
		redisDB = 0
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       redisDB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	globalManager = &Manager{client: client}

	log.Printf("✅ Redis Cache Manager initialized successfully - %s:%s DB:%d",
		cfg.RedisHost, cfg.RedisPort, redisDB)

	return nil
}

// GetCacheManager returns the global cache manager, or nil when redis is
// unavailable (callers must treat a nil manager as "no cache").
func GetCacheManager() *Manager {
	return globalManager
}

// TestConnection pings redis.
func (m *Manager) TestConnection() error {
	if m == nil || m.client == nil {
		return fmt.Errorf("cache manager not initialized")
	}
	return m.client.Ping(context.Background()).Err()
}

// GetDecision implements authz.DecisionCache.
func (m *Manager) GetDecision(ctx context.Context, key string) (*authz.Decision, bool) {
	if m == nil || m.client == nil {
		return nil, false
	}

	data, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var decision authz.Decision
	if err := json.Unmarshal(data, &decision); err != nil {
		return nil, false
	}
	return &decision, true
}

// SetDecision implements authz.DecisionCache.
func (m *Manager) SetDecision(ctx context.Context, key string, decision *authz.Decision) {
	if m == nil || m.client == nil {
		return
	}

	data, err := json.Marshal(decision)
	if err != nil {
		return
	}

	if err := m.client.Set(ctx, key, data, DecisionTTL).Err(); err != nil {
		log.Printf("⚠️  Failed to cache decision %s: %v", key, err)
	}
}

// InvalidateUserDecisions drops every cached decision for a user. Called
// after role or assignment mutations so revocations take effect promptly.
func (m *Manager) InvalidateUserDecisions(ctx context.Context, userID uuid.UUID) (int, error) {
	if m == nil || m.client == nil {
		return 0, fmt.Errorf("cache manager not initialized")
	}

	pattern := authz.DecisionKeyPrefixForUser(userID)
	deleted := 0

	iter := m.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := m.client.Del(ctx, iter.Val()).Err(); err == nil {
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}

	log.Printf("🔄 Invalidated %d cached decisions for user %s", deleted, userID)
	return deleted, nil
}

// InvalidateAllDecisions flushes the whole decision cache.
func (m *Manager) InvalidateAllDecisions(ctx context.Context) (int, error) {
	if m == nil || m.client == nil {
		return 0, fmt.Errorf("cache manager not initialized")
	}

	deleted := 0
	iter := m.client.Scan(ctx, 0, "authz:user:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := m.client.Del(ctx, iter.Val()).Err(); err == nil {
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}

	log.Printf("🔄 Invalidated %d cached decisions", deleted)
	return deleted, nil
}

// Stats reports basic cache statistics for the ops endpoint.
func (m *Manager) Stats(ctx context.Context) (map[string]interface{}, error) {
	if m == nil || m.client == nil {
		return nil, fmt.Errorf("cache manager not initialized")
	}

	keys := 0
	iter := m.client.Scan(ctx, 0, "authz:user:*", 100).Iterator()
	for iter.Next(ctx) {
		keys++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"decision_keys": keys,
		"decision_ttl":  DecisionTTL.String(),
	}, nil
}
