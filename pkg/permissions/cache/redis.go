package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/schuttebj/linc-backend/pkg/permissions"
)

// keyPrefix matches the key namespace the wider system uses for compiled
// permissions, so operational tooling can find the entries.
const keyPrefix = "linc:permissions:"

// Redis stores compiled permissions in Redis so that an invalidation issued
// by one instance is observed by every instance sharing the cache.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis store and verifies connectivity.
func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an existing client. Used by tests and by callers
// that share one client across subsystems.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Client exposes the underlying client for health checks.
func (r *Redis) Client() *redis.Client {
	return r.client
}

// Close closes the underlying connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Get returns the cached entry for the user.
func (r *Redis) Get(ctx context.Context, userID string) (*permissions.CompiledPermissions, bool, error) {
	data, err := r.client.Get(ctx, keyPrefix+userID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get for user %s: %w", userID, err)
	}

	var compiled permissions.CompiledPermissions
	if err := json.Unmarshal(data, &compiled); err != nil {
		// A payload this store cannot decode is as good as absent; the
		// engine will recompile and overwrite it.
		return nil, false, nil
	}
	return &compiled, true, nil
}

// Put stores the entry for its remaining TTL. An entry already past its
// expiry is not stored.
func (r *Redis) Put(ctx context.Context, userID string, compiled *permissions.CompiledPermissions) error {
	ttl := time.Until(compiled.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(compiled)
	if err != nil {
		return fmt.Errorf("cache marshal for user %s: %w", userID, err)
	}
	if err := r.client.Set(ctx, keyPrefix+userID, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache put for user %s: %w", userID, err)
	}
	return nil
}

// Invalidate drops the entry for one user.
func (r *Redis) Invalidate(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("cache invalidate for user %s: %w", userID, err)
	}
	return nil
}
