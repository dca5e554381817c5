// Package cache provides the compiled-permission cache stores: a process-local
// LRU for single-node deployments and tests, and a Redis store for fleets
// where invalidations must reach every instance.
package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/schuttebj/linc-backend/pkg/permissions"
)

// Memory is an in-process LRU store of compiled permissions. The LRU's own
// TTL matches the engine TTL as a backstop; authoritative expiry is the
// entry's ExpiresAt stamp, checked by the engine.
type Memory struct {
	cache *lru.LRU[string, *permissions.CompiledPermissions]
}

// NewMemory creates a store bounded to maxEntries users.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries < 16 {
		maxEntries = 16
	}
	return &Memory{
		cache: lru.NewLRU[string, *permissions.CompiledPermissions](maxEntries, nil, ttl),
	}
}

// Get returns the cached entry for the user.
func (m *Memory) Get(ctx context.Context, userID string) (*permissions.CompiledPermissions, bool, error) {
	compiled, ok := m.cache.Get(userID)
	if !ok {
		return nil, false, nil
	}
	return compiled, true, nil
}

// Put stores the entry.
func (m *Memory) Put(ctx context.Context, userID string, compiled *permissions.CompiledPermissions) error {
	m.cache.Add(userID, compiled)
	return nil
}

// Invalidate drops the entry for one user.
func (m *Memory) Invalidate(ctx context.Context, userID string) error {
	m.cache.Remove(userID)
	return nil
}

// Len reports the number of resident entries. Test helper.
func (m *Memory) Len() int {
	return m.cache.Len()
}
