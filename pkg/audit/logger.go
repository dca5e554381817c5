package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger is the append side of the audit trail plus the query surface used by
// the admin API. Append must be durable before it returns nil.
type Logger interface {
	// Append records one entry. The logger assigns ID and CreatedAt when
	// they are unset.
	Append(ctx context.Context, entry *Entry) error

	// Search returns entries matching the filter, newest first.
	Search(ctx context.Context, filter Filter) ([]*Entry, error)

	// Cleanup deletes entries older than the retention policy allows and
	// returns how many were removed.
	Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error)
}

// MemoryLogger keeps entries in memory. Used in tests and single-process
// deployments without a database.
type MemoryLogger struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryLogger creates an empty in-memory trail.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Append records one entry.
func (l *MemoryLogger) Append(ctx context.Context, entry *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := *entry
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	l.entries = append(l.entries, &stored)
	return nil
}

// Search returns matching entries, newest first.
func (l *MemoryLogger) Search(ctx context.Context, filter Filter) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Entry
	for _, e := range l.entries {
		if filter.RoleScope != "" && e.RoleScope != filter.RoleScope {
			continue
		}
		if filter.RoleName != "" && e.RoleName != filter.RoleName {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if !filter.Since.IsZero() && e.CreatedAt.Before(filter.Since) {
			continue
		}
		copied := *e
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Cleanup removes entries older than the retention window.
func (l *MemoryLogger) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	if policy.MaxAge <= 0 {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-policy.MaxAge)
	kept := l.entries[:0]
	var removed int64
	for _, e := range l.entries {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return removed, nil
}

// Len reports the number of stored entries. Test helper.
func (l *MemoryLogger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
