package permissions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/schuttebj/linc-backend/pkg/audit"
	"github.com/schuttebj/linc-backend/pkg/observability"
)

// Engine is the process-wide permission engine: compiler, cache coherence
// bookkeeping, authorization gate and role-update orchestration behind one
// object with injected collaborators.
//
// Coherence: compilations for one user are deduplicated through a
// singleflight group, and compile-then-store is sequenced against
// invalidation through a per-user gate. The store and the invalidation each
// run under the gate's lock, and the store re-checks the gate's generation
// counter first, so a snapshot compiled before an invalidation is never
// written back over it.
type Engine struct {
	compiler    *Compiler
	registry    RoleRegistry
	assignments AssignmentSource
	cache       CacheStore
	trail       audit.Logger
	logger      *observability.Logger
	metrics     *observability.Metrics
	now         Clock

	compileTimeout time.Duration

	flight singleflight.Group
	mu     sync.Mutex
	gates  map[string]*userGate
}

// userGate serializes cache writes for one user key. gen counts
// invalidations; a compile records it at its start and re-checks it under the
// gate lock before storing. Gates are refcounted and dropped when the last
// holder releases, so the map only holds keys with an operation in flight.
type userGate struct {
	mu   sync.Mutex
	gen  uint64
	refs int
}

// EngineConfig carries the engine's collaborators and tuning knobs.
type EngineConfig struct {
	Registry    RoleRegistry
	Assignments AssignmentSource
	Geography   GeographySource
	Cache       CacheStore
	Audit       audit.Logger

	// TTL bounds how long a compiled result may be served before a
	// recompile. Required.
	TTL time.Duration

	// CompileTimeout bounds a single compilation's collaborator I/O.
	// Zero disables the bound.
	CompileTimeout time.Duration

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// NewEngine constructs the engine. One instance is built per process and
// shared by every request-serving goroutine.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Engine{
		compiler:       NewCompiler(cfg.Registry, cfg.Assignments, cfg.Geography, cfg.TTL, logger),
		registry:       cfg.Registry,
		assignments:    cfg.Assignments,
		cache:          cfg.Cache,
		trail:          cfg.Audit,
		logger:         logger,
		metrics:        cfg.Metrics,
		now:            time.Now,
		compileTimeout: cfg.CompileTimeout,
		gates:          make(map[string]*userGate),
	}
}

// WithClock overrides the engine's and compiler's time source. Tests only.
func (e *Engine) WithClock(now Clock) *Engine {
	e.now = now
	e.compiler.WithClock(now)
	return e
}

// CompileUserPermissions returns the user's compiled permissions, serving
// from cache when a valid entry exists. forceRefresh bypasses the cache read
// and recompiles even within the TTL window.
func (e *Engine) CompileUserPermissions(ctx context.Context, userID string, forceRefresh bool) (*CompiledPermissions, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}

	if !forceRefresh {
		if compiled, ok := e.cachedLookup(ctx, userID); ok {
			return compiled, nil
		}
	}

	trigger := "miss"
	if forceRefresh {
		trigger = "forced"
	}

	result, err, _ := e.flight.Do(userID, func() (interface{}, error) {
		// A concurrent caller may have stored a fresh entry while this
		// call waited on the flight lock.
		if !forceRefresh {
			if compiled, ok := e.cachedLookup(ctx, userID); ok {
				return compiled, nil
			}
		}
		return e.compileAndStore(ctx, userID, trigger)
	})
	if err != nil {
		return nil, err
	}
	return result.(*CompiledPermissions), nil
}

// cachedLookup returns a valid cached entry, treating expired entries as
// misses (lazy expiry).
func (e *Engine) cachedLookup(ctx context.Context, userID string) (*CompiledPermissions, bool) {
	if e.cache == nil {
		return nil, false
	}

	compiled, ok, err := e.cache.Get(ctx, userID)
	if err != nil {
		// Cache trouble degrades to a recompile, never to a failure.
		e.logger.WithError(err).WithField("user_id", userID).Warn("permission cache read failed")
		return nil, false
	}
	if !ok {
		if e.metrics != nil {
			e.metrics.CacheMissesTotal.Inc()
		}
		return nil, false
	}
	if compiled.Expired(e.now()) {
		if e.metrics != nil {
			e.metrics.CacheStaleHitsTotal.Inc()
		}
		return nil, false
	}
	if e.metrics != nil {
		e.metrics.CacheHitsTotal.Inc()
	}
	return compiled, true
}

// compileAndStore runs one compilation and stores the result unless the user
// was invalidated while the compile was in flight.
func (e *Engine) compileAndStore(ctx context.Context, userID, trigger string) (*CompiledPermissions, error) {
	gate := e.acquireGate(userID)
	defer e.releaseGate(userID, gate)

	gate.mu.Lock()
	genBefore := gate.gen
	gate.mu.Unlock()

	compileCtx := ctx
	if e.compileTimeout > 0 {
		var cancel context.CancelFunc
		compileCtx, cancel = context.WithTimeout(ctx, e.compileTimeout)
		defer cancel()
	}

	start := e.now()
	compiled, err := e.compiler.Compile(compileCtx, userID)
	if err != nil {
		if e.metrics != nil {
			reason := "upstream"
			if errors.Is(err, ErrNotFound) {
				reason = "not_found"
			}
			e.metrics.CompilationErrorsTotal.WithLabelValues(reason).Inc()
		}
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.ObserveCompilation(trigger, e.now().Sub(start))
	}

	if e.cache != nil {
		// The generation re-check and the store run under the gate lock,
		// which InvalidateUser also takes. Either the invalidation ran
		// first and the stale snapshot is dropped here, or it waits and
		// deletes the stored entry right after.
		gate.mu.Lock()
		if gate.gen == genBefore {
			if err := e.cache.Put(ctx, userID, compiled); err != nil {
				e.logger.WithError(err).WithField("user_id", userID).Warn("permission cache store failed")
			}
		} else {
			e.logger.WithField("user_id", userID).Debug("dropping compiled permissions stored across an invalidation")
		}
		gate.mu.Unlock()
	}

	return compiled, nil
}

func (e *Engine) acquireGate(userID string) *userGate {
	e.mu.Lock()
	defer e.mu.Unlock()
	gate, ok := e.gates[userID]
	if !ok {
		gate = &userGate{}
		e.gates[userID] = gate
	}
	gate.refs++
	return gate
}

func (e *Engine) releaseGate(userID string, gate *userGate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	gate.refs--
	if gate.refs == 0 {
		delete(e.gates, userID)
	}
}

// InvalidateUser drops the user's cached entry. The next authorization for
// the user recompiles from the sources.
func (e *Engine) InvalidateUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}

	gate := e.acquireGate(userID)
	defer e.releaseGate(userID, gate)

	gate.mu.Lock()
	defer gate.mu.Unlock()
	gate.gen++

	if e.cache == nil {
		return nil
	}
	if err := e.cache.Invalidate(ctx, userID); err != nil {
		return fmt.Errorf("invalidate user %s: %w", userID, err)
	}
	if e.metrics != nil {
		e.metrics.InvalidationsTotal.WithLabelValues("user").Inc()
	}
	return nil
}

// InvalidateRole fans the invalidation out to every active holder of the
// role. Individual failures do not stop the fan-out; they are collected and
// reported as a PartialInvalidationError so the caller can retry exactly the
// users that failed.
func (e *Engine) InvalidateRole(ctx context.Context, scope Scope, roleName string) error {
	if err := validateRoleRef(scope, roleName); err != nil {
		return err
	}

	userIDs, err := e.assignments.UsersWithRole(ctx, scope, roleName)
	if err != nil {
		return fmt.Errorf("list users with role %s/%s: %w", scope, roleName, err)
	}

	var failed []string
	for _, userID := range userIDs {
		if err := e.InvalidateUser(ctx, userID); err != nil {
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"user_id":   userID,
				"role_name": roleName,
			}).Warn("fan-out invalidation failed for user")
			if e.metrics != nil {
				e.metrics.InvalidationFailures.Inc()
			}
			failed = append(failed, userID)
		}
	}

	if e.metrics != nil {
		e.metrics.InvalidationsTotal.WithLabelValues("role").Inc()
	}

	e.logger.WithFields(map[string]interface{}{
		"role_scope":     string(scope),
		"role_name":      roleName,
		"users_affected": len(userIDs) - len(failed),
	}).Info("role permission cache invalidated")

	if len(failed) > 0 {
		return &PartialInvalidationError{Scope: scope, RoleName: roleName, FailedUsers: failed}
	}
	return nil
}

// UpdateRolePermissions persists a role's new permission set, then fans out
// the cache invalidation, then appends the audit entry, in that order. A
// persist failure aborts and is returned. Invalidation or audit failures are
// logged, not rolled back: the persisted change stands and cache correctness
// is restored by TTL expiry at the latest.
func (e *Engine) UpdateRolePermissions(ctx context.Context, scope Scope, roleName string, perms []string, actor string) error {
	if err := validateRoleRef(scope, roleName); err != nil {
		return err
	}
	if actor == "" {
		return fmt.Errorf("%w: empty actor", ErrInvalidInput)
	}

	set := NewSet(perms...)
	if err := e.registry.UpdateRolePermissions(ctx, scope, roleName, set, actor); err != nil {
		if e.metrics != nil {
			e.metrics.RoleUpdatesTotal.WithLabelValues(string(scope), "failure").Inc()
		}
		return fmt.Errorf("update role %s/%s: %w", scope, roleName, err)
	}

	if err := e.InvalidateRole(ctx, scope, roleName); err != nil {
		e.logger.WithError(err).WithFields(map[string]interface{}{
			"role_scope": string(scope),
			"role_name":  roleName,
		}).Warn("role update persisted but invalidation incomplete")
	}

	if e.trail != nil {
		entry := &audit.Entry{
			RoleScope: string(scope),
			RoleName:  roleName,
			Action:    audit.ActionPermissionsUpdated,
			Actor:     actor,
			Details: map[string]interface{}{
				"permissions":      set.Sorted(),
				"permission_count": len(set),
			},
		}
		if err := e.trail.Append(ctx, entry); err != nil {
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"role_scope": string(scope),
				"role_name":  roleName,
			}).Warn("role update persisted but audit append failed")
		}
	}

	if e.metrics != nil {
		e.metrics.RoleUpdatesTotal.WithLabelValues(string(scope), "success").Inc()
	}

	e.logger.WithFields(map[string]interface{}{
		"role_scope":       string(scope),
		"role_name":        roleName,
		"permission_count": len(set),
		"actor":            actor,
	}).Info("role permissions updated")

	return nil
}
