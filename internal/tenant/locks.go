package tenant

import "sync"

// LockRegistry is a process-local set of named locks that features acquire
// to ask UI surfaces to disable tenant switching (e.g. while a diagram
// editor holds unsaved tenant-scoped state).
//
// Locks are cooperative: they gate affordances, not programmatic
// SetSelectedTenantID calls. They are not persisted and not shared across
// instances.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[string]string
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[string]string)}
}

// SetLock inserts or overwrites the lock when reason is non-nil, and removes
// it when reason is nil.
func (r *LockRegistry) SetLock(lockID string, reason *string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reason == nil {
		delete(r.locks, lockID)
		return
	}
	r.locks[lockID] = *reason
}

// IsLocked reports whether any lock is held.
func (r *LockRegistry) IsLocked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks) > 0
}

// CurrentReason returns the reason of an arbitrary held lock. Callers that
// need a specific priority must encode it in the reason or use well-known
// lock ids.
func (r *LockRegistry) CurrentReason() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reason := range r.locks {
		return reason, true
	}
	return "", false
}
