// Package resources implements Component F: a process-wide, generic
// per-app resource table. Every runtime-extension capability (SQLite
// connections, IPFS pinsets, chain subscriptions, stream handles) is an
// instance of ApplicationResourceManager parameterized to its own value
// type, so isolation between apps is enforced once, here, rather than
// separately in each extension.
package resources

import (
	"sync"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// Handle is an opaque, per-app, monotonically increasing 32-bit id. Two
// handles minted for different apps may numerically collide; they are never
// interchangeable, since lookups are always scoped by app name first.
type Handle uint32

type appTable[T any] struct {
	mu      sync.RWMutex
	next    Handle
	entries map[Handle]T
}

// ApplicationResourceManager holds one table of T per app name, guarded
// independently so that concurrent WASM instances of different apps never
// contend on each other's locks (spec.md §4.5).
type ApplicationResourceManager[T any] struct {
	mu     sync.RWMutex
	apps   map[string]*appTable[T]
	onDrop func(T)
}

// New creates an empty manager. onDrop, if non-nil, is invoked with each
// value removed by Drop or DropApp — the generic stand-in for T's
// destructor (closing a SQLite connection, unpinning IPFS content, etc.).
func New[T any](onDrop func(T)) *ApplicationResourceManager[T] {
	return &ApplicationResourceManager[T]{apps: make(map[string]*appTable[T]), onDrop: onDrop}
}

// AddApp idempotently creates an empty table for appName.
func (m *ApplicationResourceManager[T]) AddApp(appName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apps[appName]; !ok {
		m.apps[appName] = &appTable[T]{entries: make(map[Handle]T)}
	}
}

func (m *ApplicationResourceManager[T]) table(appName string) (*appTable[T], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.apps[appName]
	if !ok {
		return nil, herrors.Wrapf(herrors.ErrResourceNotFound, "app %s has no resource table", appName)
	}
	return t, nil
}

// CreateResource inserts value and returns a fresh handle, monotonic within
// appName's table. appName must already have a table via AddApp; drop_app
// followed by create_resource only succeeds after another add_app (spec.md
// §4.5 property 5).
func (m *ApplicationResourceManager[T]) CreateResource(appName string, value T) (Handle, error) {
	t, err := m.table(appName)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := t.next
	t.entries[h] = value
	return h, nil
}

// Get returns the value for handle within appName's table, if present.
func (m *ApplicationResourceManager[T]) Get(appName string, h Handle) (T, bool) {
	var zero T
	t, err := m.table(appName)
	if err != nil {
		return zero, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[h]
	return v, ok
}

// Drop removes handle from appName's table, invoking onDrop if configured.
// It is a no-op (not an error) if the handle is absent or the app unknown,
// matching the idempotent-teardown style of the extension lifecycles that
// call it from Fini.
func (m *ApplicationResourceManager[T]) Drop(appName string, h Handle) {
	t, err := m.table(appName)
	if err != nil {
		return
	}
	t.mu.Lock()
	v, ok := t.entries[h]
	delete(t.entries, h)
	t.mu.Unlock()
	if ok && m.onDrop != nil {
		m.onDrop(v)
	}
}

// DropApp removes appName's entire table, invoking onDrop for every entry.
func (m *ApplicationResourceManager[T]) DropApp(appName string) {
	m.mu.Lock()
	t, ok := m.apps[appName]
	delete(m.apps, appName)
	m.mu.Unlock()
	if !ok {
		return
	}
	if m.onDrop == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, v := range t.entries {
		m.onDrop(v)
	}
}

// Count returns the number of live resources for appName, for tests and
// diagnostics.
func (m *ApplicationResourceManager[T]) Count(appName string) int {
	t, err := m.table(appName)
	if err != nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
