package dispatch

import (
	"sort"
	"sync"

	"github.com/input-output-hk/hermes-sub003/internal/wasmhost"
)

// AppTable is the dispatcher's view of what is currently loaded: which
// apps exist and, per app, which modules have a ready instance pool. The
// packaging/VFS layers populate this as application packages are loaded
// and unloaded.
type AppTable struct {
	mu   sync.RWMutex
	apps map[string]map[string]*wasmhost.InstancePool
}

// NewAppTable creates an empty table.
func NewAppTable() *AppTable {
	return &AppTable{apps: make(map[string]map[string]*wasmhost.InstancePool)}
}

// AddApp registers appName with no modules yet, idempotently.
func (t *AppTable) AddApp(appName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.apps[appName]; !ok {
		t.apps[appName] = make(map[string]*wasmhost.InstancePool)
	}
}

// AddModule registers pool as moduleID's instance pool within appName,
// implicitly registering the app if it is not already known.
func (t *AppTable) AddModule(appName, moduleID string, pool *wasmhost.InstancePool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.apps[appName]
	if !ok {
		m = make(map[string]*wasmhost.InstancePool)
		t.apps[appName] = m
	}
	m[moduleID] = pool
}

// RemoveApp unloads appName entirely.
func (t *AppTable) RemoveApp(appName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.apps, appName)
}

// Apps returns every currently loaded app name, sorted for deterministic
// iteration order (matters for tests; dispatch order across apps is not
// spec-constrained beyond per-producer enqueue order).
func (t *AppTable) Apps() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.apps))
	for name := range t.apps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasApp reports whether appName is loaded.
func (t *AppTable) HasApp(appName string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.apps[appName]
	return ok
}

// Modules returns every module id loaded under appName, sorted.
func (t *AppTable) Modules(appName string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	mods, ok := t.apps[appName]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(mods))
	for id := range mods {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// HasModule reports whether moduleID is loaded under appName.
func (t *AppTable) HasModule(appName, moduleID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	mods, ok := t.apps[appName]
	if !ok {
		return false
	}
	_, ok = mods[moduleID]
	return ok
}

// Pool returns moduleID's instance pool within appName.
func (t *AppTable) Pool(appName, moduleID string) (*wasmhost.InstancePool, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	mods, ok := t.apps[appName]
	if !ok {
		return nil, false
	}
	p, ok := mods[moduleID]
	return p, ok
}
