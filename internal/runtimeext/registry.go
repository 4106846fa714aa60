// Package runtimeext implements Component G: the runtime-extension host.
// Each capability is registered once at process init and driven through a
// fixed per-app (and, for logging, per-event) lifecycle, ordered so that
// logging starts first and stops last (spec.md §4.6).
package runtimeext

import (
	"sort"
	"sync"

	"github.com/input-output-hk/hermes-sub003/internal/vfs"
)

// RuntimeContext is the cheap-to-copy descriptor passed into every guest
// invocation and every capability lifecycle hook (spec.md §4 GLOSSARY).
type RuntimeContext struct {
	AppName     string
	ModuleID    string
	EventName   string
	ExecCounter uint64
	VFS         *vfs.Handle
}

// Capability is the lifecycle contract every runtime extension implements.
// Priority orders initialization (ascending) and finalization (descending):
// logging registers at PriorityLogging so it starts before and stops after
// every other capability.
type Capability interface {
	Name() string
	Priority() int
	AppInit(ctx RuntimeContext) error
	AppFini(ctx RuntimeContext) error
}

// EventCapability is implemented by capabilities with per-event hooks
// (logging emits a trace at event init/fini; sqlite ensures the app's
// connection table exists).
type EventCapability interface {
	Capability
	EventInit(ctx RuntimeContext)
	EventFini(ctx RuntimeContext)
}

// PriorityLogging is reserved so logging always sorts first on init and
// last on fini.
const PriorityLogging = 0

// Registry holds every registered capability, sorted by Priority.
type Registry struct {
	mu   sync.Mutex
	caps []Capability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register adds cap, re-sorting by priority. Registration is expected to
// happen once at process init, before any app is loaded.
func (r *Registry) Register(cap Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps = append(r.caps, cap)
	sort.SliceStable(r.caps, func(i, j int) bool { return r.caps[i].Priority() < r.caps[j].Priority() })
}

// InitApp runs AppInit on every capability in priority order. If one fails,
// already-initialized capabilities for this app are torn down in reverse
// order before the error is returned.
func (r *Registry) InitApp(ctx RuntimeContext) error {
	r.mu.Lock()
	caps := append([]Capability(nil), r.caps...)
	r.mu.Unlock()

	for i, c := range caps {
		if err := c.AppInit(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = caps[j].AppFini(ctx)
			}
			return err
		}
	}
	return nil
}

// FiniApp runs AppFini on every capability in reverse priority order, so
// logging (PriorityLogging) finalizes last.
func (r *Registry) FiniApp(ctx RuntimeContext) {
	r.mu.Lock()
	caps := append([]Capability(nil), r.caps...)
	r.mu.Unlock()

	for i := len(caps) - 1; i >= 0; i-- {
		_ = caps[i].AppFini(ctx)
	}
}

// EventInit/EventFini run only against capabilities that implement
// EventCapability — logging and sqlite.
func (r *Registry) EventInit(ctx RuntimeContext) {
	r.mu.Lock()
	caps := append([]Capability(nil), r.caps...)
	r.mu.Unlock()
	for _, c := range caps {
		if ec, ok := c.(EventCapability); ok {
			ec.EventInit(ctx)
		}
	}
}

func (r *Registry) EventFini(ctx RuntimeContext) {
	r.mu.Lock()
	caps := append([]Capability(nil), r.caps...)
	r.mu.Unlock()
	for i := len(caps) - 1; i >= 0; i-- {
		if ec, ok := caps[i].(EventCapability); ok {
			ec.EventFini(ctx)
		}
	}
}
