// Package dispatch implements Component I: the event dispatcher/reactor
// that pops events off the Component H queue, resolves target_app/
// target_module against the loaded-app table, and farms each matched
// (app, module) pair out to a bounded worker pool (spec.md §4.8).
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/input-output-hk/hermes-sub003/internal/event"
	"github.com/input-output-hk/hermes-sub003/internal/runtimeext"
	"github.com/input-output-hk/hermes-sub003/internal/vfs"
)

// TargetErrorKind distinguishes the two target-resolution failures spec.md
// §4.8 names.
type TargetErrorKind int

const (
	AppNotFound TargetErrorKind = iota
	ModuleNotFound
)

// TargetError is surfaced to the producer where possible (via OnTargetError)
// and always logged.
type TargetError struct {
	Kind TargetErrorKind
	Name string
}

func (e TargetError) Error() string {
	if e.Kind == AppNotFound {
		return "app not found: " + e.Name
	}
	return "module not found: " + e.Name
}

// Dispatcher drains a Queue against an AppTable, invoking the registered
// runtime-extension lifecycle around every guest call.
type Dispatcher struct {
	queue *event.Queue
	apps  *AppTable
	ext   *runtimeext.Registry
	vfs   func(appName string) *vfs.Handle

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	execCounters sync.Map // key: appName+"\x00"+moduleID, value: *uint64

	// OnTargetError, if set, is invoked synchronously from the dispatch
	// loop for every unresolved target_app/target_module name, letting the
	// producer observe it when the producer is itself in-process (spec.md
	// §4.8: "surfaced to the producer where possible; otherwise logged").
	OnTargetError func(ev *event.HermesEvent, err TargetError)
}

// New builds a Dispatcher bounded to maxWorkers concurrent guest
// invocations. vfsFor may be nil (no VFS wired into RuntimeContext, e.g.
// in tests that only exercise target resolution).
func New(q *event.Queue, apps *AppTable, ext *runtimeext.Registry, maxWorkers int64, vfsFor func(appName string) *vfs.Handle) *Dispatcher {
	if vfsFor == nil {
		vfsFor = func(string) *vfs.Handle { return nil }
	}
	return &Dispatcher{
		queue: q,
		apps:  apps,
		ext:   ext,
		vfs:   vfsFor,
		sem:   semaphore.NewWeighted(maxWorkers),
	}
}

// Run pops events until the queue closes and drains, fanning each one out
// to every resolved (app, module) pair and waiting for their completion
// before returning. It returns once Pop reports the queue closed and
// empty and every fanned-out invocation has finished — callers drive
// shutdown via queue.RequestShutdown/Poison, and wait for shutdown to
// complete via queue.WaitExit, which only unblocks once MarkDrained fires
// below (spec.md §4.7: the dispatcher drains before the exit condvar).
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		ev, ok := d.queue.Pop()
		if !ok {
			break
		}
		d.dispatchOne(ctx, ev)
	}
	d.wg.Wait()
	d.queue.MarkDrained()
}

// dispatchOne implements the two-step resolution algorithm of spec.md
// §4.8: resolve target_app, then within each resolved app resolve
// target_module, skipping (app, All-named-list) combinations missing any
// named module silently per the table's rule 188.
func (d *Dispatcher) dispatchOne(ctx context.Context, ev *event.HermesEvent) {
	appNames := d.resolveApps(ev)

	pairs := make([][2]string, 0, len(appNames))
	for _, appName := range appNames {
		modIDs, ok := d.resolveModules(ev, appName)
		if !ok {
			continue
		}
		for _, modID := range modIDs {
			pairs = append(pairs, [2]string{appName, modID})
		}
	}

	if len(pairs) == 0 {
		return
	}
	ev.AddInFlight(len(pairs))
	for _, pair := range pairs {
		appName, modID := pair[0], pair[1]
		d.wg.Add(1)
		go d.invoke(ctx, appName, modID, ev)
	}
}

// resolveApps returns every app target_app names, reporting AppNotFound
// for any explicitly-named app that is not loaded.
func (d *Dispatcher) resolveApps(ev *event.HermesEvent) []string {
	if ev.TargetApp.All {
		return d.apps.Apps()
	}
	out := make([]string, 0, len(ev.TargetApp.List))
	for _, name := range ev.TargetApp.List {
		if !d.apps.HasApp(name) {
			d.reportTargetError(ev, TargetError{Kind: AppNotFound, Name: name})
			continue
		}
		out = append(out, name)
	}
	return out
}

// resolveModules returns the module ids to invoke within appName, and
// false if this app should be skipped entirely for this event.
func (d *Dispatcher) resolveModules(ev *event.HermesEvent, appName string) ([]string, bool) {
	if ev.TargetModule.All {
		return d.apps.Modules(appName), true
	}

	if ev.TargetApp.All {
		// target_app=All + target_module=List: apps missing any named
		// module are skipped silently (spec.md §4.8 rule 188), not
		// reported as ModuleNotFound.
		for _, modID := range ev.TargetModule.List {
			if !d.apps.HasModule(appName, modID) {
				return nil, false
			}
		}
		return append([]string(nil), ev.TargetModule.List...), true
	}

	// target_app was an explicit list naming this app: missing named
	// modules are reported, present ones still dispatch.
	out := make([]string, 0, len(ev.TargetModule.List))
	for _, modID := range ev.TargetModule.List {
		if !d.apps.HasModule(appName, modID) {
			d.reportTargetError(ev, TargetError{Kind: ModuleNotFound, Name: appName + "/" + modID})
			continue
		}
		out = append(out, modID)
	}
	return out, true
}

func (d *Dispatcher) reportTargetError(ev *event.HermesEvent, err TargetError) {
	logrus.WithField("event", ev.ID).Warn(err.Error())
	if d.OnTargetError != nil {
		d.OnTargetError(ev, err)
	}
}

// invoke runs one guest export call, bounded by the worker semaphore.
func (d *Dispatcher) invoke(ctx context.Context, appName, moduleID string, ev *event.HermesEvent) {
	defer d.wg.Done()
	defer ev.FinishedOne()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		logrus.WithFields(logrus.Fields{"app": appName, "module": moduleID}).WithError(err).Warn("dispatch worker acquire failed")
		return
	}
	defer d.sem.Release(1)

	pool, ok := d.apps.Pool(appName, moduleID)
	if !ok {
		return
	}
	inst, err := pool.Acquire(ctx)
	if err != nil {
		logrus.WithFields(logrus.Fields{"app": appName, "module": moduleID}).WithError(err).Warn("wasm instance acquire failed")
		return
	}

	exportName := ev.Payload.EventName()
	if !inst.HasExport(exportName) {
		// Unregistered guest export: skipped, not an error (spec.md §5).
		pool.Release(inst)
		return
	}

	rtCtx := runtimeext.RuntimeContext{
		AppName:     appName,
		ModuleID:    moduleID,
		EventName:   exportName,
		ExecCounter: d.nextExecCounter(appName, moduleID),
		VFS:         d.vfs(appName),
	}
	d.ext.EventInit(rtCtx)
	// The payload itself crosses the guest boundary via capability calls
	// (streams, SQLite, IPFS, …), not as direct export arguments — spec.md
	// explicitly leaves the guest binding shape undefined beyond the
	// event-name contract (§1 Non-goals), so exports are invoked zero-arg.
	_, callErr := inst.Call(exportName)
	d.ext.EventFini(rtCtx)

	if callErr != nil {
		logrus.WithFields(logrus.Fields{"app": appName, "module": moduleID, "event": exportName}).WithError(callErr).Warn("guest invocation trapped")
		pool.Discard(inst)
		return
	}
	pool.Release(inst)
}

func (d *Dispatcher) nextExecCounter(appName, moduleID string) uint64 {
	key := appName + "\x00" + moduleID
	v, _ := d.execCounters.LoadOrStore(key, new(uint64))
	counter := v.(*uint64)
	return atomic.AddUint64(counter, 1)
}
