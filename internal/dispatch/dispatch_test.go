package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/input-output-hk/hermes-sub003/internal/event"
	"github.com/input-output-hk/hermes-sub003/internal/runtimeext"
	"github.com/input-output-hk/hermes-sub003/internal/wasmhost"
)

// emptyModule is the minimal valid wasm binary (magic + version, no
// sections) — it compiles and instantiates but exports nothing, so every
// HasExport check in the dispatcher is false. That is exactly what these
// tests want: they exercise target resolution and completion bookkeeping
// without needing a real guest export to call.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func newTestPool(t *testing.T) *wasmhost.InstancePool {
	t.Helper()
	mod, err := wasmhost.Compile(emptyModule)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return wasmhost.NewInstancePool(mod, nil, 4)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *event.Queue, *AppTable) {
	t.Helper()
	q := event.NewQueue()
	apps := NewAppTable()
	apps.AddModule("appA", "mod1", newTestPool(t))
	apps.AddModule("appA", "mod2", newTestPool(t))
	apps.AddModule("appB", "mod1", newTestPool(t))
	d := New(q, apps, runtimeext.NewRegistry(), 4, nil)
	return d, q, apps
}

func TestResolveAppsAllReturnsEverythingLoaded(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ev := event.NewEvent(event.AllApps(), event.AllModules(), event.Init{})
	got := d.resolveApps(ev)
	if len(got) != 2 || got[0] != "appA" || got[1] != "appB" {
		t.Fatalf("unexpected apps %v", got)
	}
}

func TestResolveAppsReportsAppNotFound(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	var reported []TargetError
	d.OnTargetError = func(ev *event.HermesEvent, err TargetError) { reported = append(reported, err) }

	ev := event.NewEvent(event.TargetApp{List: []string{"appA", "ghost"}}, event.AllModules(), event.Init{})
	got := d.resolveApps(ev)
	if len(got) != 1 || got[0] != "appA" {
		t.Fatalf("expected only appA resolved, got %v", got)
	}
	if len(reported) != 1 || reported[0].Kind != AppNotFound || reported[0].Name != "ghost" {
		t.Fatalf("expected AppNotFound(ghost), got %+v", reported)
	}
}

func TestResolveModulesReportsModuleNotFoundForExplicitApp(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	var reported []TargetError
	d.OnTargetError = func(ev *event.HermesEvent, err TargetError) { reported = append(reported, err) }

	ev := event.NewEvent(event.TargetApp{List: []string{"appA"}}, event.TargetModule{List: []string{"mod1", "ghost"}}, event.Init{})
	got, ok := d.resolveModules(ev, "appA")
	if !ok || len(got) != 1 || got[0] != "mod1" {
		t.Fatalf("expected [mod1], got %v ok=%v", got, ok)
	}
	if len(reported) != 1 || reported[0].Kind != ModuleNotFound {
		t.Fatalf("expected ModuleNotFound reported, got %+v", reported)
	}
}

func TestAllAppsWithModuleListSkipsAppMissingAnyNamedModule(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	var reported []TargetError
	d.OnTargetError = func(ev *event.HermesEvent, err TargetError) { reported = append(reported, err) }

	// appB only has mod1, not mod2: it must be skipped silently, with no
	// ModuleNotFound report (spec.md §4.8 rule 188).
	ev := event.NewEvent(event.AllApps(), event.TargetModule{List: []string{"mod1", "mod2"}}, event.Init{})

	gotA, okA := d.resolveModules(ev, "appA")
	if !okA || len(gotA) != 2 {
		t.Fatalf("expected appA to match both modules, got %v ok=%v", gotA, okA)
	}
	_, okB := d.resolveModules(ev, "appB")
	if okB {
		t.Fatalf("expected appB to be skipped")
	}
	if len(reported) != 0 {
		t.Fatalf("expected no reported errors for the All+List skip rule, got %+v", reported)
	}
}

func TestDispatchOneFiresCompletionEvenWithNoMatchingExports(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ev := event.NewEvent(event.AllApps(), event.AllModules(), event.Init{})
	done := ev.WithCompletion()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.dispatchOne(ctx, ev)

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("completion channel never fired")
	}
}

func TestRunWaitsForInFlightWorkBeforeMarkingDrained(t *testing.T) {
	d, q, _ := newTestDispatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	ev := event.NewEvent(event.AllApps(), event.AllModules(), event.Init{})
	if err := q.Send(ev); err != nil {
		t.Fatalf("send: %v", err)
	}
	q.RequestShutdown(3)

	exit := q.WaitExitTimeout(2 * time.Second)
	if exit.Status != event.StatusDone || exit.Code != 3 {
		t.Fatalf("expected Done(3), got %+v", exit)
	}
}

func TestDispatchOneWithNoTargetsNeverBlocks(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ev := event.NewEvent(event.TargetApp{List: []string{"ghost"}}, event.AllModules(), event.Init{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.dispatchOne(ctx, ev)
	d.wg.Wait()
}
