// Package wasmhost wraps wasmer-go so the dispatcher can compile a guest
// component once and invoke its exports by name from many instances,
// without every caller re-deriving the engine/store/module boilerplate.
package wasmhost

import (
	"context"

	"github.com/wasmerio/wasmer-go/wasmer"
	"golang.org/x/sync/semaphore"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// Module is a compiled guest component, ready to be instantiated many times.
type Module struct {
	engine *wasmer.Engine
	store  *wasmer.Store
	mod    *wasmer.Module
}

// Compile parses and validates wasm bytecode, returning a reusable Module.
func Compile(code []byte) (*Module, error) {
	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	mod, err := wasmer.NewModule(store, code)
	if err != nil {
		return nil, herrors.Wrap(err, "compile wasm module")
	}
	return &Module{engine: engine, store: store, mod: mod}, nil
}

// ImportBuilder lets a runtime-extension host capability register importable
// host functions before instantiation (spec.md §4.6: capabilities extend
// guest exports with host-callable functions).
type ImportBuilder func(store *wasmer.Store) *wasmer.ImportObject

// Instance is one instantiation of a Module, with its exports resolved for
// invocation by name.
type Instance struct {
	inst *wasmer.Instance
	mem  *wasmer.Memory
}

// Instantiate creates a new Instance, wiring in whatever imports build
// provides (nil means no host imports — used by tests).
func (m *Module) Instantiate(build ImportBuilder) (*Instance, error) {
	var imports *wasmer.ImportObject
	if build != nil {
		imports = build(m.store)
	} else {
		imports = wasmer.NewImportObject()
	}
	inst, err := wasmer.NewInstance(m.mod, imports)
	if err != nil {
		return nil, herrors.Wrap(err, "instantiate wasm module")
	}
	i := &Instance{inst: inst}
	if mem, err := inst.Exports.GetMemory("memory"); err == nil {
		i.mem = mem
	}
	return i, nil
}

// Memory returns the instance's exported linear memory, if any.
func (i *Instance) Memory() *wasmer.Memory { return i.mem }

// HasExport reports whether name is an exported function on this instance —
// used by the dispatcher to skip modules that did not register a given
// guest export (spec.md §5: "an unregistered guest export is skipped, not
// an error").
func (i *Instance) HasExport(name string) bool {
	_, err := i.inst.Exports.GetFunction(name)
	return err == nil
}

// Call invokes the named export with args, returning its results.
func (i *Instance) Call(name string, args ...interface{}) ([]interface{}, error) {
	fn, err := i.inst.Exports.GetFunction(name)
	if err != nil {
		return nil, herrors.Wrapf(herrors.ErrResourceNotFound, "export %s not found", name)
	}
	out, err := fn(args...)
	if err != nil {
		return nil, herrors.Wrapf(err, "call export %s", name)
	}
	if out == nil {
		return nil, nil
	}
	if results, ok := out.([]interface{}); ok {
		return results, nil
	}
	return []interface{}{out}, nil
}

// InstancePool bounds how many instances of a single compiled Module may be
// in concurrent use, so a burst of events for one (app, module) pair cannot
// monopolize host memory (spec.md §4.6 / §5 "bounded worker pool").
type InstancePool struct {
	module *Module
	build  ImportBuilder
	sem    *semaphore.Weighted
	idle   chan *Instance
}

// NewInstancePool creates a pool that allows at most maxConcurrent
// simultaneously-acquired instances, lazily instantiated and then recycled.
func NewInstancePool(mod *Module, build ImportBuilder, maxConcurrent int64) *InstancePool {
	return &InstancePool{
		module: mod,
		build:  build,
		sem:    semaphore.NewWeighted(maxConcurrent),
		idle:   make(chan *Instance, maxConcurrent),
	}
}

// Acquire blocks until a slot is free, returning a ready instance — either
// recycled from the idle set or freshly instantiated.
func (p *InstancePool) Acquire(ctx context.Context) (*Instance, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, herrors.Wrap(err, "acquire wasm instance slot")
	}
	select {
	case inst := <-p.idle:
		return inst, nil
	default:
		inst, err := p.module.Instantiate(p.build)
		if err != nil {
			p.sem.Release(1)
			return nil, err
		}
		return inst, nil
	}
}

// Release returns inst to the idle set and frees its slot.
func (p *InstancePool) Release(inst *Instance) {
	select {
	case p.idle <- inst:
	default:
	}
	p.sem.Release(1)
}

// Discard frees inst's slot without returning it to the idle set — used
// when a guest invocation trapped, so a fresh instance is instantiated on
// the next Acquire rather than reusing one left in a possibly-corrupt
// state (spec.md §5: "the instance that trapped is discarded").
func (p *InstancePool) Discard(inst *Instance) {
	p.sem.Release(1)
}
