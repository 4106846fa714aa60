package wasmhost

import (
	"context"
	"testing"
)

// emptyModule is the minimal valid WebAssembly binary: magic + version,
// no sections. It exports nothing, which is enough to exercise
// compile/instantiate/HasExport without needing a toolchain to build a
// real guest component.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestCompileAndInstantiate(t *testing.T) {
	mod, err := Compile(emptyModule)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	inst, err := mod.Instantiate(nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if inst.HasExport("Init") {
		t.Fatalf("expected empty module to have no exports")
	}
	if _, err := inst.Call("Init"); err == nil {
		t.Fatalf("expected calling a missing export to fail")
	}
}

func TestInstancePoolBoundsConcurrency(t *testing.T) {
	mod, err := Compile(emptyModule)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	pool := NewInstancePool(mod, nil, 1)

	ctx := context.Background()
	first, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		second, err := pool.Acquire(ctx)
		if err != nil {
			t.Errorf("second acquire: %v", err)
			return
		}
		pool.Release(second)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("second acquire should have blocked until release")
	default:
	}

	pool.Release(first)
	<-acquired
}
