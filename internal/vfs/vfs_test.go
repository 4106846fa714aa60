package vfs

import (
	"path/filepath"
	"testing"

	"github.com/input-output-hk/hermes-sub003/internal/archive"
)

func newPackageArchive(t *testing.T) *archive.File {
	t.Helper()
	f, err := archive.Open(filepath.Join(t.TempDir(), "pkg.module"), archive.CreateNew)
	if err != nil {
		t.Fatalf("open package archive: %v", err)
	}
	if err := f.CreateDataset("module.wasm", []byte("\x00asm"), archive.None); err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	if err := f.CreateDataset("share/readme.txt", []byte("hello"), archive.Zstd9Chunked); err != nil {
		t.Fatalf("create share dataset: %v", err)
	}
	return f
}

func TestBootstrapMountsFileUnderLib(t *testing.T) {
	pkg := newPackageArchive(t)
	defer pkg.Close()

	b := NewBootstrapper(filepath.Join(t.TempDir(), "app.hfs"))
	if err := b.MountFile("lib/auth/module.wasm", Read, pkg, "module.wasm"); err != nil {
		t.Fatalf("mount file: %v", err)
	}
	if err := b.CreateDir("state", ReadWrite); err != nil {
		t.Fatalf("create dir: %v", err)
	}

	h, err := b.Bootstrap()
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer h.Close()

	got, err := h.Read("lib/auth/module.wasm")
	if err != nil {
		t.Fatalf("read mounted file: %v", err)
	}
	if string(got) != "\x00asm" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestBootstrapMountsDirTree(t *testing.T) {
	pkg := newPackageArchive(t)
	defer pkg.Close()

	b := NewBootstrapper(filepath.Join(t.TempDir(), "app.hfs"))
	if err := b.MountDir("lib/auth/share", Read, pkg, "share"); err != nil {
		t.Fatalf("mount dir: %v", err)
	}
	h, err := b.Bootstrap()
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer h.Close()

	got, err := h.Read("lib/auth/share/readme.txt")
	if err != nil {
		t.Fatalf("read mounted dir file: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestDuplicateMountTargetRejected(t *testing.T) {
	pkg := newPackageArchive(t)
	defer pkg.Close()

	b := NewBootstrapper(filepath.Join(t.TempDir(), "app.hfs"))
	if err := b.MountFile("lib/auth/module.wasm", Read, pkg, "module.wasm"); err != nil {
		t.Fatalf("mount file: %v", err)
	}
	if err := b.MountFile("lib/auth/module.wasm", Read, pkg, "module.wasm"); err == nil {
		t.Fatalf("expected duplicate target to be rejected")
	}
}

func TestWriteUnderLibRejected(t *testing.T) {
	pkg := newPackageArchive(t)
	defer pkg.Close()

	b := NewBootstrapper(filepath.Join(t.TempDir(), "app.hfs"))
	if err := b.MountFile("lib/auth/module.wasm", Read, pkg, "module.wasm"); err != nil {
		t.Fatalf("mount file: %v", err)
	}
	if err := b.CreateDir("state", ReadWrite); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	h, err := b.Bootstrap()
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer h.Close()

	if err := h.Write("lib/auth/evil.txt", []byte("x")); err == nil {
		t.Fatalf("expected write under /lib to be rejected")
	}
	if err := h.Write("state/db.sqlite", []byte("data")); err != nil {
		t.Fatalf("expected write to state dir to succeed: %v", err)
	}
}

func TestHandleCloneSharesUnderlyingFile(t *testing.T) {
	pkg := newPackageArchive(t)
	defer pkg.Close()

	b := NewBootstrapper(filepath.Join(t.TempDir(), "app.hfs"))
	if err := b.CreateDir("state", ReadWrite); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	h, err := b.Bootstrap()
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer h.Close()

	clone := h.Clone()
	if err := clone.Write("state/x.txt", []byte("v")); err != nil {
		t.Fatalf("write via clone: %v", err)
	}
	got, err := h.Read("state/x.txt")
	if err != nil {
		t.Fatalf("read via original after clone write: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("unexpected content %q", got)
	}
}
