package archive

import (
	"path/filepath"
	"testing"
)

func TestRoundTripPlain(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "test.hfs")

	f, err := Open(p, CreateNew)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	payload := []byte("hello hermes")
	if err := f.CreateDataset("lib/mod/module.wasm", payload, None); err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f2, err := Open(p, Read)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f2.Close()
	got, err := f2.ReadDataset("lib/mod/module.wasm")
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("round trip mismatch: got %q want %q", got, payload)
	}
}

func TestRoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "compressed.hfs")

	f, err := Open(p, CreateNew)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i % 7)
	}
	if err := f.CreateDataset("share/data.bin", payload, Zstd9Chunked); err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f2, err := Open(p, Read)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f2.Close()
	got, err := f2.ReadDataset("share/data.bin")
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	if len(got) != len(payload) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(payload))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte mismatch at %d", i)
		}
	}
}

func TestChildrenAndDelete(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tree.hfs")
	f, err := Open(p, CreateNew)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if _, err := f.CreateGroup("lib/mod1"); err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := f.CreateDataset("lib/mod1/module.wasm", []byte("a"), None); err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	if err := f.CreateDataset("lib/mod1/metadata.json", []byte("{}"), None); err != nil {
		t.Fatalf("create dataset: %v", err)
	}

	g, err := f.OpenGroup("lib/mod1")
	if err != nil {
		t.Fatalf("open group: %v", err)
	}
	children := g.Children()
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}

	if err := f.Delete("lib/mod1/module.wasm"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	children = g.Children()
	if len(children) != 1 {
		t.Fatalf("expected 1 child after delete, got %d", len(children))
	}
}

func TestDuplicateCreateFails(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "dup.hfs")
	f, err := Open(p, CreateNew)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if err := f.CreateDataset("x", []byte("1"), None); err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	if err := f.CreateDataset("x", []byte("2"), None); err == nil {
		t.Fatalf("expected AlreadyExists error on duplicate create")
	}
}
