package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMetadataRoundTrip(t *testing.T) {
	raw := `{"name":"auth","version":"1.0.0","build_date":"2026-01-01T00:00:00Z"}`
	m, err := LoadMetadata[ModuleKind](strings.NewReader(raw))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	out, err := m.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	m2, err := LoadMetadata[ModuleKind](strings.NewReader(string(out)))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if m.Name != m2.Name || m.Version != m2.Version || !m.BuildDate.Equal(m2.BuildDate) {
		t.Fatalf("round trip mismatch: %+v vs %+v", m, m2)
	}
}

func TestMetadataRejectsMissingRequiredField(t *testing.T) {
	raw := `{"version":"1.0.0","build_date":"2026-01-01T00:00:00Z"}`
	if _, err := LoadMetadata[ModuleKind](strings.NewReader(raw)); err == nil {
		t.Fatalf("expected schema validation error for missing name")
	}
}

func TestConfigValidatesAtLoadTime(t *testing.T) {
	schemaJSON := []byte(`{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["max_conns"],
		"properties": {"max_conns": {"type": "integer"}}
	}`)
	schema, err := LoadConfigSchema(schemaJSON)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	if _, err := schema.LoadConfig([]byte(`{"max_conns": "not-an-int"}`)); err == nil {
		t.Fatalf("expected validation failure for wrong type")
	}
	cfg, err := schema.LoadConfig([]byte(`{"max_conns": 5}`))
	if err != nil {
		t.Fatalf("expected valid config to load: %v", err)
	}
	var v struct {
		MaxConns int `json:"max_conns"`
	}
	if err := cfg.Unmarshal(&v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.MaxConns != 5 {
		t.Fatalf("expected max_conns 5, got %d", v.MaxConns)
	}
}

func TestManifestResolveURI(t *testing.T) {
	dir := t.TempDir()
	compPath := filepath.Join(dir, "module.wasm")
	if err := os.WriteFile(compPath, []byte("wasm"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	metaPath := filepath.Join(dir, "metadata.json")
	if err := os.WriteFile(metaPath, []byte(`{"name":"m","version":"1","build_date":"2026-01-01T00:00:00Z"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	manifestPath := filepath.Join(dir, "manifest.json")
	content := `{"component":"module.wasm","metadata":"file:metadata.json"}`
	if err := os.WriteFile(manifestPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := LoadManifest(manifestPath)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if err := m.VerifyResolvable(); err != nil {
		t.Fatalf("expected manifest to resolve: %v", err)
	}
}

func TestManifestRejectsUnsupportedScheme(t *testing.T) {
	m := &Manifest{dir: "."}
	if _, err := m.ResolveURI("https://example.com/module.wasm"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

