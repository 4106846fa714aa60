package pkgmod

import (
	"bytes"
	"crypto/x509"
	"encoding/json"

	"github.com/input-output-hk/hermes-sub003/internal/archive"
	"github.com/input-output-hk/hermes-sub003/internal/hashsign"
	"github.com/input-output-hk/hermes-sub003/internal/herrors"
	"github.com/input-output-hk/hermes-sub003/internal/manifest"
)

// Well-known paths inside a module package archive (spec.md §3).
const (
	pathComponent      = "module.wasm"
	pathMetadata       = "metadata.json"
	pathConfigSchema   = "config.schema.json"
	pathConfig         = "config.json"
	pathSettingsSchema = "settings.schema.json"
	pathShareDir       = "share"
	pathSignature      = "signature.json"
)

// ModulePackage is a read view over a module archive.
type ModulePackage struct {
	f *archive.File
}

// OpenModulePackage opens an existing module package archive for reading.
func OpenModulePackage(path string) (*ModulePackage, error) {
	f, err := archive.Open(path, archive.Read)
	if err != nil {
		return nil, herrors.Wrap(err, "open module package")
	}
	return &ModulePackage{f: f}, nil
}

// OpenModulePackageForSigning opens an existing module package read-write,
// the mode `module sign` needs to add signature.json to an archive built by
// a prior, separate `module package` invocation.
func OpenModulePackageForSigning(path string) (*ModulePackage, error) {
	f, err := archive.Open(path, archive.ReadWrite)
	if err != nil {
		return nil, herrors.Wrap(err, "open module package for signing")
	}
	return &ModulePackage{f: f}, nil
}

// Close releases the underlying archive handle.
func (m *ModulePackage) Close() error { return m.f.Close() }

// Archive exposes the underlying archive handle so callers that mount this
// package's contents elsewhere (Component E's VFS bootstrapper) can do so
// without pkgmod re-implementing a generic mount operation of its own.
func (m *ModulePackage) Archive() *archive.File { return m.f }

func (m *ModulePackage) GetComponentFile() ([]byte, error) {
	return m.f.ReadDataset(pathComponent)
}

func (m *ModulePackage) GetMetadata() (*manifest.Metadata[manifest.ModuleKind], error) {
	b, err := m.f.ReadDataset(pathMetadata)
	if err != nil {
		return nil, err
	}
	return manifest.LoadMetadata[manifest.ModuleKind](bytes.NewReader(b))
}

func (m *ModulePackage) GetConfigSchemaFile() ([]byte, bool, error) {
	return m.optionalDataset(pathConfigSchema)
}

func (m *ModulePackage) GetConfigFile() ([]byte, bool, error) {
	return m.optionalDataset(pathConfig)
}

func (m *ModulePackage) GetSettingsSchemaFile() ([]byte, bool, error) {
	return m.optionalDataset(pathSettingsSchema)
}

func (m *ModulePackage) GetShareDir() (*archive.Group, bool, error) {
	g, err := m.f.OpenGroup(pathShareDir)
	if err != nil {
		return nil, false, nil
	}
	return g, true, nil
}

func (m *ModulePackage) optionalDataset(path string) ([]byte, bool, error) {
	b, err := m.f.ReadDataset(path)
	if err != nil {
		return nil, false, nil
	}
	return b, true, nil
}

// Validate checks package-internal consistency (config.json requires
// config.schema.json, config validates against it). When untrusted is
// false it additionally verifies that the signature's declared file hashes
// match the archive's actual bytes and that the signature itself resolves
// against store (spec.md §4.3, §7, and the S5 scenario: a --untrusted=true
// load of a post-signature-mutated package succeeds — the signature and
// its declared hashes are trust material the caller has opted out of).
func (m *ModulePackage) Validate(untrusted bool, store *hashsign.CertStore, roots *x509.CertPool) error {
	if cfgSchema, ok, _ := m.GetConfigSchemaFile(); ok {
		if cfg, hasCfg, _ := m.GetConfigFile(); hasCfg {
			schema, err := manifest.LoadConfigSchema(cfgSchema)
			if err != nil {
				return err
			}
			if _, err := schema.LoadConfig(cfg); err != nil {
				return err
			}
		}
	} else if _, hasCfg, _ := m.GetConfigFile(); hasCfg {
		// spec.md §3 invariant 2: config.json without config.schema.json
		// is a manifest error, not an integrity error.
		return &herrors.ManifestError{Field: pathConfig, Reason: "present without config.schema.json"}
	}

	if untrusted {
		return nil
	}

	metaBytes, err := m.f.ReadDataset(pathMetadata)
	if err != nil {
		return herrors.Wrap(err, "read metadata for validation")
	}
	compBytes, err := m.f.ReadDataset(pathComponent)
	if err != nil {
		return herrors.Wrap(err, "read component for validation")
	}
	sigBytes, err := m.f.ReadDataset(pathSignature)
	if err != nil {
		return herrors.NewIntegrityError(pathSignature, "missing signature payload")
	}
	var signed Signed
	if err := json.Unmarshal(sigBytes, &signed); err != nil {
		return herrors.Wrap(err, "unmarshal signature")
	}

	if got := hashsign.Blake2b256(metaBytes); got != signed.Payload.MetadataHash {
		return herrors.NewIntegrityError(pathMetadata, "hash mismatch")
	}
	if got := hashsign.Blake2b256(compBytes); got != signed.Payload.ComponentHash {
		return herrors.NewIntegrityError(pathComponent, "hash mismatch")
	}
	if settings, ok, _ := m.GetSettingsSchemaFile(); ok {
		if signed.Payload.SettingsSchema == nil || hashsign.Blake2b256(settings) != *signed.Payload.SettingsSchema {
			return herrors.NewIntegrityError(pathSettingsSchema, "hash mismatch")
		}
	}
	if cfgSchema, ok, _ := m.GetConfigSchemaFile(); ok {
		if signed.Payload.ConfigSchemaHash == nil || hashsign.Blake2b256(cfgSchema) != *signed.Payload.ConfigSchemaHash {
			return herrors.NewIntegrityError(pathConfigSchema, "hash mismatch")
		}
		if cfg, hasCfg, _ := m.GetConfigFile(); hasCfg {
			if signed.Payload.ConfigHash == nil || hashsign.Blake2b256(cfg) != *signed.Payload.ConfigHash {
				return herrors.NewIntegrityError(pathConfig, "hash mismatch")
			}
		}
	}

	return Verify(&signed, store, roots)
}
