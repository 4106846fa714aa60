package pkgmod

import (
	"bytes"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/input-output-hk/hermes-sub003/internal/archive"
	"github.com/input-output-hk/hermes-sub003/internal/hashsign"
	"github.com/input-output-hk/hermes-sub003/internal/herrors"
	"github.com/input-output-hk/hermes-sub003/internal/manifest"
)

// BuildModuleFromManifest consumes a manifest describing where each
// constituent file lives on disk, copies them into a freshly created
// archive at outPath, stamps the build date, and returns the new package
// (spec.md §4.3: build_from_manifest).
func BuildModuleFromManifest(m *manifest.Manifest, outPath string, nameOverride string, buildTime time.Time) (*ModulePackage, error) {
	if err := m.VerifyResolvable(); err != nil {
		return nil, herrors.Wrap(err, "manifest resources must all resolve")
	}

	f, err := archive.Open(outPath, archive.CreateNew)
	if err != nil {
		return nil, err
	}

	if err := copyFileInto(f, m, pathComponent, m.Component, archive.None); err != nil {
		return nil, err
	}
	metaPath, err := m.ResolveURI(m.Metadata)
	if err != nil {
		return nil, err
	}
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, herrors.Wrap(err, "read metadata")
	}
	stamped, err := stampMetadata(metaBytes, nameOverride, buildTime)
	if err != nil {
		return nil, err
	}
	if err := f.CreateDataset(pathMetadata, stamped, archive.None); err != nil {
		return nil, err
	}

	if m.ConfigSchema != "" {
		if err := copyFileInto(f, m, pathConfigSchema, m.ConfigSchema, archive.None); err != nil {
			return nil, err
		}
	}
	if m.Config != "" {
		if err := copyFileInto(f, m, pathConfig, m.Config, archive.None); err != nil {
			return nil, err
		}
	}
	if m.SettingsSchema != "" {
		if err := copyFileInto(f, m, pathSettingsSchema, m.SettingsSchema, archive.None); err != nil {
			return nil, err
		}
	}
	if m.ShareDir != "" {
		if err := copyDirInto(f, m, pathShareDir, m.ShareDir); err != nil {
			return nil, err
		}
	}

	return &ModulePackage{f: f}, nil
}

func stampMetadata(raw []byte, nameOverride string, buildTime time.Time) ([]byte, error) {
	md, err := manifest.LoadMetadata[manifest.ModuleKind](bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	stamped := md.WithBuildDate(buildTime)
	if nameOverride != "" {
		stamped.Name = nameOverride
	}
	return stamped.Serialize()
}

func copyFileInto(f *archive.File, m *manifest.Manifest, dst, uri string, comp archive.Compression) error {
	p, err := m.ResolveURI(uri)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return herrors.Wrapf(err, "read %s", p)
	}
	return f.CreateDataset(dst, b, comp)
}

func copyDirInto(f *archive.File, m *manifest.Manifest, dstPrefix, uri string) error {
	root, err := m.ResolveURI(uri)
	if err != nil {
		return err
	}
	return filepath.Walk(root, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return f.CreateDataset(dstPrefix+"/"+filepath.ToSlash(rel), b, archive.Zstd9Chunked)
	})
}

// SignModule computes the module's SignaturePayload from its stored
// datasets and signs it, writing signature.json into the archive.
func SignModule(mp *ModulePackage, priv ed25519.PrivateKey, cert *x509.Certificate) error {
	metaBytes, err := mp.f.ReadDataset(pathMetadata)
	if err != nil {
		return err
	}
	compBytes, err := mp.f.ReadDataset(pathComponent)
	if err != nil {
		return err
	}
	payload := SignaturePayload{
		MetadataHash:  hashsign.Blake2b256(metaBytes),
		ComponentHash: hashsign.Blake2b256(compBytes),
	}
	if cfgSchema, ok, _ := mp.GetConfigSchemaFile(); ok {
		h := hashsign.Blake2b256(cfgSchema)
		payload.ConfigSchemaHash = &h
		if cfg, hasCfg, _ := mp.GetConfigFile(); hasCfg {
			ch := hashsign.Blake2b256(cfg)
			payload.ConfigHash = &ch
		}
	}
	if settings, ok, _ := mp.GetSettingsSchemaFile(); ok {
		h := hashsign.Blake2b256(settings)
		payload.SettingsSchema = &h
	}

	signed, err := Sign(payload, priv, cert)
	if err != nil {
		return err
	}
	sigJSON, err := json.Marshal(signed)
	if err != nil {
		return err
	}
	return mp.f.CreateDataset(pathSignature, sigJSON, archive.None)
}
