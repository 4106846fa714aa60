package pkgmod

import (
	"bytes"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/json"
	"os"
	"time"

	"github.com/input-output-hk/hermes-sub003/internal/archive"
	"github.com/input-output-hk/hermes-sub003/internal/hashsign"
	"github.com/input-output-hk/hermes-sub003/internal/herrors"
	"github.com/input-output-hk/hermes-sub003/internal/manifest"
)

// BuildApplicationFromManifest mirrors BuildModuleFromManifest for the
// application-level package (spec.md §3, §4.3): an icon, metadata, optional
// www/share dirs, plus every named module built straight into
// lib/<name>/ inside the same archive.
func BuildApplicationFromManifest(m *manifest.Manifest, outPath string, buildTime time.Time) (*ApplicationPackage, error) {
	if err := m.VerifyResolvable(); err != nil {
		return nil, herrors.Wrap(err, "manifest resources must all resolve")
	}

	f, err := archive.Open(outPath, archive.CreateNew)
	if err != nil {
		return nil, err
	}

	if m.Icon != "" {
		if err := copyFileInto(f, m, pathIcon, m.Icon, archive.None); err != nil {
			return nil, err
		}
	}

	metaPath, err := m.ResolveURI(m.Metadata)
	if err != nil {
		return nil, err
	}
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, herrors.Wrap(err, "read application metadata")
	}
	stamped, err := stampAppMetadata(metaBytes, buildTime)
	if err != nil {
		return nil, err
	}
	if err := f.CreateDataset(pathMetadata, stamped, archive.None); err != nil {
		return nil, err
	}

	if m.WWWDir != "" {
		if err := copyDirInto(f, m, pathWWW, m.WWWDir); err != nil {
			return nil, err
		}
	}

	for name, subPath := range m.Modules {
		if err := embedModule(f, m, name, subPath, buildTime); err != nil {
			return nil, herrors.Wrapf(err, "embed module %s", name)
		}
	}

	return &ApplicationPackage{f: f}, nil
}

// embedModule loads the sub-manifest named by subPath (resolved against the
// application manifest's directory) and copies its constituent files into
// lib/<name>/ of the application archive being built.
func embedModule(f *archive.File, appManifest *manifest.Manifest, name, subPath string, buildTime time.Time) error {
	resolved, err := appManifest.ResolveURI(subPath)
	if err != nil {
		return err
	}
	sub, err := manifest.LoadManifest(resolved)
	if err != nil {
		return herrors.Wrap(err, "load sub-manifest")
	}
	if err := sub.VerifyResolvable(); err != nil {
		return herrors.Wrap(err, "sub-manifest resources must all resolve")
	}

	prefix := libDir + "/" + name

	if err := copyFileInto(f, sub, prefix+"/"+pathComponent, sub.Component, archive.None); err != nil {
		return err
	}
	subMetaPath, err := sub.ResolveURI(sub.Metadata)
	if err != nil {
		return err
	}
	subMetaBytes, err := os.ReadFile(subMetaPath)
	if err != nil {
		return herrors.Wrap(err, "read module metadata")
	}
	subStamped, err := stampMetadata(subMetaBytes, name, buildTime)
	if err != nil {
		return err
	}
	if err := f.CreateDataset(prefix+"/"+pathMetadata, subStamped, archive.None); err != nil {
		return err
	}
	if sub.ConfigSchema != "" {
		if err := copyFileInto(f, sub, prefix+"/"+pathConfigSchema, sub.ConfigSchema, archive.None); err != nil {
			return err
		}
	}
	if sub.Config != "" {
		if err := copyFileInto(f, sub, prefix+"/"+pathConfig, sub.Config, archive.None); err != nil {
			return err
		}
	}
	if sub.SettingsSchema != "" {
		if err := copyFileInto(f, sub, prefix+"/"+pathSettingsSchema, sub.SettingsSchema, archive.None); err != nil {
			return err
		}
	}
	if sub.ShareDir != "" {
		if err := copyDirInto(f, sub, prefix+"/"+pathShareDir, sub.ShareDir); err != nil {
			return err
		}
	}
	return nil
}

func stampAppMetadata(raw []byte, buildTime time.Time) ([]byte, error) {
	md, err := manifest.LoadMetadata[manifest.AppKind](bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return md.WithBuildDate(buildTime).Serialize()
}

// SignApplication computes the application's SignaturePayload — the
// metadata hash plus one component hash per embedded module, keyed by
// module name (ApplicationPackage.Validate checks every one of these) —
// and signs it, writing signature.json into the archive.
func SignApplication(ap *ApplicationPackage, priv ed25519.PrivateKey, cert *x509.Certificate) error {
	metaBytes, err := ap.f.ReadDataset(pathMetadata)
	if err != nil {
		return err
	}
	payload := SignaturePayload{
		MetadataHash: hashsign.Blake2b256(metaBytes),
		ModuleHashes: make(map[string]hashsign.Hash256),
	}
	for _, name := range ap.ModuleNames() {
		compBytes, err := ap.f.ReadDataset(libDir + "/" + name + "/" + pathComponent)
		if err != nil {
			return herrors.Wrapf(err, "read module %s component", name)
		}
		payload.ModuleHashes[name] = hashsign.Blake2b256(compBytes)
	}

	signed, err := Sign(payload, priv, cert)
	if err != nil {
		return err
	}
	sigJSON, err := json.Marshal(signed)
	if err != nil {
		return err
	}
	return ap.f.CreateDataset(pathSignature, sigJSON, archive.None)
}
