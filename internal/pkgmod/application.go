package pkgmod

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"fmt"

	"github.com/input-output-hk/hermes-sub003/internal/archive"
	"github.com/input-output-hk/hermes-sub003/internal/hashsign"
	"github.com/input-output-hk/hermes-sub003/internal/herrors"
	"github.com/input-output-hk/hermes-sub003/internal/manifest"
)

const (
	pathIcon = "icon.svg"
	pathWWW  = "www"
	libDir   = "lib"
)

// ApplicationPackage is a read view over an application archive: an icon,
// metadata, zero or more module sub-archives under lib/<module_name>/, and
// optional top-level share/www dirs (spec.md §3).
type ApplicationPackage struct {
	f *archive.File
}

// OpenApplicationPackage opens an existing application package archive.
func OpenApplicationPackage(path string) (*ApplicationPackage, error) {
	f, err := archive.Open(path, archive.Read)
	if err != nil {
		return nil, herrors.Wrap(err, "open application package")
	}
	return &ApplicationPackage{f: f}, nil
}

// OpenApplicationPackageForSigning opens an existing application package
// read-write, the mode `app sign` needs to add signature.json to an archive
// built by a prior, separate `app package` invocation.
func OpenApplicationPackageForSigning(path string) (*ApplicationPackage, error) {
	f, err := archive.Open(path, archive.ReadWrite)
	if err != nil {
		return nil, herrors.Wrap(err, "open application package for signing")
	}
	return &ApplicationPackage{f: f}, nil
}

func (a *ApplicationPackage) Close() error { return a.f.Close() }

// Archive exposes the underlying archive handle, the same way
// ModulePackage.Archive does, so the VFS bootstrapper can mount an
// application's own top-level resources (icon, www) directly.
func (a *ApplicationPackage) Archive() *archive.File { return a.f }

func (a *ApplicationPackage) GetMetadata() (*manifest.Metadata[manifest.AppKind], error) {
	b, err := a.f.ReadDataset(pathMetadata)
	if err != nil {
		return nil, err
	}
	return manifest.LoadMetadata[manifest.AppKind](bytes.NewReader(b))
}

func (a *ApplicationPackage) GetIcon() ([]byte, error) {
	return a.f.ReadDataset(pathIcon)
}

// ModuleNames lists the module names embedded under lib/.
func (a *ApplicationPackage) ModuleNames() []string {
	g, err := a.f.OpenGroup(libDir)
	if err != nil {
		return nil
	}
	names := make([]string, 0)
	for _, c := range g.Children() {
		if c.Kind == archive.KindGroup {
			names = append(names, c.Name)
		}
	}
	return names
}

// ModuleSubPackage opens the embedded module package for name. Because an
// ApplicationPackage is a single archive and ModulePackage expects its own
// archive.File, the module's constituent datasets under lib/<name>/ are
// copied into a new archive file created at tmpPath — the same mounting
// approach the VFS bootstrapper (Component E) uses to expose it to guests.
func (a *ApplicationPackage) ModuleSubPackage(name string, tmpPath string) (*ModulePackage, error) {
	prefix := libDir + "/" + name
	if _, err := a.f.OpenGroup(prefix); err != nil {
		return nil, herrors.Wrapf(herrors.ErrResourceNotFound, "module %s not found in application package", name)
	}
	sub, err := archive.Open(tmpPath, archive.CreateNew)
	if err != nil {
		return nil, err
	}
	for _, rel := range []string{pathComponent, pathMetadata, pathConfigSchema, pathConfig, pathSettingsSchema, pathSignature} {
		if err := sub.MountReference(rel, a.f, prefix+"/"+rel); err != nil {
			// Optional files (config.json, settings.schema.json) may be
			// legitimately absent; only component/metadata/signature are
			// required.
			if rel == pathComponent || rel == pathMetadata || rel == pathSignature {
				return nil, herrors.Wrapf(err, "module %s missing required %s", name, rel)
			}
		}
	}
	return &ModulePackage{f: sub}, nil
}

// Validate, when untrusted is false, checks the application metadata hash
// and each embedded module's module.wasm hash against the signature payload,
// then verifies the author signature. Other files of the embedded modules
// are not hashed here. When untrusted is true, it checks nothing and
// returns nil — spec.md's S5 scenario requires a package mutated after
// signing to load successfully under --untrusted.
func (a *ApplicationPackage) Validate(untrusted bool, store *hashsign.CertStore, roots *x509.CertPool) error {
	if untrusted {
		return nil
	}

	metaBytes, err := a.f.ReadDataset(pathMetadata)
	if err != nil {
		return herrors.Wrap(err, "read metadata for validation")
	}
	sigBytes, err := a.f.ReadDataset(pathSignature)
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

	for _, name := range a.ModuleNames() {
		prefix := fmt.Sprintf("%s/%s/", libDir, name)
		compBytes, err := a.f.ReadDataset(prefix + pathComponent)
		if err != nil {
			return herrors.NewIntegrityError(prefix+pathComponent, "missing")
		}
		want, ok := signed.Payload.ModuleHashes[name]
		if !ok {
			return herrors.NewIntegrityError(name, "module not named in application signature payload")
		}
		if got := hashsign.Blake2b256(compBytes); got != want {
			return herrors.NewIntegrityError(prefix+pathComponent, "hash mismatch")
		}
	}

	return Verify(&signed, store, roots)
}
