// Package pkgmod implements Component D: content-addressed module and
// application packages layered over an archive (Component B), validated
// against embedded schemas (Component C) and signed with Ed25519
// (Component A).
package pkgmod

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/json"
	"sort"

	"github.com/input-output-hk/hermes-sub003/internal/hashsign"
	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// SignaturePayload names each constituent file of a package by its hash;
// it is the object whose hash is actually signed (spec.md §4.3, GLOSSARY).
type SignaturePayload struct {
	MetadataHash     hashsign.Hash256            `json:"metadata_hash"`
	ComponentHash    hashsign.Hash256             `json:"component_hash,omitempty"`
	ConfigSchemaHash *hashsign.Hash256            `json:"config_schema_hash,omitempty"`
	ConfigHash       *hashsign.Hash256            `json:"config_hash,omitempty"`
	SettingsSchema   *hashsign.Hash256            `json:"settings_schema_hash,omitempty"`
	ShareDirHash     *hashsign.Hash256            `json:"share_dir_hash,omitempty"`
	ModuleHashes     map[string]hashsign.Hash256  `json:"module_hashes,omitempty"` // application-only
}

// canonicalBytes serializes the payload deterministically: the same
// payload always produces the same bytes, which is required for
// spec.md §8 property 2 (signature determinism) to hold end to end.
func (p *SignaturePayload) canonicalBytes() ([]byte, error) {
	type wire struct {
		MetadataHash     string            `json:"metadata_hash"`
		ComponentHash    string            `json:"component_hash,omitempty"`
		ConfigSchemaHash string            `json:"config_schema_hash,omitempty"`
		ConfigHash       string            `json:"config_hash,omitempty"`
		SettingsSchema   string            `json:"settings_schema_hash,omitempty"`
		ShareDirHash     string            `json:"share_dir_hash,omitempty"`
		ModuleHashes     map[string]string `json:"module_hashes,omitempty"`
	}
	w := wire{MetadataHash: p.MetadataHash.String(), ComponentHash: p.ComponentHash.String()}
	if p.ConfigSchemaHash != nil {
		w.ConfigSchemaHash = p.ConfigSchemaHash.String()
	}
	if p.ConfigHash != nil {
		w.ConfigHash = p.ConfigHash.String()
	}
	if p.SettingsSchema != nil {
		w.SettingsSchema = p.SettingsSchema.String()
	}
	if p.ShareDirHash != nil {
		w.ShareDirHash = p.ShareDirHash.String()
	}
	if len(p.ModuleHashes) > 0 {
		w.ModuleHashes = make(map[string]string, len(p.ModuleHashes))
		names := make([]string, 0, len(p.ModuleHashes))
		for name := range p.ModuleHashes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			w.ModuleHashes[name] = p.ModuleHashes[name].String()
		}
	}
	return json.Marshal(w)
}

// Signed is a SignaturePayload plus the Ed25519 signature and the signing
// certificate's hash, as stored in an archive.
type Signed struct {
	Payload   SignaturePayload   `json:"payload"`
	CertHash  hashsign.Hash256   `json:"cert_hash"`
	Signature hashsign.Signature `json:"signature"`
}

// Sign computes and signs the payload, embedding the cert's hash alongside
// the signature (spec.md §4.3: "sign(priv_key, cert) ... computes the
// SignaturePayload, signs with Ed25519, embeds cert+signature").
func Sign(payload SignaturePayload, priv ed25519.PrivateKey, cert *x509.Certificate) (*Signed, error) {
	b, err := payload.canonicalBytes()
	if err != nil {
		return nil, herrors.Wrap(err, "canonicalize signature payload")
	}
	certHash := hashsign.Blake2b256(cert.Raw)
	sig := hashsign.Sign(priv, b)
	return &Signed{Payload: payload, CertHash: certHash, Signature: sig}, nil
}

// Verify checks that s.Signature is valid over s.Payload under the
// certificate resolved from store by s.CertHash, and that store resolves
// the certificate's chain (spec.md §4.3 invariant 4).
func Verify(s *Signed, store *hashsign.CertStore, roots *x509.CertPool) error {
	cert, ok := store.Lookup(s.CertHash)
	if !ok {
		return herrors.Wrapf(herrors.ErrResourceNotFound, "signing certificate %s not found", s.CertHash)
	}
	if err := store.Resolve(s.CertHash, roots); err != nil {
		return herrors.Wrapf(err, "certificate chain for %s", s.CertHash)
	}
	b, err := s.Payload.canonicalBytes()
	if err != nil {
		return herrors.Wrap(err, "canonicalize signature payload")
	}
	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return herrors.Wrapf(herrors.ErrMisuse, "signing certificate %s is not Ed25519", s.CertHash)
	}
	if !hashsign.Verify(pub, b, s.Signature) {
		return herrors.NewIntegrityError("signature", "Ed25519 verification failed")
	}
	return nil
}
