package main

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/input-output-hk/hermes-sub003/internal/hashsign"
	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// parsePrivateKey reads a PKCS#8 PEM-encoded Ed25519 private key from path,
// the format `module sign`/`app sign` expect (spec.md §6).
func parsePrivateKey(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, herrors.Wrapf(err, "read private key %s", path)
	}
	return hashsign.ParsePKCS8PrivateKey(b)
}

// parseCertificate reads a PEM-encoded x.509 certificate from path.
func parseCertificate(path string) (*x509.Certificate, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, herrors.Wrapf(err, "read certificate %s", path)
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, herrors.Wrapf(herrors.ErrMisuse, "no PEM block found in %s", path)
	}
	return x509.ParseCertificate(block.Bytes)
}

// loadTrustedCerts reads each -c/--cert path, inserting it into a CertStore
// (for signer-hash lookup) and adding it to a CertPool of roots (so a
// package signed directly by one of these certs, or by a chain ending in
// one, resolves) — the trust material `run -c <cert>...` needs to validate
// loaded packages (spec.md §6).
func loadTrustedCerts(paths []string) (*hashsign.CertStore, *x509.CertPool, error) {
	store := hashsign.NewCertStore()
	roots := x509.NewCertPool()
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, herrors.Wrapf(err, "read certificate %s", path)
		}
		if _, err := store.Insert(b); err != nil {
			return nil, nil, herrors.Wrapf(err, "insert certificate %s", path)
		}
		cert, err := parseCertificate(path)
		if err != nil {
			return nil, nil, err
		}
		roots.AddCert(cert)
	}
	return store, roots, nil
}
