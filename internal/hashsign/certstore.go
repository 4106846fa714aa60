package hashsign

import (
	"crypto/x509"
	"encoding/pem"
	"sync"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// CertStore is the process-wide, insert-only certificate store keyed by
// Blake2b-256 of the DER bytes (spec.md §3: "Inserts must not replace;
// lookups are by hash").
type CertStore struct {
	mu    sync.RWMutex
	certs map[Hash256]*x509.Certificate
	der   map[Hash256][]byte
}

// NewCertStore builds an empty certificate store.
func NewCertStore() *CertStore {
	return &CertStore{
		certs: make(map[Hash256]*x509.Certificate),
		der:   make(map[Hash256][]byte),
	}
}

// Insert decodes a PEM-encoded x.509 certificate and inserts it keyed by
// the hash of its DER bytes. Re-inserting the same hash is a silent no-op;
// it never replaces the stored certificate.
func (s *CertStore) Insert(pemBytes []byte) (Hash256, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return Hash256{}, herrors.Wrapf(herrors.ErrMisuse, "no PEM block found in certificate")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return Hash256{}, herrors.Wrap(err, "parse x509 certificate")
	}
	h := Blake2b256(block.Bytes)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.certs[h]; !ok {
		s.certs[h] = cert
		s.der[h] = append([]byte(nil), block.Bytes...)
	}
	return h, nil
}

// Lookup returns the certificate stored under hash, if any.
func (s *CertStore) Lookup(hash Hash256) (*x509.Certificate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.certs[hash]
	return c, ok
}

// Resolve verifies the leaf's issuer chain, using the store's other
// certificates as intermediates and roots as trust anchors, returning an error naming the missing link if the
// chain cannot be completed (spec.md §4.3 invariant 4: "the certificate
// chain resolves in the certificate store").
func (s *CertStore) Resolve(leaf Hash256, roots *x509.CertPool) error {
	s.mu.RLock()
	cert, ok := s.certs[leaf]
	s.mu.RUnlock()
	if !ok {
		return herrors.Wrapf(herrors.ErrResourceNotFound, "certificate %s not found in store", leaf)
	}
	if roots == nil {
		roots = x509.NewCertPool()
	}
	intermediates := x509.NewCertPool()
	s.mu.RLock()
	for h, c := range s.certs {
		if h != leaf {
			intermediates.AddCert(c)
		}
	}
	s.mu.RUnlock()
	_, err := cert.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
	})
	if err != nil {
		return herrors.Wrapf(err, "resolve certificate chain for %s", leaf)
	}
	return nil
}
