package hashsign

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// Signature is a raw 64-byte Ed25519 signature (spec.md §6).
type Signature [64]byte

// GenerateKey produces a fresh Ed25519 keypair, used by `module sign`
// tooling and by tests.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, herrors.Wrap(err, "generate ed25519 key")
	}
	return pub, priv, nil
}

// Sign signs payload with priv. For the same payload and key, Sign always
// produces the same signature bytes (spec.md §8 property 2: Ed25519 is
// deterministic).
func Sign(priv ed25519.PrivateKey, payload []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(priv, payload))
	return sig
}

// Verify checks sig against payload under pub.
func Verify(pub ed25519.PublicKey, payload []byte, sig Signature) bool {
	return ed25519.Verify(pub, payload, sig[:])
}

// ParsePKCS8PrivateKey decodes a PEM-encoded PKCS#8 Ed25519 private key
// (spec.md §6: "private keys are PKCS#8 PEM").
func ParsePKCS8PrivateKey(pemBytes []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, herrors.Wrapf(herrors.ErrMisuse, "no PEM block found in private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, herrors.Wrap(err, "parse PKCS#8 private key")
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, herrors.Wrapf(herrors.ErrMisuse, "private key is not Ed25519")
	}
	return priv, nil
}
