// Package hashsign implements Component A: Blake2b-256 hashing, Ed25519
// key/certificate handling, and the process-wide certificate store.
package hashsign

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// Hash256 is a raw 32-byte Blake2b-256 digest (spec.md §6: "raw 32-byte
// Blake2b-256").
type Hash256 [32]byte

// Blake2b256 hashes b. The result is stable for a given input (spec.md §8
// property 3).
func Blake2b256(b []byte) Hash256 {
	return blake2b.Sum256(b)
}

// String renders the hash as lowercase hex.
func (h Hash256) String() string {
	return hex.EncodeToString(h[:])
}

// ToHex is an explicit alias for String, for call sites that want to name
// the operation rather than rely on Stringer.
func (h Hash256) ToHex() string { return h.String() }

// FromHex parses a hex string into a Hash256. from_hex(to_hex(h)) == h
// (spec.md §8 property 3).
func FromHex(s string) (Hash256, error) {
	var h Hash256
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, herrors.Wrap(err, "decode hash hex")
	}
	if len(b) != len(h) {
		return h, herrors.Wrapf(herrors.ErrMisuse, "hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Equal reports whether two hashes are identical.
func (h Hash256) Equal(other Hash256) bool {
	return h == other
}
