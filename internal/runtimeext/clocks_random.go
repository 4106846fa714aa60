package runtimeext

import (
	"crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"time"
)

// PriorityAmbient is shared by capabilities with no ordering dependency on
// one another, only on logging starting first.
const PriorityAmbient = 10

// ClocksCapability exposes wall-clock and monotonic time to guests; both
// are stateless reads, so its lifecycle hooks are no-ops (spec.md §4.6).
type ClocksCapability struct{ start time.Time }

func NewClocksCapability() *ClocksCapability { return &ClocksCapability{start: time.Now()} }

func (c *ClocksCapability) Name() string                  { return "clocks" }
func (c *ClocksCapability) Priority() int                 { return PriorityAmbient }
func (c *ClocksCapability) AppInit(RuntimeContext) error  { return nil }
func (c *ClocksCapability) AppFini(RuntimeContext) error  { return nil }

// WallClockNow returns the current wall-clock time as Unix nanoseconds.
func (c *ClocksCapability) WallClockNow() int64 { return time.Now().UnixNano() }

// MonotonicNow returns nanoseconds elapsed since the capability was
// created, immune to wall-clock adjustment.
func (c *ClocksCapability) MonotonicNow() int64 { return time.Since(c.start).Nanoseconds() }

// RandomCapability exposes secure and insecure-seed randomness sources.
type RandomCapability struct {
	insecure *rand.Rand
}

func NewRandomCapability() *RandomCapability {
	var seed [32]byte
	_, _ = rand.Reader.Read(seed[:])
	s1 := binary.LittleEndian.Uint64(seed[0:8])
	s2 := binary.LittleEndian.Uint64(seed[8:16])
	return &RandomCapability{insecure: rand.New(rand.NewPCG(s1, s2))}
}

func (r *RandomCapability) Name() string                  { return "random" }
func (r *RandomCapability) Priority() int                 { return PriorityAmbient }
func (r *RandomCapability) AppInit(RuntimeContext) error  { return nil }
func (r *RandomCapability) AppFini(RuntimeContext) error  { return nil }

// Secure fills out with cryptographically secure random bytes.
func (r *RandomCapability) Secure(out []byte) error {
	_, err := rand.Read(out)
	return err
}

// InsecureSeeded fills out with bytes from a fast, non-cryptographic PRNG —
// for guests that want determinism-friendly randomness (e.g. simulation
// seeds) rather than unpredictability.
func (r *RandomCapability) InsecureSeeded(out []byte) {
	for i := range out {
		out[i] = byte(r.insecure.IntN(256))
	}
}
