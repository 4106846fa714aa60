// Package cardano implements Component J: a chain follower that unifies an
// immutable mithril-snapshot iterator with a live tip-follower into a
// single monotonic stream of block/rollback updates per network
// (spec.md §4.9).
package cardano

// Point identifies a position on a Cardano chain by slot and block hash.
// The zero Point is the chain's origin.
type Point struct {
	Slot uint64
	Hash [32]byte
}

// IsOrigin reports whether p is the chain origin (slot 0, zero hash).
func (p Point) IsOrigin() bool { return p.Slot == 0 && p.Hash == [32]byte{} }

// Less orders points by slot; equal slots compare equal regardless of hash
// (fork disambiguation is handled separately via Network.GetBlock's fork
// index, SPEC_FULL.md §13 decision 1).
func (p Point) Less(other Point) bool { return p.Slot < other.Slot }

// Tip is a sentinel End value meaning "never terminate" when building a
// ChainFollower (spec.md §4.9: "If end = Tip, the iterator never
// terminates").
var Tip = Point{Slot: ^uint64(0)}

// SnapshotId names a specific mithril snapshot.
type SnapshotId struct {
	Epoch  uint64
	Digest string
}

// IsZero reports whether id is the unset zero value.
func (id SnapshotId) IsZero() bool { return id == SnapshotId{} }

// UpdateKind tags a ChainUpdate's variant.
type UpdateKind int

const (
	KindBlock UpdateKind = iota
	KindRollback
	KindImmutableRollForward
)

// ChainUpdate is one item the sync task delivers to subscribers.
type ChainUpdate struct {
	Kind  UpdateKind
	Point Point
	Raw   []byte // block bytes, present only for KindBlock
}
