package cardano

import "context"

// ChainFollower is a pull iterator over a bounded or unbounded span of a
// network's update stream (spec.md §4.9's "guest-visible chain follower").
// Construct one via Network.SubscribeBlock.
type ChainFollower struct {
	ch          <-chan ChainUpdate
	unsubscribe func()
	start, end  Point
	exhausted   bool
}

func newChainFollower(ch <-chan ChainUpdate, unsubscribe func(), start, end Point) *ChainFollower {
	f := &ChainFollower{ch: ch, unsubscribe: unsubscribe, start: start, end: end}
	if end != Tip && end.Less(start) {
		// start > end: per spec.md §4.9 this iterator yields nothing at all.
		f.exhausted = true
	}
	return f
}

// Next blocks until the next in-range update arrives, ctx is cancelled, or
// the follower's range is exhausted. A false ok in either of the latter two
// cases means the caller should stop iterating.
func (f *ChainFollower) Next(ctx context.Context) (ChainUpdate, bool) {
	if f.exhausted {
		return ChainUpdate{}, false
	}
	for {
		select {
		case upd, open := <-f.ch:
			if !open {
				f.exhausted = true
				return ChainUpdate{}, false
			}
			if upd.Kind != KindRollback && upd.Point.Slot < f.start.Slot {
				continue
			}
			if f.end != Tip && upd.Kind != KindRollback && f.end.Slot < upd.Point.Slot {
				f.exhausted = true
				return ChainUpdate{}, false
			}
			return upd, true
		case <-ctx.Done():
			f.exhausted = true
			return ChainUpdate{}, false
		}
	}
}

// Close releases the follower's subscription. Safe to call more than once.
func (f *ChainFollower) Close() {
	if f.unsubscribe != nil {
		f.unsubscribe()
		f.unsubscribe = nil
	}
}
