package ipfsext

import (
	"sync"

	"github.com/ipfs/go-cid"
)

// pinSet tracks, per app, which CIDs it has pinned. The node-wide refcount
// (refs) ensures a block stays available until every app that pinned it has
// unpinned or been unloaded (spec.md §4.6.2: "if app A and app B both pin
// the same CID, unpinning in A does not unpin the underlying block until B
// also unpins or is unloaded").
type pinSet struct {
	mu   sync.Mutex
	apps map[string]map[string]struct{} // app -> set of CID strings
	refs map[string]int                 // CID string -> pinning app count
}

func newPinSet() *pinSet {
	return &pinSet{apps: make(map[string]map[string]struct{}), refs: make(map[string]int)}
}

func (p *pinSet) pin(appName string, c cid.Cid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.apps[appName] == nil {
		p.apps[appName] = make(map[string]struct{})
	}
	key := c.String()
	if _, already := p.apps[appName][key]; already {
		return
	}
	p.apps[appName][key] = struct{}{}
	p.refs[key]++
}

// unpin removes appName's pin on c, returning true if the refcount reached
// zero (the block may now be released).
func (p *pinSet) unpin(appName string, c cid.Cid) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := c.String()
	if p.apps[appName] == nil {
		return false
	}
	if _, ok := p.apps[appName][key]; !ok {
		return false
	}
	delete(p.apps[appName], key)
	p.refs[key]--
	if p.refs[key] <= 0 {
		delete(p.refs, key)
		return true
	}
	return false
}

// releaseApp drops every pin owned by appName (app unload), returning the
// set of CIDs whose refcount reached zero as a result.
func (p *pinSet) releaseApp(appName string) []cid.Cid {
	p.mu.Lock()
	defer p.mu.Unlock()
	pinned, ok := p.apps[appName]
	if !ok {
		return nil
	}
	delete(p.apps, appName)
	var released []cid.Cid
	for key := range pinned {
		p.refs[key]--
		if p.refs[key] <= 0 {
			delete(p.refs, key)
			if c, err := cid.Decode(key); err == nil {
				released = append(released, c)
			}
		}
	}
	return released
}
