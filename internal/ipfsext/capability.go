package ipfsext

import (
	"context"

	"github.com/ipfs/go-cid"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
	"github.com/input-output-hk/hermes-sub003/internal/runtimeext"
)

// Capability wires ipfsext into the runtime-extension registry: it
// registers a pinset for the app on AppInit and releases the app's share
// of every pinned block on AppFini (spec.md §4.6 table).
type Capability struct {
	node *Node
	pins *pinSet
}

// NewCapability shares a single libp2p Node across every app's capability
// instance.
func NewCapability(node *Node) *Capability {
	return &Capability{node: node, pins: newPinSet()}
}

func (c *Capability) Name() string  { return "ipfs" }
func (c *Capability) Priority() int { return runtimeext.PriorityAmbient }

func (c *Capability) AppInit(ctx runtimeext.RuntimeContext) error {
	c.pins.mu.Lock()
	if c.pins.apps[ctx.AppName] == nil {
		c.pins.apps[ctx.AppName] = make(map[string]struct{})
	}
	c.pins.mu.Unlock()
	return nil
}

func (c *Capability) AppFini(ctx runtimeext.RuntimeContext) error {
	c.pins.releaseApp(ctx.AppName)
	return nil
}

// FileAdd stores data as a new block and pins it for appName, returning a
// synthetic VFS-facing path alongside the CID.
func (c *Capability) FileAdd(appName string, data []byte) (path string, id cid.Cid, err error) {
	id, err = c.node.storeBlock(data)
	if err != nil {
		return "", cid.Undef, err
	}
	c.pins.pin(appName, id)
	return "/ipfs/" + id.String(), id, nil
}

// FileGet retrieves the bytes for id, regardless of which app pinned it —
// the content store itself is shared; only pin lifetime is per-app.
func (c *Capability) FileGet(id cid.Cid) ([]byte, error) {
	b, ok := c.node.getBlock(id)
	if !ok {
		return nil, herrors.Wrapf(herrors.ErrResourceNotFound, "ipfs block %s not found", id)
	}
	return b, nil
}

// FilePin adds appName's pin on an already-stored block.
func (c *Capability) FilePin(appName string, id cid.Cid) error {
	if _, ok := c.node.getBlock(id); !ok {
		return herrors.Wrapf(herrors.ErrResourceNotFound, "ipfs block %s not found", id)
	}
	c.pins.pin(appName, id)
	return nil
}

// FileUnpin removes appName's pin; the block itself is only released once
// every pinning app has unpinned (spec.md §4.6.2).
func (c *Capability) FileUnpin(appName string, id cid.Cid) bool {
	return c.pins.unpin(appName, id)
}

// DhtPut/DhtGet/DhtProvide implement the guest-visible content-routing
// operations. They read and write in-process tables on the node rather than
// a Kademlia DHT: the host/pubsub layers are real libp2p, but values and
// provider records are not exchanged with other peers.
func (c *Capability) DhtPut(key string, value []byte) {
	c.node.dhtMu.Lock()
	c.node.dht[key] = value
	c.node.dhtMu.Unlock()
}

func (c *Capability) DhtGet(key string) ([]byte, bool) {
	c.node.dhtMu.RLock()
	defer c.node.dhtMu.RUnlock()
	v, ok := c.node.dht[key]
	return v, ok
}

// DhtProvide announces that this node can serve key, recording its own
// peer id in key's provider set.
func (c *Capability) DhtProvide(key string) {
	c.node.dhtMu.Lock()
	if _, ok := c.node.dht[key]; !ok {
		c.node.dht[key] = nil
	}
	c.node.dhtMu.Unlock()

	c.node.providersMu.Lock()
	set, ok := c.node.providers[key]
	if !ok {
		set = make(map[peer.ID]struct{})
		c.node.providers[key] = set
	}
	set[c.node.PeerID()] = struct{}{}
	c.node.providersMu.Unlock()
}

// DhtGetProviders returns every peer id that has announced it can serve
// key via DhtProvide (spec.md §4.6.2: dht_get_providers(key) -> peers).
func (c *Capability) DhtGetProviders(key string) []peer.ID {
	c.node.providersMu.RLock()
	defer c.node.providersMu.RUnlock()
	set, ok := c.node.providers[key]
	if !ok {
		return nil
	}
	peers := make([]peer.ID, 0, len(set))
	for p := range set {
		peers = append(peers, p)
	}
	return peers
}

// GetPeerID returns this node's libp2p peer id as a string.
func (c *Capability) GetPeerID() string {
	return c.node.PeerID().String()
}

// PeerEvict disconnects and forgets a peer.
func (c *Capability) PeerEvict(p peer.ID) error {
	return c.node.host.Network().ClosePeer(p)
}

// PubsubPublish publishes message on topic, joining it on first use.
func (c *Capability) PubsubPublish(ctx context.Context, topic string, message []byte) error {
	t, err := c.topicFor(topic)
	if err != nil {
		return err
	}
	if err := t.Publish(ctx, message); err != nil {
		return herrors.Wrapf(err, "publish to topic %s", topic)
	}
	return nil
}

// PubsubSubscribe joins topic and returns a channel of raw message payloads
// (spec.md §4.6.2). It does not itself turn payloads into event.Topic events.
func (c *Capability) PubsubSubscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	c.node.topicMu.Lock()
	sub, ok := c.node.subs[topic]
	if !ok {
		t, err := c.topicForLocked(topic)
		if err != nil {
			c.node.topicMu.Unlock()
			return nil, err
		}
		sub, err = t.Subscribe()
		if err != nil {
			c.node.topicMu.Unlock()
			return nil, herrors.Wrapf(err, "subscribe to topic %s", topic)
		}
		c.node.subs[topic] = sub
	}
	c.node.topicMu.Unlock()

	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			msg, err := sub.Next(ctx)
			if err != nil {
				return
			}
			select {
			case out <- msg.Data:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Capability) topicFor(topic string) (*pubsub.Topic, error) {
	c.node.topicMu.Lock()
	defer c.node.topicMu.Unlock()
	return c.topicForLocked(topic)
}

func (c *Capability) topicForLocked(topic string) (*pubsub.Topic, error) {
	if t, ok := c.node.topics[topic]; ok {
		return t, nil
	}
	t, err := c.node.pubsub.Join(topic)
	if err != nil {
		return nil, herrors.Wrapf(err, "join topic %s", topic)
	}
	c.node.topics[topic] = t
	return t, nil
}
