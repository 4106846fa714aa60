package ipfsext

import (
	"context"
	"testing"
	"time"

	"github.com/input-output-hk/hermes-sub003/internal/runtimeext"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	n, err := NewNode("/ip4/127.0.0.1/tcp/0")
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	t.Cleanup(func() { n.Close() })
	return n
}

func TestFileAddGetPin(t *testing.T) {
	n := newTestNode(t)
	c := NewCapability(n)
	c.AppInit(ctxFor("appA"))

	path, id, err := c.FileAdd("appA", []byte("hello"))
	if err != nil {
		t.Fatalf("file add: %v", err)
	}
	if path == "" {
		t.Fatalf("expected non-empty path")
	}
	got, err := c.FileGet(id)
	if err != nil {
		t.Fatalf("file get: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("unexpected content %q", got)
	}
	if !n.ContentValidate([]byte("hello")) {
		t.Fatalf("expected content to validate against local store")
	}
}

func TestPinSharedAcrossAppsUntilBothRelease(t *testing.T) {
	n := newTestNode(t)
	c := NewCapability(n)
	c.AppInit(ctxFor("appA"))
	c.AppInit(ctxFor("appB"))

	_, id, err := c.FileAdd("appA", []byte("shared"))
	if err != nil {
		t.Fatalf("file add: %v", err)
	}
	if err := c.FilePin("appB", id); err != nil {
		t.Fatalf("file pin for appB: %v", err)
	}

	if released := c.FileUnpin("appA", id); released {
		t.Fatalf("expected block to stay pinned while appB still holds it")
	}
	if _, err := c.FileGet(id); err != nil {
		t.Fatalf("expected block to still be retrievable: %v", err)
	}

	if released := c.FileUnpin("appB", id); !released {
		t.Fatalf("expected unpinning the last holder to report released")
	}
}

func TestDhtPutGetProvide(t *testing.T) {
	n := newTestNode(t)
	c := NewCapability(n)

	c.DhtPut("k1", []byte("v1"))
	v, ok := c.DhtGet("k1")
	if !ok || string(v) != "v1" {
		t.Fatalf("dht get = %q, %v", v, ok)
	}
	c.DhtProvide("k2")
	if _, ok := c.DhtGet("k2"); !ok {
		t.Fatalf("expected provided key to be recorded")
	}
}

func TestDhtGetProviders(t *testing.T) {
	n := newTestNode(t)
	c := NewCapability(n)

	if peers := c.DhtGetProviders("unknown"); len(peers) != 0 {
		t.Fatalf("expected no providers for an unprovided key, got %v", peers)
	}

	c.DhtProvide("k3")
	peers := c.DhtGetProviders("k3")
	if len(peers) != 1 || peers[0] != n.PeerID() {
		t.Fatalf("expected [%s], got %v", n.PeerID(), peers)
	}
}

func TestPubsubPublishSubscribeRoundTrip(t *testing.T) {
	n := newTestNode(t)
	c := NewCapability(n)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msgs, err := c.PubsubSubscribe(ctx, "topic-a")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := c.PubsubPublish(ctx, "topic-a", []byte("hi")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-msgs:
		if string(got) != "hi" {
			t.Fatalf("unexpected message %q", got)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for own publish to loop back")
	}
}

func ctxFor(appName string) runtimeext.RuntimeContext {
	return runtimeext.RuntimeContext{AppName: appName}
}
