package runtimeext

import (
	"encoding/json"
	"sync"

	"github.com/input-output-hk/hermes-sub003/internal/archive"
	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// kvStorePath is where each app's kv-store snapshot lives in its VFS
// (outside /lib, so it is writable per spec.md §4.4 invariant ii).
const kvStorePath = "state/kv.json"

type appStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// KvStoreCapability opens a per-app key/value store on AppInit (loading any
// prior snapshot from the app's VFS) and flushes it back on AppFini
// (spec.md §4.6).
type KvStoreCapability struct {
	mu     sync.Mutex
	stores map[string]*appStore
}

func NewKvStoreCapability() *KvStoreCapability {
	return &KvStoreCapability{stores: make(map[string]*appStore)}
}

func (k *KvStoreCapability) Name() string  { return "kv-store" }
func (k *KvStoreCapability) Priority() int { return PriorityAmbient }

func (k *KvStoreCapability) AppInit(ctx RuntimeContext) error {
	store := &appStore{data: make(map[string][]byte)}
	if ctx.VFS != nil {
		if raw, err := ctx.VFS.Read(kvStorePath); err == nil {
			if jerr := json.Unmarshal(raw, &store.data); jerr != nil {
				return herrors.Wrap(jerr, "decode kv-store snapshot")
			}
		}
	}
	k.mu.Lock()
	k.stores[ctx.AppName] = store
	k.mu.Unlock()
	return nil
}

func (k *KvStoreCapability) AppFini(ctx RuntimeContext) error {
	k.mu.Lock()
	store, ok := k.stores[ctx.AppName]
	delete(k.stores, ctx.AppName)
	k.mu.Unlock()
	if !ok {
		return nil
	}
	if ctx.VFS == nil {
		return nil
	}
	store.mu.RLock()
	raw, err := json.Marshal(store.data)
	store.mu.RUnlock()
	if err != nil {
		return herrors.Wrap(err, "encode kv-store snapshot")
	}
	if err := ctx.VFS.Write(kvStorePath, raw); err != nil && err != archive.ErrAlreadyExists {
		return herrors.Wrap(err, "flush kv-store snapshot")
	}
	return nil
}

// Get/Set/Delete operate on appName's store; callers are expected to have
// called AppInit for appName first (the dispatcher guarantees this).
func (k *KvStoreCapability) Get(appName, key string) ([]byte, bool) {
	store := k.storeFor(appName)
	if store == nil {
		return nil, false
	}
	store.mu.RLock()
	defer store.mu.RUnlock()
	v, ok := store.data[key]
	return v, ok
}

func (k *KvStoreCapability) Set(appName, key string, value []byte) {
	store := k.storeFor(appName)
	if store == nil {
		return
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	store.data[key] = value
}

func (k *KvStoreCapability) Delete(appName, key string) {
	store := k.storeFor(appName)
	if store == nil {
		return
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.data, key)
}

func (k *KvStoreCapability) storeFor(appName string) *appStore {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stores[appName]
}
