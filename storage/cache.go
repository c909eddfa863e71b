package storage

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/coocood/freecache"

	"github.com/janelia-flyem/surfaces/dvid"
	"github.com/janelia-flyem/surfaces/surface"
)

const numCacheShards = 64

// CachedStore keeps serialized surface sets of an underlying Store in memory.
type CachedStore struct {
	store Store
	cache *freecache.Cache

	shards   [numCacheShards]sync.RWMutex
	attempts uint64
	hits     uint64
}

// NewCachedStore wraps a store with a cache of about sizeMB megabytes.  A size of 0
// returns the store unchanged.
func NewCachedStore(store Store, sizeMB int) Store {
	if sizeMB <= 0 {
		return store
	}
	numBytes := sizeMB * dvid.Mega
	dvid.Infof("Created freecache of ~ %d MB for surface sets.\n", sizeMB)
	return &CachedStore{
		store: store,
		cache: freecache.NewCache(numBytes),
	}
}

func (c *CachedStore) shard(name string) *sync.RWMutex {
	h := fnv.New32a()
	h.Write([]byte(name))
	return &c.shards[h.Sum32()%numCacheShards]
}

func (c *CachedStore) Put(name string, exp *surface.Export) error {
	if err := CheckName(name); err != nil {
		return err
	}
	mu := c.shard(name)
	mu.Lock()
	defer mu.Unlock()

	k := nameKey(name)
	raw, isRaw := c.store.(rawStore)
	if !isRaw {
		c.cache.Del(k)
		return c.store.Put(name, exp)
	}
	value, err := encodeValue(exp, raw.compression())
	if err != nil {
		return err
	}
	if err := raw.putRaw(name, value); err != nil {
		c.cache.Del(k)
		return err
	}
	if err := c.cache.Set(k, value, 0); err != nil {
		dvid.Errorf("unable to cache surface set %q: %v\n", name, err)
		c.cache.Del(k)
	}
	return nil
}

func (c *CachedStore) Get(name string) (*surface.Export, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	mu := c.shard(name)
	mu.RLock()
	defer mu.RUnlock()

	atomic.AddUint64(&c.attempts, 1)
	k := nameKey(name)
	value, err := c.cache.Get(k)
	if err != nil && err != freecache.ErrNotFound {
		return nil, err
	}
	if value != nil {
		atomic.AddUint64(&c.hits, 1)
		return decodeValue(value)
	}

	raw, isRaw := c.store.(rawStore)
	if !isRaw {
		exp, err := c.store.Get(name)
		if err != nil {
			return nil, err
		}
		if value, err := encodeValue(exp, DefaultCompression); err != nil {
			dvid.Errorf("unable to encode surface set %q for cache: %v\n", name, err)
		} else if err := c.cache.Set(k, value, 0); err != nil {
			dvid.Errorf("unable to cache surface set %q: %v\n", name, err)
		}
		return exp, nil
	}
	if value, err = raw.getRaw(name); err != nil {
		return nil, err
	}
	exp, err := decodeValue(value)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(k, value, 0); err != nil {
		dvid.Errorf("unable to cache surface set %q: %v\n", name, err)
	}
	return exp, nil
}

func (c *CachedStore) Delete(name string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	mu := c.shard(name)
	mu.Lock()
	defer mu.Unlock()
	c.cache.Del(nameKey(name))
	return c.store.Delete(name)
}

func (c *CachedStore) List() ([]string, error) {
	return c.store.List()
}

func (c *CachedStore) Close() error {
	dvid.Infof("Surface set cache: %d hits out of %d attempts\n", atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.attempts))
	c.cache.Clear()
	return c.store.Close()
}

// Stats returns the number of cache hits and lookups so far.
func (c *CachedStore) Stats() (hits, attempts uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.attempts)
}
