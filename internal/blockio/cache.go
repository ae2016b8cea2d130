package blockio

import "container/list"

type cacheEntry struct {
	handle Handle
	buf    []byte
	dirty  bool
}

// lruCache is a bounded write-back cache of block buffers. Eviction writes
// dirty entries back via writeBack before dropping them, matching spec.md
// §4.1 ("eviction writes dirty blocks back").
type lruCache struct {
	capacity  int
	writeBack func(Handle, []byte) error

	order *list.List // front = most recently used
	index map[Handle]*list.Element
}

func newLRUCache(capacity int, writeBack func(Handle, []byte) error) *lruCache {
	return &lruCache{
		capacity:  capacity,
		writeBack: writeBack,
		order:     list.New(),
		index:     make(map[Handle]*list.Element, capacity),
	}
}

func (c *lruCache) get(h Handle) ([]byte, bool) {
	el, ok := c.index[h]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).buf, true
}

// put inserts or updates a cache entry, evicting the least-recently-used
// entries if the cache is now over capacity. It returns the first error
// encountered writing back an evicted dirty block, if any; the eviction
// itself still proceeds for every over-capacity entry regardless.
func (c *lruCache) put(h Handle, buf []byte, dirty bool) error {
	if el, ok := c.index[h]; ok {
		entry := el.Value.(*cacheEntry)
		entry.buf = buf
		entry.dirty = entry.dirty || dirty
		c.order.MoveToFront(el)
		return nil
	}

	el := c.order.PushFront(&cacheEntry{handle: h, buf: buf, dirty: dirty})
	c.index[h] = el

	var first error
	for c.order.Len() > c.capacity {
		if err := c.evictOldest(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *lruCache) markDirty(h Handle) {
	if el, ok := c.index[h]; ok {
		el.Value.(*cacheEntry).dirty = true
		c.order.MoveToFront(el)
	}
}

// evictOldest drops the least-recently-used entry, writing it back first
// if dirty. The write-back error, if any, is returned to the caller
// rather than discarded: once the entry leaves the cache a failed
// write-back is unrecoverable by a later Flush.
func (c *lruCache) evictOldest() error {
	el := c.order.Back()
	if el == nil {
		return nil
	}
	entry := el.Value.(*cacheEntry)
	var err error
	if entry.dirty {
		err = c.writeBack(entry.handle, entry.buf)
	}
	c.order.Remove(el)
	delete(c.index, entry.handle)
	return err
}

func (c *lruCache) flush() error {
	for el := c.order.Back(); el != nil; el = el.Prev() {
		entry := el.Value.(*cacheEntry)
		if entry.dirty {
			if err := c.writeBack(entry.handle, entry.buf); err != nil {
				return err
			}
			entry.dirty = false
		}
	}
	return nil
}
