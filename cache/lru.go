package cache

import (
	"container/list"
	"math"
	"sync"
)

const (
	DefaultMinSize       = 600
	DefaultMaxSize       = 800
	DefaultUnloadPercent = 0.05
)

// LRU is a bounded cache of items ordered by recency.
//
// Items marked used during a frame are never evicted during that frame.
// Items marked as cached are protected from eviction until ReleaseCached is
// called. Eviction only starts once the cache grows beyond MinSize and each
// call to UnloadUnused evicts at most UnloadPercent of it, which spreads
// disposal work over several frames.
type LRU[T comparable] struct {
	// The label used to report the cache metrics.
	Name string

	MinSize       int
	MaxSize       int
	UnloadPercent float64

	mutex     sync.Mutex
	order     *list.List
	items     map[T]*list.Element
	callbacks map[T]func(T)
	used      map[T]struct{}
	cached    map[T]struct{}
}

// New creates a cache. Non positive values are replaced by their defaults.
func New[T comparable](name string, minSize, maxSize int, unloadPercent float64) *LRU[T] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if minSize <= 0 || minSize > maxSize {
		minSize = int(math.Min(DefaultMinSize, float64(maxSize)))
	}
	if unloadPercent <= 0 {
		unloadPercent = DefaultUnloadPercent
	}

	return &LRU[T]{
		Name:          name,
		MinSize:       minSize,
		MaxSize:       maxSize,
		UnloadPercent: unloadPercent,
		order:         list.New(),
		items:         make(map[T]*list.Element),
		callbacks:     make(map[T]func(T)),
		used:          make(map[T]struct{}),
		cached:        make(map[T]struct{}),
	}
}

// Add inserts an item as the most recently used one. The unload callback is
// called when the item is evicted or removed. It returns false when the item
// is already present or when the cache is full.
func (c *LRU[T]) Add(item T, unload func(T)) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.items[item]; ok {
		return false
	}
	if len(c.items) >= c.MaxSize {
		return false
	}

	c.items[item] = c.order.PushBack(item)
	c.callbacks[item] = unload
	c.used[item] = struct{}{}
	instrumentSize(c.Name, len(c.items))
	return true
}

// Has reports whether the item is in the cache.
func (c *LRU[T]) Has(item T) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, ok := c.items[item]
	return ok
}

// Remove removes the item and calls its unload callback.
func (c *LRU[T]) Remove(item T) bool {
	c.mutex.Lock()
	unload, ok := c.remove(item)
	c.mutex.Unlock()

	if ok && unload != nil {
		unload(item)
	}
	return ok
}

func (c *LRU[T]) remove(item T) (func(T), bool) {
	elem, ok := c.items[item]
	if !ok {
		return nil, false
	}

	unload := c.callbacks[item]
	c.order.Remove(elem)
	delete(c.items, item)
	delete(c.callbacks, item)
	delete(c.used, item)
	delete(c.cached, item)
	instrumentSize(c.Name, len(c.items))
	instrumentCached(c.Name, len(c.cached))
	return unload, true
}

// MarkUsed flags the item as used for the current frame and moves it to the
// most recently used position. Items that are not in the cache are ignored.
func (c *LRU[T]) MarkUsed(item T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	elem, ok := c.items[item]
	if !ok {
		return
	}

	c.order.MoveToBack(elem)
	c.used[item] = struct{}{}
}

// MarkAllUnused clears the used flags. It is called once per frame after
// unloading.
func (c *LRU[T]) MarkAllUnused() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	clear(c.used)
}

// MarkCache protects the item from eviction. Items may be protected before
// they are added.
func (c *LRU[T]) MarkCache(item T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.cached[item]; ok {
		return
	}
	c.cached[item] = struct{}{}
	instrumentCached(c.Name, len(c.cached))
}

// Uncache drops the eviction protection of the item. It also applies to
// items that are not in the cache.
func (c *LRU[T]) Uncache(item T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.cached[item]; !ok {
		return
	}
	delete(c.cached, item)
	instrumentCached(c.Name, len(c.cached))
}

// IsCached reports whether the item is protected from eviction.
func (c *LRU[T]) IsCached(item T) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, ok := c.cached[item]
	return ok
}

// ReleaseCached drops every eviction protection.
func (c *LRU[T]) ReleaseCached() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	clear(c.cached)
	instrumentCached(c.Name, 0)
}

// IsFull reports whether the cache reached its maximum size.
func (c *LRU[T]) IsFull() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.items) >= c.MaxSize
}

// Len returns the number of items in the cache.
func (c *LRU[T]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.items)
}

// CachedCount returns the number of items protected from eviction.
func (c *LRU[T]) CachedCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.cached)
}

// UnloadUnused evicts the least recently used items that are neither used
// this frame nor protected, and returns the number of evicted items.
func (c *LRU[T]) UnloadUnused() int {
	c.mutex.Lock()

	excess := len(c.items) - c.MinSize
	unused := len(c.items) - len(c.used)
	if excess <= 0 || unused <= 0 {
		c.mutex.Unlock()
		return 0
	}

	toUnload := min(excess, unused)
	maxUnload := int(math.Ceil(math.Max(
		float64(c.MinSize)*c.UnloadPercent,
		float64(toUnload)*c.UnloadPercent,
	)))
	toUnload = min(toUnload, maxUnload)

	type eviction struct {
		item   T
		unload func(T)
	}
	evictions := make([]eviction, 0, toUnload)

	for elem := c.order.Front(); elem != nil && len(evictions) < toUnload; {
		next := elem.Next()
		item := elem.Value.(T)

		_, used := c.used[item]
		_, cached := c.cached[item]
		if !used && !cached {
			unload, _ := c.remove(item)
			evictions = append(evictions, eviction{item: item, unload: unload})
		}
		elem = next
	}
	c.mutex.Unlock()

	for _, e := range evictions {
		if e.unload != nil {
			e.unload(e.item)
		}
	}

	instrumentEvictions(c.Name, len(evictions))
	return len(evictions)
}
