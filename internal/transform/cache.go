package transform

import (
	"container/list"
	"math"
	"sync"

	"github.com/least106/MomentTransfer/internal/geometry"
)

// precisionDigits controls the rounding applied to basis components before
// they are hashed into a cache key, so keys are stable across float noise.
const precisionDigits = 10

// cacheKey is the quantized concatenation of both basis matrices.
type cacheKey [18]float64

// Cache is a bounded LRU cache of rotation matrices keyed by the source and
// target basis pair. It is a performance optimization only: results are
// identical whether the cache is cold or warm. Each worker owns an
// independent instance; the zero capacity disables caching entirely.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[cacheKey]*list.Element
	order    *list.List // front = most recently used
	hits     int64
	misses   int64
}

type cacheEntry struct {
	key cacheKey
	rot geometry.Mat3
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits     int64
	Misses   int64
	Entries  int
	Capacity int
}

// NewCache creates a rotation cache holding at most capacity entries.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[cacheKey]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached rotation for the basis pair, if present.
func (c *Cache) Get(source, target geometry.Mat3) (geometry.Mat3, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[makeKey(source, target)]
	if !ok {
		c.misses++
		return geometry.Mat3{}, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return el.Value.(*cacheEntry).rot, true
}

// Put stores the rotation for the basis pair, evicting the least recently
// used entry when the cache is full.
func (c *Cache) Put(source, target geometry.Mat3, rot geometry.Mat3) {
	if c.capacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := makeKey(source, target)
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).rot = rot
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, rot: rot})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Invalidate drops every entry. Called when the owning configuration is
// reloaded; counters are reset with the contents.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[cacheKey]*list.Element)
	c.order.Init()
	c.hits = 0
	c.misses = 0
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		Entries:  c.order.Len(),
		Capacity: c.capacity,
	}
}

func makeKey(source, target geometry.Mat3) cacheKey {
	var key cacheKey
	n := 0
	for _, m := range []geometry.Mat3{source, target} {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				key[n] = quantize(m[i][j])
				n++
			}
		}
	}
	return key
}

func quantize(v float64) float64 {
	scale := math.Pow10(precisionDigits)
	return math.Round(v*scale) / scale
}
