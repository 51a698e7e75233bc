// Package exprlru provides a bounded LRU cache for compiled expr-lang
// programs. Grounding compiles the same lifted expression once per problem
// even when it is shared by hundreds of action instantiations; the cache
// makes that sharing explicit and bounds memory for dynamically generated
// expressions.
package exprlru

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/expr-lang/expr/vm"
)

// DefaultSize is the cache capacity used when none is specified.
const DefaultSize = 256

// Cache is a thread-safe LRU cache mapping expression source to compiled
// program. Get updates recency, so it takes the write lock.
type Cache struct {
	mu        sync.Mutex
	cache     map[string]*list.Element
	lru       *list.List
	maxSize   int
	hitCount  int64
	missCount int64
}

type entry struct {
	source  string
	program *vm.Program
}

// New creates a cache with the given capacity. Non-positive sizes fall back
// to DefaultSize.
func New(maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = DefaultSize
	}
	return &Cache{
		cache:   make(map[string]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// Get retrieves a compiled program, marking it most recently used.
func (c *Cache) Get(source string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.cache[source]
	if !ok {
		c.missCount++
		return nil, false
	}
	c.hitCount++
	if elem != c.lru.Front() {
		c.lru.MoveToFront(elem)
	}
	return elem.Value.(*entry).program, true
}

// Put stores a compiled program, evicting the least recently used entry
// when over capacity. Existing entries are updated and refreshed.
func (c *Cache) Put(source string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[source]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*entry).program = program
		return
	}
	c.cache[source] = c.lru.PushFront(&entry{source: source, program: program})
	for c.lru.Len() > c.maxSize {
		elem := c.lru.Back()
		if elem == nil {
			break
		}
		delete(c.cache, elem.Value.(*entry).source)
		c.lru.Remove(elem)
	}
}

// Len returns the current number of cached programs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns size, hit, and miss counters for introspection.
func (c *Cache) Stats() (size int, hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len(), c.hitCount, c.missCount
}

// String returns a human-readable description of cache stats.
func (c *Cache) String() string {
	size, hits, misses := c.Stats()
	return fmt.Sprintf("exprlru.Cache{size=%d, hits=%d, misses=%d}", size, hits, misses)
}
