package intake

import "sync"

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// DefaultProgramCacheSize bounds the cache built by NewProgramCache(0).
const DefaultProgramCacheSize = 512

// NewProgramCache returns a concurrency-safe cache holding at most size
// programs. When full, the oldest insertion is evicted.
func NewProgramCache(size int) ProgramCache {
	if size <= 0 {
		size = DefaultProgramCacheSize
	}
	return &boundedCache{size: size, items: make(map[string]any, size)}
}

type boundedCache struct {
	mu    sync.RWMutex
	size  int
	items map[string]any
	order []string
}

func (c *boundedCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.items[key]
	return value, ok
}

func (c *boundedCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists {
		if len(c.order) >= c.size {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.items, oldest)
		}
		c.order = append(c.order, key)
	}
	c.items[key] = value
}

// WithProgramCache shares a program cache across the configured evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.programCache = cache
	}
}
