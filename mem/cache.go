package mem

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// CacheConfig holds the data cache geometry and timing.
type CacheConfig struct {
	// Sets is the number of cache sets.
	Sets int `yaml:"sets"`
	// Ways is the associativity (lines per set).
	Ways int `yaml:"ways"`
	// LineSize is the cache line size in bytes.
	LineSize int `yaml:"line_size"`
	// HitCycles is the load-to-use latency on a cache hit.
	HitCycles int `yaml:"hit_cycles"`
	// MissCycles is the load-to-use latency on a cache miss.
	MissCycles int `yaml:"miss_cycles"`
}

// DefaultCacheConfig returns a deliberately tiny cache so that guest
// programs can observe evictions and timing without large working sets.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Sets:       4,
		Ways:       4,
		LineSize:   16,
		HitCycles:  2,
		MissCycles: 5,
	}
}

// CacheStats holds access statistics.
type CacheStats struct {
	Reads     uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Flushes   uint64
}

// LineInfo describes one cache line for the observability views.
type LineInfo struct {
	Set   int
	Way   int
	Valid bool
	// Addr is the line-aligned base address of the cached data.
	Addr uint32
}

// Cache models the data cache: a set-associative tag store with LRU
// replacement. Lines carry no data and no dirty bit; stores write through to
// main memory at retire, so memory is always authoritative and the cache
// only decides hit-versus-miss timing.
type Cache struct {
	config    CacheConfig
	directory *akitacache.DirectoryImpl
	stats     CacheStats
}

// NewCache creates a cache with the given geometry.
func NewCache(config CacheConfig) *Cache {
	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			config.Sets,
			config.Ways,
			config.LineSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() CacheConfig {
	return c.config
}

// Stats returns the access statistics.
func (c *Cache) Stats() CacheStats {
	return c.stats
}

func (c *Cache) lineAddr(addr uint32) uint64 {
	return uint64(addr) / uint64(c.config.LineSize) * uint64(c.config.LineSize)
}

// Access looks up the line containing addr, installing it on a miss. It
// returns whether the access hit. This is the only entry point that mutates
// LRU state, so both retired and transient accesses leave the same trace.
func (c *Cache) Access(addr uint32) bool {
	c.stats.Reads++

	lineAddr := c.lineAddr(addr)
	block := c.directory.Lookup(0, lineAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return true
	}

	c.stats.Misses++
	victim := c.directory.FindVictim(lineAddr)
	if victim == nil {
		return false
	}
	if victim.IsValid {
		c.stats.Evictions++
	}
	victim.Tag = lineAddr
	victim.IsValid = true
	c.directory.Visit(victim)
	return false
}

// Contains reports whether the line containing addr is cached, without
// updating replacement state.
func (c *Cache) Contains(addr uint32) bool {
	block := c.directory.Lookup(0, c.lineAddr(addr))
	return block != nil && block.IsValid
}

// Invalidate drops the line containing addr.
func (c *Cache) Invalidate(addr uint32) {
	c.stats.Flushes++
	block := c.directory.Lookup(0, c.lineAddr(addr))
	if block != nil && block.IsValid {
		block.IsValid = false
	}
}

// InvalidateAll drops every line.
func (c *Cache) InvalidateAll() {
	c.stats.Flushes++
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			block.IsValid = false
		}
	}
}

// Lines returns a snapshot of all cache lines for the observability views.
func (c *Cache) Lines() []LineInfo {
	var lines []LineInfo
	for setID, set := range c.directory.GetSets() {
		for wayID, block := range set.Blocks {
			lines = append(lines, LineInfo{
				Set:   setID,
				Way:   wayID,
				Valid: block.IsValid,
				Addr:  uint32(block.Tag),
			})
		}
	}
	return lines
}
