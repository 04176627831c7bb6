package platform

import (
	"encoding/binary"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// CacheConfig sizes the monitor-side fetch cache.
type CacheConfig struct {
	// Size in bytes.
	Size int
	// Associativity (number of ways).
	Associativity int
	// BlockSize in bytes.
	BlockSize int
}

// DefaultCacheConfig returns a small fetch cache: the monitor refetches
// the same trap-handler and firmware lines constantly, so even a modest
// cache absorbs most of the traffic.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Size:          32 * 1024,
		Associativity: 4,
		BlockSize:     64,
	}
}

// CacheStats holds fetch cache counters.
type CacheStats struct {
	Reads      uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// Cache caches guest memory lines in front of the sparse page store.
// Tag and replacement state live in an akita cache directory; the line
// data is held alongside, indexed by set and way.
type Cache struct {
	config    CacheConfig
	directory *akitacache.DirectoryImpl
	lines     [][]byte
	memory    *Memory
	stats     CacheStats
}

// NewCache creates a fetch cache backed by the guest memory.
func NewCache(config CacheConfig, memory *Memory) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	lines := make([][]byte, numSets*config.Associativity)
	for i := range lines {
		lines[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		lines:  lines,
		memory: memory,
	}
}

// Stats returns the fetch counters.
func (c *Cache) Stats() CacheStats { return c.stats }

// ResetStats clears the fetch counters.
func (c *Cache) ResetStats() { c.stats = CacheStats{} }

func (c *Cache) lineIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// line returns the cached line holding addr, filling it from memory on
// a miss.
func (c *Cache) line(addr uint64) []byte {
	lineAddr := addr &^ uint64(c.config.BlockSize-1)

	block := c.directory.Lookup(0, lineAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return c.lines[c.lineIndex(block)]
	}

	c.stats.Misses++
	victim := c.directory.FindVictim(lineAddr)
	data := c.lines[c.lineIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++
		if victim.IsDirty {
			c.stats.Writebacks++
			c.memory.Write(victim.Tag, data)
		}
	}

	copy(data, c.memory.Read(lineAddr, c.config.BlockSize))
	victim.Tag = lineAddr
	victim.IsValid = true
	victim.IsDirty = false

	return data
}

// Fetch32 reads a 32-bit instruction word through the cache. The word
// must not straddle a line boundary; instruction alignment guarantees
// that for 4-byte blocks and up.
func (c *Cache) Fetch32(addr uint64) uint32 {
	c.stats.Reads++
	off := addr & uint64(c.config.BlockSize-1)
	return binary.LittleEndian.Uint32(c.line(addr)[off:])
}

// HitRate returns the fraction of fetches served from the cache.
func (c *Cache) HitRate() float64 {
	total := c.stats.Hits + c.stats.Misses
	if total == 0 {
		return 0
	}
	return float64(c.stats.Hits) / float64(total)
}
