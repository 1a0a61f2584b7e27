package ellex

// A CacheEntry records one observed type at a cache site, with its hit count
// and the last value seen with that type.
type CacheEntry struct {
	// Type is the observed type.
	Type Type
	// HitCount is how many times this type has recurred.
	HitCount uint64
	// LastValue is the most recent value observed with this type.
	LastValue Value
}

// maxCacheEntries bounds a variable cache. Past three observed types the
// site is megamorphic and caching stops paying for itself.
const maxCacheEntries = 3

// A VariableCache is an inline cache over one variable access site. It
// remembers up to three observed types and degrades gracefully: one entry is
// monomorphic, two or three are polymorphic, and a full cache or a site
// missing more than ten times is megamorphic.
type VariableCache struct {
	// Name is the variable the site reads.
	Name string

	entries   []CacheEntry
	missCount uint64
}

// NewVariableCache returns an empty cache for the named variable.
func NewVariableCache(name string) *VariableCache {
	return &VariableCache{Name: name}
}

// Lookup records an observation of v and reports whether the site could
// serve it. A known type hits its entry; an unseen type with room creates a
// new entry and hits it. Only a full cache seeing an unseen type counts a
// miss, and entries are never evicted.
func (c *VariableCache) Lookup(v Value) bool {
	t := TypeOf(v)
	for i := range c.entries {
		if c.entries[i].Type == t {
			c.entries[i].HitCount++
			c.entries[i].LastValue = v
			return true
		}
	}
	if len(c.entries) < maxCacheEntries {
		c.entries = append(c.entries, CacheEntry{Type: t, HitCount: 1, LastValue: v})
		return true
	}
	c.missCount++
	return false
}

// Entries returns the cached entries in observation order.
func (c *VariableCache) Entries() []CacheEntry { return c.entries }

// MissCount returns the number of lookups the full cache could not serve.
func (c *VariableCache) MissCount() uint64 { return c.missCount }

// Hits returns the total hit count across all entries.
func (c *VariableCache) Hits() uint64 {
	var n uint64
	for i := range c.entries {
		n += c.entries[i].HitCount
	}
	return n
}

// IsMonomorphic reports whether the site has observed exactly one type.
func (c *VariableCache) IsMonomorphic() bool { return len(c.entries) == 1 }

// IsPolymorphic reports whether the site has observed more than one type but
// is not yet megamorphic.
func (c *VariableCache) IsPolymorphic() bool {
	return len(c.entries) > 1 && !c.IsMegamorphic()
}

// IsMegamorphic reports whether the site has degraded past useful caching:
// either the cache is full or it has missed more than ten times.
func (c *VariableCache) IsMegamorphic() bool {
	return c.missCount > 10 || len(c.entries) == maxCacheEntries
}

// Reset empties the cache and clears its miss count.
func (c *VariableCache) Reset() {
	c.entries = nil
	c.missCount = 0
}

// A FunctionCallCache is an inline cache over one call site. It remembers
// the resolved function together with the ordered argument types it was
// called with, and invalidates itself when the global cache version moves.
type FunctionCallCache struct {
	// Name is the function the site calls.
	Name string

	fn        *Function
	argTypes  []Type
	version   uint64
	hitCount  uint64
	missCount uint64
}

// NewFunctionCallCache returns an empty cache for the named call site.
func NewFunctionCallCache(name string) *FunctionCallCache {
	return &FunctionCallCache{Name: name}
}

// Lookup returns the cached function if the site has a valid entry for the
// given argument types. A stale global version clears the entry.
func (c *FunctionCallCache) Lookup(args []Value) (*Function, bool) {
	if c.fn == nil {
		c.missCount++
		return nil, false
	}
	if c.version != CacheVersion() {
		c.fn = nil
		c.argTypes = nil
		c.missCount++
		return nil, false
	}
	if len(args) != len(c.argTypes) {
		c.missCount++
		return nil, false
	}
	for i, a := range args {
		if TypeOf(a) != c.argTypes[i] {
			c.missCount++
			return nil, false
		}
	}
	c.hitCount++
	return c.fn, true
}

// Store caches fn for the given argument types at the current global
// version.
func (c *FunctionCallCache) Store(fn *Function, args []Value) {
	c.fn = fn
	c.argTypes = make([]Type, len(args))
	for i, a := range args {
		c.argTypes[i] = TypeOf(a)
	}
	c.version = CacheVersion()
}

// Hits returns the site's hit count.
func (c *FunctionCallCache) Hits() uint64 { return c.hitCount }

// Misses returns the site's miss count.
func (c *FunctionCallCache) Misses() uint64 { return c.missCount }

// Reset empties the cache and clears its counters.
func (c *FunctionCallCache) Reset() {
	c.fn = nil
	c.argTypes = nil
	c.hitCount = 0
	c.missCount = 0
}

// CacheStats aggregates cache behavior across a statement tree.
type CacheStats struct {
	// VariableHits and VariableMisses count variable cache lookups.
	VariableHits, VariableMisses uint64
	// FunctionHits and FunctionMisses count call cache lookups.
	FunctionHits, FunctionMisses uint64
	// Monomorphic, Polymorphic, and Megamorphic count variable cache
	// sites in each state. Empty sites count in none.
	Monomorphic, Polymorphic, Megamorphic int
}

// HitRate returns the fraction of all lookups that hit, or 0 with no
// lookups.
func (s CacheStats) HitRate() float64 {
	hits := s.VariableHits + s.FunctionHits
	total := hits + s.VariableMisses + s.FunctionMisses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Efficiency returns the fraction of populated variable cache sites that are
// monomorphic, the state caching exists for.
func (s CacheStats) Efficiency() float64 {
	total := s.Monomorphic + s.Polymorphic + s.Megamorphic
	if total == 0 {
		return 0
	}
	return float64(s.Monomorphic) / float64(total)
}

func (s *CacheStats) addVariable(c *VariableCache) {
	s.VariableHits += c.Hits()
	s.VariableMisses += c.MissCount()
	switch {
	case c.IsMonomorphic():
		s.Monomorphic++
	case c.IsMegamorphic():
		s.Megamorphic++
	case c.IsPolymorphic():
		s.Polymorphic++
	}
}

func (s *CacheStats) addFunction(c *FunctionCallCache) {
	s.FunctionHits += c.Hits()
	s.FunctionMisses += c.Misses()
}
