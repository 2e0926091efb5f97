package bytecode

// CachedString is one interned string entry. Holders maintain the
// refcount through the owning cache; equality between two entries from
// the same cache is pointer equality.
type CachedString struct {
	Str  string
	refs int
}

// Refs returns the entry's current refcount.
func (s *CachedString) Refs() int {
	if s == nil {
		return 0
	}
	return s.refs
}

type concatKey struct {
	a, b *CachedString
}

// StringCache interns strings and memoizes concatenations. It is owned
// by the VM and threaded explicitly into everything that touches string
// values; it is not process-wide state.
type StringCache struct {
	entries map[string]*CachedString
	concats map[concatKey]*CachedString
}

// NewStringCache creates an empty cache.
func NewStringCache() *StringCache {
	return &StringCache{
		entries: make(map[string]*CachedString),
		concats: make(map[concatKey]*CachedString),
	}
}

// Insert interns s and returns its stable entry with the refcount
// incremented.
func (c *StringCache) Insert(s string) *CachedString {
	if entry, ok := c.entries[s]; ok {
		entry.refs++
		return entry
	}
	entry := &CachedString{Str: s, refs: 1}
	c.entries[s] = entry
	return entry
}

// Retain increments the refcount of an entry already held.
func (c *StringCache) Retain(entry *CachedString) {
	if entry != nil {
		entry.refs++
	}
}

// Release decrements the refcount, deleting the entry at zero.
func (c *StringCache) Release(entry *CachedString) {
	if entry == nil {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(c.entries, entry.Str)
	}
}

// Concat concatenates two cached strings, memoizing on the entry pair.
// The result is returned with its refcount incremented; the operands
// are untouched.
func (c *StringCache) Concat(a, b *CachedString) *CachedString {
	key := concatKey{a, b}
	if cached, ok := c.concats[key]; ok && cached.refs > 0 {
		cached.refs++
		return cached
	}
	result := c.Insert(a.Str + b.Str)
	c.concats[key] = result
	return result
}

// LiveCount returns the number of live entries; a program run to
// completion leaves it at zero.
func (c *StringCache) LiveCount() int {
	return len(c.entries)
}
