package bytecode

import "testing"

func TestInsertReturnsStablePointer(t *testing.T) {
	cache := NewStringCache()
	a := cache.Insert("hello")
	b := cache.Insert("hello")
	if a != b {
		t.Error("interning the same content must return the same entry")
	}
	if a.Refs() != 2 {
		t.Errorf("refs = %d, want 2", a.Refs())
	}
}

func TestReleaseDeletesAtZero(t *testing.T) {
	cache := NewStringCache()
	a := cache.Insert("x")
	cache.Retain(a)
	cache.Release(a)
	if cache.LiveCount() != 1 {
		t.Fatalf("live = %d, want 1", cache.LiveCount())
	}
	cache.Release(a)
	if cache.LiveCount() != 0 {
		t.Errorf("live = %d after final release, want 0", cache.LiveCount())
	}
	// Re-inserting after deletion creates a fresh entry.
	b := cache.Insert("x")
	if b.Refs() != 1 {
		t.Errorf("fresh entry refs = %d, want 1", b.Refs())
	}
}

func TestConcatMemoizesOnThePair(t *testing.T) {
	cache := NewStringCache()
	a := cache.Insert("foo")
	b := cache.Insert("bar")

	first := cache.Concat(a, b)
	if first.Str != "foobar" {
		t.Fatalf("concat = %q", first.Str)
	}
	second := cache.Concat(a, b)
	if first != second {
		t.Error("repeated concatenation of the same pair must memoize")
	}
	if first.Refs() != 2 {
		t.Errorf("result refs = %d, want 2", first.Refs())
	}
}

func TestPointerEqualityWithinOneCache(t *testing.T) {
	cache := NewStringCache()
	a := cache.Insert("same")
	b := cache.Insert("same")
	if a != b {
		t.Error("entries from the same cache compare by pointer")
	}
}
