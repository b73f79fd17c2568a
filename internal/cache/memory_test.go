package cache

import (
	"bytes"
	"testing"
)

func TestMemoryCache_GetPut(t *testing.T) {
	c := NewMemoryCache(1024)

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for missing key")
	}

	if err := c.Put("a", []byte("hello")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("Expected hit after put")
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("Expected hello, got %q", got)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d/%d", stats.Hits, stats.Misses)
	}
	if stats.Size != 5 || stats.ItemCount != 1 {
		t.Errorf("Expected size 5 with 1 item, got %d/%d", stats.Size, stats.ItemCount)
	}
	if rate := stats.HitRate(); rate != 0.5 {
		t.Errorf("Expected hit rate 0.5, got %v", rate)
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	c := NewMemoryCache(10)

	_ = c.Put("a", make([]byte, 4))
	_ = c.Put("b", make([]byte, 4))

	// Touch a so b becomes the eviction candidate
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Expected hit for a")
	}

	if err := c.Put("c", make([]byte, 4)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, ok := c.Get("b"); ok {
		t.Error("Expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("Expected a to survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("Expected c to be cached")
	}
	if evictions := c.Stats().Evictions; evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", evictions)
	}
}

func TestMemoryCache_ReplaceAndDelete(t *testing.T) {
	c := NewMemoryCache(100)

	_ = c.Put("a", make([]byte, 10))
	_ = c.Put("a", make([]byte, 20))

	if size := c.Stats().Size; size != 20 {
		t.Errorf("Expected size 20 after replace, got %d", size)
	}

	c.Delete("a")
	if size := c.Stats().Size; size != 0 {
		t.Errorf("Expected size 0 after delete, got %d", size)
	}

	_ = c.Put("b", make([]byte, 5))
	c.Clear()
	if items := c.Stats().ItemCount; items != 0 {
		t.Errorf("Expected no items after clear, got %d", items)
	}
}

func TestMemoryCache_ItemTooLarge(t *testing.T) {
	c := NewMemoryCache(8)

	if err := c.Put("big", make([]byte, 9)); err != ErrItemTooLarge {
		t.Errorf("Expected ErrItemTooLarge, got %v", err)
	}
}
