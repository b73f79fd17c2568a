package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestDiskCache_RoundTripCompressed(t *testing.T) {
	dir := t.TempDir()

	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}

	// Silence compresses well, so this entry is stored compressed
	audio := make([]byte, 64*1024)
	if err := dc.Put("silence", audio); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if size := dc.Stats().Size; size >= int64(len(audio)) {
		t.Errorf("Expected compressed size below %d, got %d", len(audio), size)
	}

	got, ok := dc.Get("silence")
	if !ok {
		t.Fatal("Expected hit after put")
	}
	if !bytes.Equal(got, audio) {
		t.Error("Decompressed audio does not match original")
	}

	if err := dc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestDiskCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	dc, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	if err := dc.Put("greeting", []byte("good morning human")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := dc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close() //nolint:errcheck

	got, ok := reopened.Get("greeting")
	if !ok {
		t.Fatal("Expected entry to survive reopen")
	}
	if string(got) != "good morning human" {
		t.Errorf("Expected original data, got %q", got)
	}
}

func TestDiskCache_EvictionAndPrune(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 10, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close() //nolint:errcheck

	_ = dc.Put("a", []byte("12345"))
	time.Sleep(5 * time.Millisecond)
	_ = dc.Put("b", []byte("12345"))
	time.Sleep(5 * time.Millisecond)
	_ = dc.Put("c", []byte("12345"))

	if _, ok := dc.Get("a"); ok {
		t.Error("Expected oldest entry to be evicted")
	}
	if dc.Stats().Evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", dc.Stats().Evictions)
	}

	if n := dc.Prune(time.Now().Add(time.Hour)); n != 2 {
		t.Errorf("Expected 2 pruned entries, got %d", n)
	}
	if items := dc.Stats().ItemCount; items != 0 {
		t.Errorf("Expected empty cache after prune, got %d items", items)
	}
}

func TestDiskCache_PutAfterClose(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1024, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	_ = dc.Close()

	if err := dc.Put("a", []byte("x")); err != ErrCacheClosed {
		t.Errorf("Expected ErrCacheClosed, got %v", err)
	}
}
