package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheClosed is returned when the cache is used after Close
	ErrCacheClosed = errors.New("cache is closed")
)

// Stats holds cache counters for one tier.
type Stats struct {
	Capacity  int64
	Size      int64
	ItemCount int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Config holds cache configuration.
type Config struct {
	// MemoryCapacity bounds the L1 tier, in bytes.
	MemoryCapacity int64

	// DiskPath enables the L2 tier when non-empty.
	DiskPath string

	// DiskCapacity bounds the L2 tier, in bytes.
	DiskCapacity int64

	// CompressionLevel is the zstd level for L2 (0 disables compression).
	CompressionLevel int

	// TTL expires L2 entries not accessed for this long (0 keeps them).
	TTL time.Duration
}

// DefaultConfig returns a memory-only configuration.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   32 << 20,
		DiskCapacity:     256 << 20,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
	}
}

// GenerateKey derives a cache key from everything that affects the audio.
func GenerateKey(engine, voice, text string) string {
	h := sha256.New()
	h.Write([]byte(engine))
	h.Write([]byte{0})
	h.Write([]byte(voice))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
