package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const indexFile = "index.gob"

// DiskCache is the L2 tier: one file per entry under basePath, optionally
// zstd-compressed, with a gob index rewritten on Close.
type DiskCache struct {
	basePath string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu     sync.Mutex
	stats  Stats
	closed bool
}

type diskEntry struct {
	Key        string
	File       string
	Size       int64
	Compressed bool
	LastAccess time.Time
}

// NewDiskCache opens (or creates) a disk cache rooted at basePath.
func NewDiskCache(basePath string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		basePath: basePath,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
	}

	if compressionLevel > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}

	// Always able to read compressed entries written by an earlier run
	var err error
	dc.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := dc.loadIndex(); err != nil {
		// A broken index only costs us the cached audio
		dc.index = make(map[string]*diskEntry)
	}
	for _, entry := range dc.index {
		dc.size += entry.Size
	}

	return dc, nil
}

// Get reads an entry from disk.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok || dc.closed {
		dc.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(dc.basePath, entry.File))
	if err == nil && entry.Compressed {
		data, err = dc.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		dc.remove(key)
		dc.stats.Misses++
		return nil, false
	}

	entry.LastAccess = time.Now()
	dc.stats.Hits++
	return data, true
}

// Put writes an entry to disk, evicting the least recently accessed
// entries to stay within capacity.
func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return ErrCacheClosed
	}

	data := value
	compressed := false
	if dc.encoder != nil {
		if packed := dc.encoder.EncodeAll(value, nil); len(packed) < len(value) {
			data = packed
			compressed = true
		}
	}

	size := int64(len(data))
	if size > dc.capacity {
		return ErrItemTooLarge
	}

	if _, ok := dc.index[key]; ok {
		dc.remove(key)
	}
	for dc.size+size > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	name := key
	if len(name) > 32 {
		name = name[:32]
	}
	name += ".pcm"
	if compressed {
		name += ".zst"
	}

	if err := writeFileAtomic(filepath.Join(dc.basePath, name), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	dc.index[key] = &diskEntry{
		Key:        key,
		File:       name,
		Size:       size,
		Compressed: compressed,
		LastAccess: time.Now(),
	}
	dc.size += size

	return nil
}

// Prune removes entries not accessed since cutoff and returns how many.
func (dc *DiskCache) Prune(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for key, entry := range dc.index {
		if entry.LastAccess.Before(cutoff) {
			dc.remove(key)
			removed++
		}
	}
	return removed
}

// Stats returns cache statistics.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	stats := dc.stats
	stats.Capacity = dc.capacity
	stats.Size = dc.size
	stats.ItemCount = int64(len(dc.index))
	return stats
}

// Close saves the index and releases the codecs.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return nil
	}
	dc.closed = true

	err := dc.saveIndex()
	if dc.encoder != nil {
		err = errors.Join(err, dc.encoder.Close())
	}
	dc.decoder.Close()
	return err
}

func (dc *DiskCache) remove(key string) {
	entry, ok := dc.index[key]
	if !ok {
		return
	}
	_ = os.Remove(filepath.Join(dc.basePath, entry.File))
	dc.size -= entry.Size
	delete(dc.index, key)
}

func (dc *DiskCache) evictOldest() {
	var oldest *diskEntry
	for _, entry := range dc.index {
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldest = entry
		}
	}
	if oldest != nil {
		dc.remove(oldest.Key)
		dc.stats.Evictions++
	}
}

func (dc *DiskCache) loadIndex() error {
	f, err := os.Open(filepath.Join(dc.basePath, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close() //nolint:errcheck

	return gob.NewDecoder(f).Decode(&dc.index)
}

func (dc *DiskCache) saveIndex() error {
	path := filepath.Join(dc.basePath, indexFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(dc.index); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// writeFileAtomic writes to a temp file and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
