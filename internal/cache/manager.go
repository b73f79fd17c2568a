package cache

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Manager looks up audio in L1, then L2, promoting L2 hits into L1.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	logger *log.Logger
}

// NewManager creates the tiers described by config. L2 is skipped when
// config.DiskPath is empty.
func NewManager(config Config, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	if config.MemoryCapacity <= 0 {
		return nil, fmt.Errorf("memory capacity must be positive, got %d", config.MemoryCapacity)
	}

	m := &Manager{
		memory: NewMemoryCache(config.MemoryCapacity),
		logger: logger,
	}

	if config.DiskPath != "" {
		disk, err := NewDiskCache(config.DiskPath, config.DiskCapacity, config.CompressionLevel)
		if err != nil {
			return nil, err
		}
		if config.TTL > 0 {
			if n := disk.Prune(time.Now().Add(-config.TTL)); n > 0 {
				logger.Debug("Pruned expired audio cache entries", "count", n)
			}
		}
		m.disk = disk
	}

	logger.Debug("Audio cache ready",
		"memory", humanize.IBytes(uint64(config.MemoryCapacity)), //nolint:gosec
		"disk", config.DiskPath)

	return m, nil
}

// Get returns cached audio for key.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		return data, true
	}
	if m.disk == nil {
		return nil, false
	}

	data, ok := m.disk.Get(key)
	if !ok {
		return nil, false
	}
	_ = m.memory.Put(key, data)
	return data, true
}

// Put stores audio in every tier that can hold it.
func (m *Manager) Put(key string, value []byte) error {
	memErr := m.memory.Put(key, value)
	if m.disk == nil {
		return memErr
	}
	if err := m.disk.Put(key, value); err != nil {
		return err
	}
	return nil
}

// Stats returns per-tier statistics keyed by tier name.
func (m *Manager) Stats() map[string]Stats {
	stats := map[string]Stats{"memory": m.memory.Stats()}
	if m.disk != nil {
		stats["disk"] = m.disk.Stats()
	}
	return stats
}

// Close flushes the disk index and logs a summary.
func (m *Manager) Close() error {
	for tier, s := range m.Stats() {
		m.logger.Debug("Audio cache stats",
			"tier", tier,
			"items", s.ItemCount,
			"size", humanize.IBytes(uint64(s.Size)), //nolint:gosec
			"hitRate", fmt.Sprintf("%.1f%%", s.HitRate()*100))
	}
	if m.disk != nil {
		return m.disk.Close()
	}
	return nil
}
